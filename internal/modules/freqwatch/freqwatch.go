// Package freqwatch periodically reports the power level at each of the
// server's interesting frequencies, reading from the station's shared
// Spectrum facade.
package freqwatch

import (
	"sort"
	"sync"
	"time"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

const (
	moduleCode             = 6
	protocolVersion        = 1
	interestingRefreshSecs = 10
	loopSleep              = 5 * time.Second
)

func init() {
	modules.Register("freqwatch", func() modules.Descriptor { return New() })
}

// Module is the freqwatch worker module adapter.
type Module struct {
	mu       sync.Mutex
	cancel   func()
	printAll bool
}

// New returns an uninitialized freqwatch module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "freqwatch" }
func (m *Module) Description() string { return "periodically report power on interesting freqs" }
func (m *Module) DocString() string {
	return "Usage: run freqwatch hackrf_devid\nExample: run freqwatch 0"
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_all": m.printAll}
}
func (m *Module) Commands() []modules.Command   { return nil }
func (m *Module) Init(cfg *config.Config) error { return nil }

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	if ctx.Spectrum == nil {
		util.ConsoleMessage("freqwatch", "no wide-band device present")
		return false
	}

	stop := make(chan struct{})
	m.mu.Lock()
	m.cancel = sync.OnceFunc(func() { close(stop) })
	m.mu.Unlock()

	go m.watch(ctx, stop)
	return true
}

func (m *Module) watch(ctx *station.Context, stop <-chan struct{}) {
	var freqlist []float64
	notifiedNoFreqs := false
	var lastRefresh time.Time

	for {
		select {
		case <-stop:
			return
		default:
		}

		if time.Since(lastRefresh) > interestingRefreshSecs*time.Second {
			entries, err := ctx.Connector.FetchInteresting()
			if err != nil || len(entries) == 0 {
				if !notifiedNoFreqs {
					util.ConsoleMessage("freqwatch", "retrieved no interesting freqs")
					notifiedNoFreqs = true
				}
			} else {
				newFreqs := make([]float64, 0, len(entries))
				for _, e := range entries {
					newFreqs = append(newFreqs, e.Freq)
				}
				sort.Float64s(newFreqs)
				freqlist = newFreqs
				notifiedNoFreqs = false
			}
			lastRefresh = time.Now()
		}

		for _, freq := range freqlist {
			pwr, ok := ctx.Spectrum.PowerAt(int64(freq))
			if !ok {
				continue
			}

			if m.printAll {
				util.ConsoleMessage("freqwatch", "freq: %.0f, pwr: %.2f", freq, pwr)
			}

			ctx.Connector.SendData(map[string]any{
				"module":   moduleCode,
				"protocol": protocolVersion,
				"freq":     freq,
				"pwr":      pwr,
			})
		}

		select {
		case <-stop:
			return
		case <-time.After(loopSleep):
		}
	}
}

func (m *Module) Stop(devID any, reg *devices.Registry) bool {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	reg.Free(devID)
	return true
}

func (m *Module) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Module) Setting(name string, value *string) any {
	if name != "print_all" {
		return nil
	}
	if value != nil {
		m.printAll = *value == "1"
	}
	return m.printAll
}
