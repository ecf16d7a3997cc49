// Package single watches the power level at one fixed frequency, reading
// from the station's shared Spectrum facade rather than opening the
// wide-band hardware itself, and reports a hit whenever the reading
// crosses a configured threshold.
package single

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

const (
	moduleCode      = 9
	protocolVersion = 1
	pollInterval    = 250 * time.Millisecond
)

func init() {
	modules.Register("single", func() modules.Descriptor { return New() })
}

// Module is the single-frequency power watch adapter.
type Module struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	printAll bool
}

// New returns an uninitialized single module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "single" }
func (m *Module) Description() string { return "watch power around a single frequency" }
func (m *Module) DocString() string {
	return "Usage: run single devid freq threshold\nExample: run single 0 100M -10"
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_all": m.printAll}
}
func (m *Module) Commands() []modules.Command { return nil }
func (m *Module) Init(cfg *config.Config) error { return nil }

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	fields := strings.Fields(argline)
	if len(fields) != 2 {
		util.ConsoleMessage("single", "%s", m.DocString())
		return false
	}

	freq, ok := util.StrToHz(fields[0])
	if !ok {
		util.ConsoleMessage("single", "%s", m.DocString())
		return false
	}

	thresh, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		util.ConsoleMessage("single", "%s", m.DocString())
		return false
	}

	if ctx.Spectrum == nil {
		util.ConsoleMessage("single", "no wide-band device present")
		return false
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go m.watch(runCtx, ctx, freq, thresh)
	return true
}

func (m *Module) watch(ctx context.Context, sctx *station.Context, freq int64, thresh float64) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pwr, ok := sctx.Spectrum.PowerAt(freq)
			if !ok || pwr <= thresh {
				continue
			}

			if m.printAll {
				util.ConsoleMessage("single", "hit on %d: %.1f", freq, pwr)
			}

			sctx.Connector.SendData(map[string]any{
				"module":   moduleCode,
				"protocol": protocolVersion,
				"freq":     freq,
				"thresh":   thresh,
				"pwr":      pwr,
			})
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
