// Package scanner watches the server's list of interesting frequencies
// and reports deviations above a running per-frequency power average,
// reading power from the station's shared Spectrum facade.
package scanner

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

const (
	moduleCode             = 1
	protocolVersion        = 1
	avgSamples             = 200
	defaultHitDB           = 12.0
	interestingRefreshSecs = 10
	loopSleep              = 2 * time.Second
)

func init() {
	modules.Register("scanner", func() modules.Descriptor { return New() })
}

// freqStats tracks a running mean/stdev via Welford's algorithm.
type freqStats struct {
	n     int
	mean  float64
	sDev2 float64 // "S" in Welford's algorithm
}

func (s *freqStats) update(pwr float64) {
	s.n++
	prevMean := s.mean
	s.mean += (pwr - s.mean) / float64(s.n)
	s.sDev2 += (pwr - s.mean) * (pwr - prevMean)
}

func (s *freqStats) stdev() float64 {
	if s.n == 0 {
		return 0
	}
	return math.Sqrt(s.sDev2 / float64(s.n))
}

// Module is the scanner worker module adapter.
type Module struct {
	hitDB float64

	mu        sync.Mutex
	cancel    func()
	printHits bool
}

// New returns a scanner module with the default hit threshold; Init
// overrides it from config if [scanner] is present.
func New() *Module { return &Module{hitDB: defaultHitDB} }

func (m *Module) Name() string        { return "scanner" }
func (m *Module) Description() string { return "report deviations in average power on interesting freqs" }
func (m *Module) DocString() string {
	return "Usage: run scanner hackrf_devid\nExample: run scanner 0"
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_hits": m.printHits, "hit_db": m.hitDB}
}
func (m *Module) Commands() []modules.Command { return nil }

func (m *Module) Init(cfg *config.Config) error {
	if cfg.Scanner != nil {
		m.hitDB = cfg.Scanner.HitDB
	}
	return nil
}

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	if ctx.Spectrum == nil {
		util.ConsoleMessage("scanner", "no wide-band device present")
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
	util.ConsoleMessage("scanner", "note: it takes time to form an average for new freqs")

	freqmap := make(map[float64]*freqStats)
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
					util.ConsoleMessage("scanner", "retrieved no interesting freqs")
					notifiedNoFreqs = true
				}
			} else {
				newFreqs := make([]float64, 0, len(entries))
				for _, e := range entries {
					newFreqs = append(newFreqs, e.Freq)
				}
				sort.Float64s(newFreqs)

				if !floatsEqual(newFreqs, freqlist) {
					util.ConsoleMessage("scanner", "updated interesting freqs")
					freqlist = newFreqs
					notifiedNoFreqs = false
				}
			}
			lastRefresh = time.Now()
		}

		for _, freq := range freqlist {
			pwr, ok := ctx.Spectrum.PowerAt(int64(freq))
			if !ok {
				continue
			}

			stats, exists := freqmap[freq]
			if !exists {
				stats = &freqStats{}
				freqmap[freq] = stats
			}
			stats.update(pwr)

			if stats.n == avgSamples {
				util.ConsoleMessage("scanner", "initial means formulated for %.0f", freq)
			}
			if stats.n < avgSamples {
				continue
			}

			squelch := stats.mean + m.hitDB
			if pwr > squelch {
				if m.printHits {
					util.ConsoleMessage("scanner", "hit on %.0f (%.2f > %.2f), stdev: %.2f", freq, pwr, squelch, stats.stdev())
				}
				ctx.Connector.SendData(map[string]any{
					"module":   moduleCode,
					"protocol": protocolVersion,
					"freq":     freq,
					"pwr":      pwr,
				})
			}
		}

		select {
		case <-stop:
			return
		case <-time.After(loopSleep):
		}
	}
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
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
	switch name {
	case "print_hits":
		if value != nil {
			m.printHits = *value == "1"
		}
		return m.printHits
	case "hit_db":
		if value != nil {
			if v, err := strconv.ParseFloat(*value, 64); err == nil {
				m.hitDB = v
			}
		}
		return m.hitDB
	default:
		return nil
	}
}
