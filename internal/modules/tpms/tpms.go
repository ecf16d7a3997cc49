// Package tpms adapts an rtl_433 child process (JSON output mode,
// restricted to TPMS decoder protocols) into a worker module, forwarding
// each decoded tire-pressure-sensor reading over the data channel.
package tpms

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/procworker"
	"github.com/gammarf/station/internal/rtlsdr"
	"github.com/gammarf/station/internal/station"
)

const (
	moduleCode      = 8
	protocolVersion = 1
)

// rtl433Protos is the set of rtl_433 decoder protocol numbers covering
// TPMS sensors, passed as repeated -R flags.
var rtl433Protos = []int{59, 60, 82, 88, 89, 90, 95}

func init() {
	modules.Register("tpms", func() modules.Descriptor { return New() })
}

type reading struct {
	Model string `json:"model"`
	Type  string `json:"type"`
	ID    string `json:"id"`
}

// Module is the tpms worker module adapter.
type Module struct {
	cfg *config.Config

	mu       sync.Mutex
	worker   *procworker.Worker
	printAll bool
}

// New returns an uninitialized tpms module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "tpms" }
func (m *Module) Description() string { return "Vehicle tire pressure monitoring sensors" }
func (m *Module) DocString() string {
	return "Forwards decoded TPMS readings from an rtl_433 child process."
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.NarrowBand}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_all": m.printAll}
}
func (m *Module) Commands() []modules.Command { return nil }

func (m *Module) Init(cfg *config.Config) error {
	m.cfg = cfg
	return nil
}

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	serial, _, ppm, _, ok := ctx.Devices.NarrowBandInfo(devID)
	if !ok {
		return false
	}

	path := m.cfg.RTLDevs.RTL2FreqPath
	if path == "" {
		path = m.cfg.RTLDevs.RTLPath
	}
	if path == "" {
		return false
	}

	index, err := rtlsdr.IndexForSerial(serial)
	if err != nil {
		return false
	}

	args := []string{"-d", strconv.Itoa(index), "-p", strconv.Itoa(ppm), "-F", "json"}
	for _, proto := range rtl433Protos {
		args = append(args, "-R"+strconv.Itoa(proto))
	}

	w, err := procworker.Start(path, args...)
	if err != nil {
		return false
	}

	m.mu.Lock()
	m.worker = w
	m.mu.Unlock()

	go m.forward(ctx, w)
	return true
}

func (m *Module) forward(ctx *station.Context, w *procworker.Worker) {
	for line := range w.Lines() {
		var r reading
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		if r.Model == "" || r.ID == "" {
			continue
		}

		ctx.Connector.SendData(map[string]any{
			"module":   moduleCode,
			"protocol": protocolVersion,
			"model":    r.Model,
			"type":     r.Type,
			"id":       r.ID,
		})
	}
}

func (m *Module) Stop(devID any, reg *devices.Registry) bool {
	m.mu.Lock()
	w := m.worker
	m.worker = nil
	m.mu.Unlock()

	if w == nil {
		return false
	}
	w.Stop()
	reg.Free(devID)
	return true
}

func (m *Module) Shutdown() {
	m.mu.Lock()
	w := m.worker
	m.worker = nil
	m.mu.Unlock()
	if w != nil {
		w.Stop()
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
