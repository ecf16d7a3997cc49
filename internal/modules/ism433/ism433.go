// Package ism433 adapts an rtl_433 child process (JSON output mode, no
// protocol restriction) into a worker module, forwarding each decoded
// 433MHz ISM-band sensor reading over the data channel.
package ism433

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

func init() {
	modules.Register("ism433", func() modules.Descriptor { return New() })
}

type reading struct {
	Model string `json:"model"`
	Type  string `json:"type"`
	ID    string `json:"id"`
}

// Module is the ism433 worker module adapter.
type Module struct {
	cfg *config.Config

	mu       sync.Mutex
	worker   *procworker.Worker
	printAll bool
}

// New returns an uninitialized ism433 module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "ism433" }
func (m *Module) Description() string { return "433MHz ISM-band sensor decoding" }
func (m *Module) DocString() string {
	return "Forwards decoded 433MHz ISM sensor readings from an rtl_433 child process."
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

	w, err := procworker.Start(path, "-d", strconv.Itoa(index), "-p", strconv.Itoa(ppm), "-F", "json")
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
		if r.Model == "" {
			continue
		}

		id, err := strconv.ParseInt(r.ID, 16, 64)
		if err != nil {
			continue
		}

		ctx.Connector.SendData(map[string]any{
			"module":   moduleCode,
			"protocol": protocolVersion,
			"model":    r.Model,
			"type":     r.Type,
			"id":       id,
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
