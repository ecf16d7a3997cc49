// Package adsb adapts an already-decoding rtl_adsb-class child process
// into a worker module: it does not demodulate or CPR-decode anything
// itself, it only line-reads Mode S identification frames the child
// process already validated and forwards the parsed fields over the data
// channel. Full position/velocity decode (CPR, even/odd frame pairing)
// is DSP content the kernel's contract places out of scope, so this
// adapter only carries the identification message fields (icao,
// callsign) through; position/velocity fields are left nil, matching
// the abstract contract rather than reimplementing a decoder.
package adsb

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/procworker"
	"github.com/gammarf/station/internal/rtlsdr"
	"github.com/gammarf/station/internal/station"
)

const (
	moduleCode     = 3
	protocolVersion = 1
)

func init() {
	modules.Register("adsb", func() modules.Descriptor { return New() })
}

// Module is the adsb worker module adapter.
type Module struct {
	cfg *config.Config

	mu       sync.Mutex
	worker   *procworker.Worker
	printAll bool
}

// New returns an uninitialized adsb module.
func New() *Module {
	return &Module{printAll: false}
}

func (m *Module) Name() string        { return "adsb" }
func (m *Module) Description() string { return "ADS-B aircraft tracking" }
func (m *Module) DocString() string {
	return "Forwards decoded Mode S identification messages from an rtl_adsb-class child process."
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

// Run launches the rtl_adsb-class child process configured for devID and
// starts forwarding identification messages over the connector's data
// channel.
func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	serial, gain, ppm, _, ok := ctx.Devices.NarrowBandInfo(devID)
	if !ok {
		return false
	}

	path := m.cfg.RTLDevs.RTLPath
	if path == "" {
		return false
	}

	index, err := rtlsdr.IndexForSerial(serial)
	if err != nil {
		return false
	}

	w, err := procworker.Start(path,
		"-d", strconv.Itoa(index),
		"-p", strconv.Itoa(ppm),
		"-g", strconv.FormatFloat(gain, 'f', -1, 64),
	)
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
		icao, callsign, ok := parseIdentification(line)
		if !ok {
			continue
		}

		ctx.Connector.SendData(map[string]any{
			"module":       moduleCode,
			"protocol":     protocolVersion,
			"icao":         icao,
			"callsign":     callsign,
			"aircraft_lat": nil,
			"aircraft_lng": nil,
			"altitude":     nil,
			"heading":      nil,
			"updownrate":   nil,
			"speedtype":    nil,
			"speed":        nil,
		})
	}
}

// parseIdentification extracts (icao, callsign) from a raw Mode S
// identification frame of the "*8D4840D6202CC371C32CE0576098;" shape. It
// trusts the upstream decoder's framing and CRC; it does not re-verify
// them, since that DSP content is out of scope here.
func parseIdentification(line string) (icao, callsign string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "*") || !strings.HasSuffix(line, ";") {
		return "", "", false
	}
	hexMsg := line[1 : len(line)-1]
	if len(hexMsg) != 28 {
		return "", "", false
	}

	df, err := strconv.ParseUint(hexMsg[0:2], 16, 8)
	if err != nil || (df>>3) != 17 {
		return "", "", false
	}

	icao = strings.ToUpper(hexMsg[2:8])

	tcByte, err := strconv.ParseUint(hexMsg[8:10], 16, 8)
	if err != nil {
		return "", "", false
	}
	tc := tcByte >> 3
	if tc < 1 || tc > 4 {
		return "", "", false
	}

	callsign = decodeCallsign(hexMsg[10:22])
	return icao, callsign, true
}

const csAlphabet = "#ABCDEFGHIJKLMNOPQRSTUVWXYZ#####_###############0123456789######"

func decodeCallsign(hexPayload string) string {
	var bits strings.Builder
	for _, c := range hexPayload {
		v, err := strconv.ParseUint(string(c), 16, 8)
		if err != nil {
			return ""
		}
		bits.WriteString(padBin(uint8(v)))
	}
	bitStr := bits.String()

	var sb strings.Builder
	for i := 0; i+6 <= len(bitStr); i += 6 {
		idx, _ := strconv.ParseUint(bitStr[i:i+6], 2, 8)
		if int(idx) < len(csAlphabet) {
			sb.WriteByte(csAlphabet[idx])
		}
	}
	return strings.TrimRight(sb.String(), "_# ")
}

func padBin(v uint8) string {
	s := strconv.FormatUint(uint64(v), 2)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// Stop terminates the child process and frees devID.
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

// Shutdown stops any running worker unconditionally.
func (m *Module) Shutdown() {
	m.mu.Lock()
	w := m.worker
	m.worker = nil
	m.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// Setting gets or sets print_all; any other name is a no-op returning nil.
func (m *Module) Setting(name string, value *string) any {
	if name != "print_all" {
		return nil
	}
	if value != nil {
		m.printAll = *value == "1" || strings.EqualFold(*value, "true")
	}
	return m.printAll
}
