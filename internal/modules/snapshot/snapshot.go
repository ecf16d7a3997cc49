// Package snapshot takes a one-shot sweep of the spectrum over a
// requested frequency range and streams power readings over the data
// channel, finishing with a sentinel zero-freq message the server uses
// to know the snapshot is complete.
package snapshot

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

const (
	moduleCode      = 5
	protocolVersion = 1
	maxBandwidth    = 100_000_000
	sendPacing      = time.Millisecond
)

func init() {
	modules.Register("snapshot", func() modules.Descriptor { return New() })
}

// Module is the snapshot worker module adapter.
type Module struct {
	mu      sync.Mutex
	running bool
}

// New returns an uninitialized snapshot module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "snapshot" }
func (m *Module) Description() string { return "take a snapshot of the RF spectrum" }
func (m *Module) DocString() string {
	return "Usage: run snapshot devid lowfreq highfreq\nExample: run snapshot 0 100M 200M"
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool                { return false }
func (m *Module) IsProxy() bool                 { return false }
func (m *Module) Settings() map[string]any      { return map[string]any{} }
func (m *Module) Commands() []modules.Command   { return nil }
func (m *Module) Init(cfg *config.Config) error { return nil }

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	fields := strings.Fields(argline)
	if len(fields) != 2 {
		util.ConsoleMessage("snapshot", "%s", m.DocString())
		return false
	}

	lowFreq, ok1 := util.StrToHz(fields[0])
	highFreq, ok2 := util.StrToHz(fields[1])
	if !ok1 || !ok2 {
		util.ConsoleMessage("snapshot", "%s", m.DocString())
		return false
	}

	_, _, minScan, maxScan, step, ok := ctx.Devices.WideBandInfoFor(devID)
	if !ok {
		util.ConsoleMessage("snapshot", "no wide-band device present")
		return false
	}
	if lowFreq < minScan || highFreq > maxScan {
		util.ConsoleMessage("snapshot", "frequency out of range")
		return false
	}
	if highFreq < lowFreq {
		util.ConsoleMessage("snapshot", "invalid frequency range")
		return false
	}
	if highFreq-lowFreq > maxBandwidth {
		util.ConsoleMessage("snapshot", "range exceeds maximum bandwidth of %d", maxBandwidth)
		return false
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		util.ConsoleMessage("snapshot", "module already running")
		return false
	}
	m.running = true
	m.mu.Unlock()

	go m.sweep(ctx, devID, lowFreq, highFreq, step, remoteTask)
	return true
}

func (m *Module) sweep(ctx *station.Context, devID any, lowFreq, highFreq, step int64, remoteTask bool) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()

		if !remoteTask {
			ctx.Devices.Free(devID)
		}
	}()

	snapshotID := uuid.NewString()

	for freq := lowFreq; freq <= highFreq; freq += step {
		pwr, ok := ctx.Spectrum.PowerAt(freq)
		if !ok {
			continue
		}

		ctx.Connector.SendData(map[string]any{
			"snapshotid": snapshotID,
			"module":     moduleCode,
			"protocol":   protocolVersion,
			"freq":       freq,
			"pwr":        pwr,
		})
		time.Sleep(sendPacing)
	}

	ctx.Connector.SendData(map[string]any{
		"snapshotid": snapshotID,
		"module":     moduleCode,
		"protocol":   protocolVersion,
		"freq":       0,
	})
	util.ConsoleMessage("snapshot", "sent snapshot (id: %s)", snapshotID)
}

// Stop refuses to interrupt an in-progress sweep - the original asks
// callers to wait for the job to finish rather than cancelling it
// mid-sweep, since a partial snapshot is worse than a short wait.
func (m *Module) Stop(devID any, reg *devices.Registry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		util.ConsoleMessage("snapshot", "please wait for job to finish")
	}
	return false
}

func (m *Module) Shutdown() {}

func (m *Module) Setting(name string, value *string) any { return nil }
