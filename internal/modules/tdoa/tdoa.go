// Package tdoa is a stub for time-difference-of-arrival triangulation:
// a task where multiple stations cooperatively capture the same
// transmitter so the server can correlate their samples. The original's
// capture/correlate pipeline was itself left unfinished, so this adapter
// only implements the negotiation handshake (query/accept/reject/go)
// against the server and never begins a capture.
package tdoa

import (
	"sync"
	"time"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

const (
	moduleCode      = 7
	protocolVersion = 1
	minFreq         = 30_000_000
	maxFreq         = 1_600_000_000
	querySleep      = 5 * time.Second
	abortDelay      = 2 * time.Second
	goSleep         = 2 * time.Second
)

func init() {
	modules.Register("tdoa", func() modules.Descriptor { return New() })
}

// Module is the tdoa negotiation-only module adapter.
type Module struct {
	mu         sync.Mutex
	cancel     func()
	printTasks bool
}

// New returns an uninitialized tdoa module.
func New() *Module { return &Module{} }

func (m *Module) Name() string        { return "tdoa" }
func (m *Module) Description() string { return "work with other stations to locate a transmitter" }
func (m *Module) DocString() string {
	return "Usage: run tdoa devid\nThis task must be initiated by the server."
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return false }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_tasks": m.printTasks}
}
func (m *Module) Commands() []modules.Command   { return nil }
func (m *Module) Init(cfg *config.Config) error { return nil }

func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return false
	}
	stop := make(chan struct{})
	m.cancel = sync.OnceFunc(func() { close(stop) })
	m.mu.Unlock()

	go m.negotiate(ctx, stop)
	return true
}

func (m *Module) negotiate(ctx *station.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		resp, err := ctx.Connector.SendCommand(map[string]any{"request": connector.ReqTDOAQuery})
		if err != nil || resp["reply"] != "task" {
			if !sleepOrStop(stop, querySleep) {
				return
			}
			continue
		}

		requestor, ok1 := resp["requestor"]
		tdoaFreq, ok2 := resp["tdoafreq"].(float64)
		if !ok1 || !ok2 {
			continue
		}

		if tdoaFreq < minFreq || tdoaFreq > maxFreq {
			ctx.Connector.SendCommand(map[string]any{
				"request":   connector.ReqTDOAReject,
				"requestor": requestor,
			})
			if !sleepOrStop(stop, abortDelay) {
				return
			}
			continue
		}

		accept, err := ctx.Connector.SendCommand(map[string]any{
			"request":   connector.ReqTDOAAccept,
			"requestor": requestor,
		})
		if err != nil || accept["reply"] != "ok" {
			if !sleepOrStop(stop, abortDelay) {
				return
			}
			continue
		}

		if !sleepOrStop(stop, goSleep) {
			return
		}

		goResp, err := ctx.Connector.SendCommand(map[string]any{"request": connector.ReqTDOAGo})
		if err != nil || goResp["reply"] != "go" {
			if !sleepOrStop(stop, abortDelay) {
				return
			}
			continue
		}

		if m.printTasks {
			util.ConsoleMessage("tdoa", "targeting %.0f for %v", tdoaFreq, requestor)
		}

		// Capture, correlation, and relay of the resulting samples to
		// the server are not implemented.
		util.ConsoleMessage("tdoa", "accepted task for %.0f but capture is unimplemented", tdoaFreq)
		if !sleepOrStop(stop, abortDelay) {
			return
		}
	}
}

func sleepOrStop(stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
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
	if name != "print_tasks" {
		return nil
	}
	if value != nil {
		m.printTasks = *value == "1"
	}
	return m.printTasks
}
