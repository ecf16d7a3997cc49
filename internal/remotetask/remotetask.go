// Package remotetask implements the remotetask proxy module: it lets
// this station both run tasks on behalf of other stations (a
// Dispatcher polling rtask_get/askcancel against the server, driving a
// locally loaded module's Run/Stop) and request another station run a
// task on this station's behalf (Request, sending rtask_put).
package remotetask

import (
	"strconv"
	"strings"
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
	modName         = "remotetask"
	protocolVersion = 1
	errorSleep      = 1 * time.Second
	loopSleep       = 5 * time.Second
	threadTimeout   = 3 * time.Second
)

func init() {
	modules.Register(modName, func() modules.Descriptor { return New() })
}

// Module is the remotetask proxy module adapter. It never does work
// itself; IsProxy reports true so the kernel knows not to treat it like
// a worker module when iterating devices.
type Module struct {
	mu         sync.Mutex
	printTasks bool
	workers    []*worker
	registry   *modules.Registry
}

type worker struct {
	devID      any
	targetMod  string
	cancel     func()
	done       chan struct{}
}

// New returns an uninitialized remotetask module with print_tasks on by
// default, matching the original's default settings.
func New() *Module {
	return &Module{printTasks: true}
}

func (m *Module) Name() string        { return modName }
func (m *Module) Description() string { return "run tasks for others" }
func (m *Module) DocString() string {
	return "Usage: run remotetask devid module\n" +
		"or: remotetask station duration module args\n" +
		"    (to request another station run a module on your behalf;\n" +
		"     duration is in seconds)\n" +
		"Example: run remotetask 0 scanner\n" +
		"Example: remotetask grf01 5000 freqwatch 100M"
}
func (m *Module) SupportedDeviceKinds() []devices.Kind {
	return []devices.Kind{devices.WideBand, devices.NarrowBand, devices.Virtual}
}
func (m *Module) IsPseudo() bool { return false }
func (m *Module) IsProxy() bool  { return true }
func (m *Module) Settings() map[string]any {
	return map[string]any{"print_tasks": m.printTasks}
}
func (m *Module) Commands() []modules.Command {
	return []modules.Command{{Name: "remotetask", Help: "request a task be run on another station"}}
}
func (m *Module) Init(cfg *config.Config) error { return nil }

// BindRegistry gives the dispatcher access to the kernel's loaded module
// registry, so it can look up and drive other modules by name. The
// kernel calls this once after building the registry - remotetask can't
// take the registry as a constructor argument since modules.Registry
// isn't built until every module, including remotetask itself, is
// constructed.
func (m *Module) BindRegistry(reg *modules.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = reg
}

// Request parses reqline as "station duration(s) module [args]" and sends
// an rtask_put asking that station to run module on our behalf for that
// many seconds, with args (or "none") as its parameters. The outcome is
// reported on the console; nothing is returned.
func (m *Module) Request(ctx *station.Context, reqline string) {
	fields := strings.SplitN(strings.TrimSpace(reqline), " ", 4)
	if len(fields) < 3 {
		util.ConsoleMessage(modName, "usage: remotetask station duration(s) module [args]")
		return
	}

	target := fields[0]
	duration, err := strconv.Atoi(fields[1])
	if err != nil {
		util.ConsoleMessage(modName, "usage: remotetask station duration(s) module [args]")
		return
	}
	mod := fields[2]
	params := "none"
	if len(fields) == 4 {
		params = fields[3]
	}

	resp, err := ctx.Connector.SendCommand(map[string]any{
		"request":  connector.ReqRtaskPut,
		"target":   target,
		"duration": duration,
		"module":   mod,
		"protocol": protocolVersion,
		"params":   params,
	})
	if err != nil {
		util.ConsoleMessage(modName, "error sending task: %v", err)
		return
	}

	switch resp["reply"] {
	case "ok":
		util.ConsoleMessage(modName, "task sent")
	case "task_exists":
		util.ConsoleMessage(modName, "only one uncompleted request per module type per station can exist at once")
	default:
		util.ConsoleMessage(modName, "error sending task: %v", resp["error"])
	}
}

// HandleCommand implements modules.CommandHandler for the "remotetask"
// REPL command contributed via Commands() - it forwards straight to
// Request, ignoring name since this module contributes only the one
// command.
func (m *Module) HandleCommand(ctx *station.Context, name, argline string) {
	m.Request(ctx, argline)
}

// Run starts a Dispatcher that polls the server for tasks targeting
// mod and drives them on devID, using our own loaded instance of mod.
func (m *Module) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	mod := strings.TrimSpace(argline)
	if mod == "" {
		util.ConsoleMessage(modName, "%s", m.DocString())
		return false
	}
	if mod == modName {
		util.ConsoleMessage(modName, "remotetask cannot be run remotely")
		return false
	}
	if mod == "tdoa" {
		util.ConsoleMessage(modName, "module cannot be run remotely")
		return false
	}

	m.mu.Lock()
	reg := m.registry
	m.mu.Unlock()
	if reg == nil {
		util.ConsoleMessage(modName, "module registry not bound")
		return false
	}

	target, ok := reg.Get(mod)
	if !ok {
		util.ConsoleMessage(modName, "invalid module: %s", mod)
		return false
	}
	if target.IsPseudo() {
		util.ConsoleMessage(modName, "remotetask does not support pseudo modules")
		return false
	}

	devType, ok := ctx.Devices.DevType(devID)
	if !ok {
		util.ConsoleMessage(modName, "unknown device: %v", devID)
		return false
	}
	supported := false
	for _, k := range target.SupportedDeviceKinds() {
		if k == devType {
			supported = true
			break
		}
	}
	if !supported {
		util.ConsoleMessage(modName, "device type %s not supported by module", devType)
		return false
	}

	done := make(chan struct{})
	w := &worker{devID: devID, targetMod: mod, done: done}
	w.cancel = sync.OnceFunc(func() { close(done) })

	m.mu.Lock()
	m.workers = append(m.workers, w)
	m.mu.Unlock()

	go m.dispatch(ctx, w, target)

	util.ConsoleMessage(modName, "%s added on device %v", m.Description(), devID)
	return true
}

func (m *Module) dispatch(ctx *station.Context, w *worker, target modules.Descriptor) {
	defer ctx.Devices.Free(w.devID)

	for {
		select {
		case <-w.done:
			return
		default:
		}

		resp, err := ctx.Connector.SendCommand(map[string]any{
			"request":  connector.ReqRtaskGet,
			"module":   w.targetMod,
			"protocol": protocolVersion,
		})
		if err != nil {
			if !m.sleepOrDone(w, errorSleep) {
				return
			}
			continue
		}

		switch resp["reply"] {
		case "ok":
			m.runTask(ctx, w, target, resp)
		case "error":
			util.ConsoleMessage(modName, "error receiving task: %v", resp["error"])
			if !m.sleepOrDone(w, loopSleep) {
				return
			}
		default: // "none"
			if !m.sleepOrDone(w, loopSleep) {
				return
			}
		}
	}
}

func (m *Module) runTask(ctx *station.Context, w *worker, target modules.Descriptor, resp map[string]any) {
	durationF, ok1 := resp["duration"].(float64)
	fromStn, ok2 := resp["from"]
	taskID, ok3 := resp["taskid"]
	params, ok4 := resp["params"].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	duration := time.Duration(durationF) * time.Second

	if !target.Run(ctx, w.devID, params, true) {
		return
	}
	started := time.Now()

	if m.printTasks {
		util.ConsoleMessage(modName, "received %s task from %v with duration %s and params %q for device %v",
			w.targetMod, fromStn, duration, params, w.devID)
	}

	for {
		if time.Since(started) >= duration {
			target.Stop(w.devID, ctx.Devices)
			if m.printTasks {
				util.ConsoleMessage(modName, "finished %s task on device %v", w.targetMod, w.devID)
			}
			return
		}

		select {
		case <-w.done:
			target.Stop(w.devID, ctx.Devices)
			return
		default:
		}

		resp, err := ctx.Connector.SendCommand(map[string]any{
			"request":  connector.ReqRtaskAskCancel,
			"taskid":   taskID,
			"protocol": protocolVersion,
		})
		if err == nil {
			switch resp["reply"] {
			case "cancel":
				util.ConsoleMessage(modName, "job for %s on device %v canceled by server", w.targetMod, w.devID)
				target.Stop(w.devID, ctx.Devices)
				return
			case "error":
				util.ConsoleMessage(modName, "error asking cancel status for task: %v", resp["error"])
			}
		}

		if !m.sleepOrDone(w, loopSleep) {
			target.Stop(w.devID, ctx.Devices)
			return
		}
	}
}

func (m *Module) sleepOrDone(w *worker, d time.Duration) bool {
	select {
	case <-w.done:
		return false
	case <-time.After(d):
		return true
	}
}

// Stop halts the dispatcher running on devID.
func (m *Module) Stop(devID any, reg *devices.Registry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.workers {
		if w.devID == devID {
			w.cancel()
			m.workers = append(m.workers[:i], m.workers[i+1:]...)
			return true
		}
	}
	return false
}

// Shutdown cancels every outstanding dispatcher.
func (m *Module) Shutdown() {
	m.mu.Lock()
	workers := m.workers
	m.workers = nil
	m.mu.Unlock()

	for _, w := range workers {
		w.cancel()
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
