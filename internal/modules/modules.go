// Package modules defines the worker-module contract every per-module
// adapter implements (the abstract boundary the kernel requires of them;
// their DSP content is out of scope per the kernel's own specification)
// and the static registry of constructors the kernel loads by name.
package modules

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

// Command is an additional REPL command a module contributes.
type Command struct {
	Name string
	Help string
}

// Descriptor is the contract every worker module adapter implements.
type Descriptor interface {
	Name() string
	Description() string
	DocString() string
	SupportedDeviceKinds() []devices.Kind
	IsPseudo() bool
	IsProxy() bool
	Settings() map[string]any
	Commands() []Command

	Init(cfg *config.Config) error
	// Run starts the module on devID with the given REPL argument line.
	// remoteTask is true when invoked by the remote-task dispatcher
	// rather than interactively. Returns false if the module refused to
	// start (bad args, device unavailable, etc).
	Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool
	// Stop halts whatever is running on devID and frees it in reg.
	// Returns false if nothing was running there.
	Stop(devID any, reg *devices.Registry) bool
	Shutdown()
	// Setting gets (value == nil) or sets (value != nil) a named setting,
	// returning the resulting value.
	Setting(name string, value *string) any
}

// CommandHandler is implemented by modules that contribute their own
// top-level REPL commands via Commands() (e.g. remotetask's "remotetask"
// command, for requesting a task from another station rather than
// running one locally). The kernel dispatches a matching command line
// here instead of through Run.
type CommandHandler interface {
	HandleCommand(ctx *station.Context, name, argline string)
}

// Constructor builds a fresh Descriptor instance. Modules are
// statically compiled in and looked up by name here rather than
// dynamically imported, since Go has no runtime import_module
// equivalent - the original's dynamic module loading by name becomes
// this constructor table.
type Constructor func() Descriptor

// Constructors is the static table of every module name the station
// knows how to build, populated by each adapter's init().
var Constructors = orderedmap.New[string, Constructor]()

// Register adds a constructor under name. Called from each adapter
// package's init().
func Register(name string, ctor Constructor) {
	Constructors.Set(name, ctor)
}

// Registry holds the live, Init'd Descriptors the kernel loaded for this
// run, keyed by name in load order.
type Registry struct {
	mods *orderedmap.OrderedMap[string, Descriptor]
}

// NewRegistry builds descriptors for each requested name via
// Constructors, calling Init on each. Load order is preserved; an
// unknown module name or a failing Init is logged and that module is
// skipped rather than aborting the whole load - one bad entry in
// [modules].modules shouldn't keep the station from booting with the
// rest. Duplicate names, by contrast, are a fatal configuration error:
// they signal a broken config file rather than one misbehaving module.
func NewRegistry(names []string, cfg *config.Config) (*Registry, error) {
	reg := &Registry{mods: orderedmap.New[string, Descriptor]()}

	for _, name := range names {
		if _, exists := reg.mods.Get(name); exists {
			return nil, fmt.Errorf("module %q listed more than once in configuration", name)
		}

		ctor, ok := Constructors.Get(name)
		if !ok {
			util.ConsoleMessage("modules", "unknown module %q, skipping", name)
			continue
		}

		desc := ctor()
		if err := desc.Init(cfg); err != nil {
			util.ConsoleMessage("modules", "module %q failed to initialize, skipping: %v", name, err)
			continue
		}

		reg.mods.Set(name, desc)
	}

	return reg, nil
}

// Get returns the loaded module by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	return r.mods.Get(name)
}

// All returns every loaded module, load order first.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, r.mods.Len())
	for pair := r.mods.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Names returns every loaded module's name, load order first.
func (r *Registry) Names() []string {
	out := make([]string, 0, r.mods.Len())
	for pair := r.mods.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Shutdown calls Shutdown on every loaded module.
func (r *Registry) Shutdown() {
	for _, d := range r.All() {
		d.Shutdown()
	}
}
