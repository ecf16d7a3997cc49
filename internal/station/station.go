// Package station holds the process-wide shared context: the handles to
// every wired subsystem that module adapters and REPL commands close
// over, the same role the original's system_mods dict plays.
package station

import (
	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/location"
	"github.com/gammarf/station/internal/spectrum"
)

// Context bundles the kernel's wired subsystems so module adapters and
// REPL commands can be handed one struct instead of a dict of named
// handles.
type Context struct {
	Config    *config.Config
	Devices   *devices.Registry
	Location  location.Provider
	Spectrum  *spectrum.Spectrum // nil if no wide-band device is present
	Connector *connector.Connector
}

// New bundles the given subsystems into a Context.
func New(cfg *config.Config, devs *devices.Registry, loc location.Provider, spec *spectrum.Spectrum, conn *connector.Connector) *Context {
	return &Context{
		Config:    cfg,
		Devices:   devs,
		Location:  loc,
		Spectrum:  spec,
		Connector: conn,
	}
}
