// Package repl implements the station's interactive console: the Kernel
// boot sequence that wires config, device enumeration, location, the
// wide-band spectrum sweep and the server connector together, loads the
// configured worker modules, runs [startup] tasks, and then drives a
// chzyer/readline command loop over them - the Go counterpart of the
// original's single gammarf.py process.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/hackrf"
	"github.com/gammarf/station/internal/location"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/rtlsdr"
	"github.com/gammarf/station/internal/spectrum"
	"github.com/gammarf/station/internal/station"
	"github.com/gammarf/station/internal/util"
)

// VersionString is printed at startup and by "help", matching the
// original's banner line.
const VersionString = "gammarf-station"

const banner = `
   _____                                             _____
  / ____|                                           |  __ \
 | |  __  __ _ _ __ ___  _ __ ___   __ _ _ __ ______ | |__) |
 | | |_ |/ _' | '_ ' _ \| '_ ' _ \ / _' | '__|______||  _  /
 | |__| | (_| | | | | | | | | | | | (_| | |         | | \ \
  \_____|\__,_|_| |_| |_|_| |_| |_|\__,_|_|         |_|  \_\
`

// pseudoDevBase is the first device id reserved for pseudo modules
// (those with no physical or virtual device backing them).
const pseudoDevBase = 9000

// commandFunc is the handler signature for both built-in and
// device-registry REPL commands.
type commandFunc func(k *Kernel, args string)

// Kernel owns every wired subsystem plus the loaded module set and the
// REPL's command table; it is the Go analogue of the original's
// grfstate object.
type Kernel struct {
	cfg  *config.Config
	ctx  *station.Context
	mods *modules.Registry
	log  *logrus.Logger

	specCancel    context.CancelFunc
	stopConnector chan struct{}

	webURL string
	prompt string

	commands    map[string]commandFunc
	commandHelp map[string]string

	quit bool
}

// Boot reads configPath, wires every system subsystem in order
// (config -> devices -> location -> spectrum -> connector), blocks on
// the spectrum sweep's first full pass if a wide-band device is
// present, loads the configured modules, builds the REPL command table,
// and finally runs [startup] tasks. The returned Kernel is ready for
// Run.
func Boot(configPath string) (*Kernel, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logrus.New()

	devReg := devices.New()

	var wbProbe devices.HackRFProbe
	if cfg.HackRFDevs != nil {
		if dev, err := hackrf.Open(cfg.HackRFDevs.MinFreq, cfg.HackRFDevs.MaxFreq); err == nil {
			wbProbe = dev
		} else {
			log.WithError(err).Warn("wide-band device not available")
		}
	}

	lnaGain, vgaGain, step := 0, 0, int64(0)
	if cfg.HackRFDevs != nil {
		lnaGain, vgaGain, step = cfg.HackRFDevs.LNAGain, cfg.HackRFDevs.VGAGain, cfg.HackRFDevs.Step
	}
	devReg.Enumerate(wbProbe, rtlsdr.Probe{}, lnaGain, vgaGain, step)
	for _, d := range devReg.All() {
		if d.Kind != devices.NarrowBand {
			continue
		}
		if v, ok := cfg.RTLDevs.GainFor(d.Serial); ok {
			d.Gain = v
		}
		if v, ok := cfg.RTLDevs.PPMFor(d.Serial); ok {
			d.PPM = v
		}
		if v, ok := cfg.RTLDevs.OffsetFor(d.Serial); ok {
			d.Offset = v
		}
		if lo, hi, ok := cfg.RTLDevs.RangeFor(d.Serial); ok {
			d.MinFreq, d.MaxFreq = lo, hi
		}
	}
	if len(devReg.All()) == 0 {
		return nil, fmt.Errorf("no devices found")
	}

	var loc location.Provider
	if cfg.Location.UseGPS {
		loc = location.NewGPS("localhost:2947")
	} else {
		loc = location.NewStatic(cfg.Location.Lat, cfg.Location.Lng)
	}

	var spec *spectrum.Spectrum
	var specCancel context.CancelFunc
	if wbProbe != nil && wbProbe.Present() && cfg.HackRFDevs != nil {
		if sampler, ok := wbProbe.(spectrum.Sampler); ok {
			spec = spectrum.New(sampler, cfg.HackRFDevs.MinFreq, cfg.HackRFDevs.MaxFreq, cfg.HackRFDevs.Step)
			var specCtx context.Context
			specCtx, specCancel = context.WithCancel(context.Background())
			go spec.Run(specCtx)
		}
	}

	dataURL := fmt.Sprintf("ws://%s:%d", cfg.Connector.ServerHost, cfg.Connector.DataPort)
	cmdURL := fmt.Sprintf("ws://%s:%d", cfg.Connector.ServerHost, cfg.Connector.CmdPort)
	conn := connector.New(connector.NewGorillaDialer(), dataURL, cmdURL, cfg.Connector.StationID, cfg.Connector.StationPass, loc, devReg, log)
	stopConnector := make(chan struct{})
	conn.Run(stopConnector)

	if spec != nil {
		for !spec.IsReady() {
			util.ConsoleMessage("kernel", "waiting for freqmap to populate")
			time.Sleep(2 * time.Second)
		}
	}

	ctx := station.New(cfg, devReg, loc, spec, conn)

	modReg, err := modules.NewRegistry(cfg.Modules.Names, cfg)
	if err != nil {
		return nil, err
	}
	if rt, ok := modReg.Get("remotetask"); ok {
		if binder, ok := rt.(interface{ BindRegistry(*modules.Registry) }); ok {
			binder.BindRegistry(modReg)
		}
	}

	k := &Kernel{
		cfg:           cfg,
		ctx:           ctx,
		mods:          modReg,
		log:           log,
		specCancel:    specCancel,
		stopConnector: stopConnector,
		webURL:        fmt.Sprintf("%s://%s:%s/util/locations", cfg.Connector.ServerWebProto, cfg.Connector.ServerHost, cfg.Connector.ServerWebPort),
		prompt:        fmt.Sprintf("%s \u0393RF> ", cfg.Connector.StationID),
		commands:      map[string]commandFunc{},
		commandHelp:   map[string]string{},
	}

	if err := k.buildCommandTable(); err != nil {
		return nil, err
	}

	k.runStartup()

	return k, nil
}

func (k *Kernel) register(name, help string, fn commandFunc) error {
	if _, exists := k.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	k.commands[name] = fn
	k.commandHelp[name] = help
	return nil
}

func (k *Kernel) buildCommandTable() error {
	builtins := []struct {
		name string
		help string
		fn   commandFunc
	}{
		{"help", "show this help", cmdHelp},
		{"interesting", "show current interesting frequencies for this node", cmdInteresting},
		{"interesting_add", "add an interesting frequency: interesting_add freq name", cmdInterestingAdd},
		{"interesting_del", "delete an interesting frequency: interesting_del freq", cmdInterestingDel},
		{"location", "show station location and GPS status", cmdLocation},
		{"message", "send a message to another station: message target text", cmdMessage},
		{"mods", "show available modules", cmdMods},
		{"now", "show the current time (UTC)", cmdNow},
		{"pwr", "show the power at a frequency: pwr freq", cmdPwr},
		{"quit", "quit", cmdQuit},
		{"run", "run a module on a device: run module devid [args]", cmdRun},
		{"settings", "show/set a module's settings: settings module [setting [value]]", cmdSettings},
		{"stations", "show stations associated with the cluster", cmdStations},
		{"devs", "list registered devices", cmdDevs},
		{"reserve", "reserve a device: reserve devid", cmdReserve},
		{"unreserve", "unreserve a device: unreserve devid", cmdUnreserve},
		{"stop", "stop a running module: stop devid", cmdStop},
	}
	for _, b := range builtins {
		if err := k.register(b.name, b.help, b.fn); err != nil {
			return err
		}
	}

	for _, mod := range k.mods.All() {
		modName := mod.Name()
		for _, c := range mod.Commands() {
			c := c
			fn := func(k *Kernel, args string) { k.dispatchModuleCommand(modName, c.Name, args) }
			if err := k.register(c.Name, c.Help, fn); err != nil {
				return err
			}
		}
	}

	return nil
}

func (k *Kernel) dispatchModuleCommand(modName, cmdName, args string) {
	mod, ok := k.mods.Get(modName)
	if !ok {
		return
	}
	handler, ok := mod.(modules.CommandHandler)
	if !ok {
		util.ConsoleMessage("kernel", "module %s does not handle its own commands", modName)
		return
	}
	handler.HandleCommand(k.ctx, cmdName, args)
}

// Run starts the readline command loop, blocking until "quit" or EOF
// (Ctrl-D).
func (k *Kernel) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          k.prompt,
		AutoComplete:    &replCompleter{k: k},
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	util.ConsoleMessageBare("%s", banner)
	util.ConsoleMessageBare("%s", VersionString)
	util.ConsoleMessageBare("Type 'quit' to quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		args := ""
		if len(fields) == 2 {
			args = fields[1]
		}

		k.dispatch(cmd, args)
		if k.quit {
			break
		}
	}

	if !k.quit {
		k.shutdown()
	}
	return nil
}

func (k *Kernel) dispatch(cmd, args string) {
	fn, ok := k.commands[cmd]
	if !ok {
		util.ConsoleMessage("", "bad command.  Type 'help'.")
		return
	}
	fn(k, args)
}

func (k *Kernel) shutdown() {
	k.mods.Shutdown()

	if k.specCancel != nil {
		k.specCancel()
	}
	if k.stopConnector != nil {
		close(k.stopConnector)
	}
}

// runModule implements the "run" semantics shared by the REPL's "run"
// command and [startup] task dispatch: refuse an unknown/system module,
// a pseudo module with too low a devid, a reserved or occupied device,
// or (for non-proxy modules) a device type the module doesn't support;
// otherwise occupy the device (a wide-band id transparently swaps to a
// fresh virtual slot) and start the module, freeing the occupancy again
// if Run itself reports failure.
func (k *Kernel) runModule(devID any, modName, argline string) bool {
	mod, ok := k.mods.Get(modName)
	if !ok {
		util.ConsoleMessage("kernel", "invalid module: %s", modName)
		return false
	}

	if mod.IsPseudo() {
		n, ok := devID.(int)
		if !ok || n < pseudoDevBase {
			util.ConsoleMessage("kernel", "pseudo modules must use devid >= %d", pseudoDevBase)
			return false
		}
		if err := k.ctx.Devices.OccupyPseudo(devID, &devices.Job{Module: modName, ArgLine: argline, StartedAt: time.Now()}); err != nil {
			util.ConsoleMessage("kernel", "%v", err)
			return false
		}
		if !mod.Run(k.ctx, devID, argline, false) {
			k.ctx.Devices.Free(devID)
			return false
		}
		return true
	}

	if !k.ctx.Devices.IsDevice(devID) {
		util.ConsoleMessage("kernel", "not a device: %v", devID)
		return false
	}
	if k.ctx.Devices.Reserved(devID) {
		util.ConsoleMessage("kernel", "cannot run module: device %v is reserved", devID)
		return false
	}
	if _, occupied := k.ctx.Devices.JobOn(devID); occupied {
		util.ConsoleMessage("kernel", "cannot run module: device %v occupied", devID)
		return false
	}

	devType, _ := k.ctx.Devices.DevType(devID)
	if !mod.IsProxy() {
		supported := false
		for _, kind := range mod.SupportedDeviceKinds() {
			if kind == devType {
				supported = true
				break
			}
		}
		if !supported {
			util.ConsoleMessage("kernel", "device type %s not supported by module", devType)
			return false
		}
	}

	occupiedID, err := k.ctx.Devices.Occupy(devID, &devices.Job{Module: modName, ArgLine: argline, StartedAt: time.Now()})
	if err != nil {
		util.ConsoleMessage("kernel", "%v", err)
		return false
	}

	if !mod.Run(k.ctx, occupiedID, argline, false) {
		k.ctx.Devices.Free(occupiedID)
		return false
	}
	return true
}

// runStartup runs [startup] entries in the order: each narrow-band
// device's startup_<serial>, then startup_virtual (comma-separated,
// run on the wide-band device), then startup_9000, startup_9001, ...
// for pseudo devices, stopping at the first missing key.
func (k *Kernel) runStartup() {
	type job struct {
		devID   any
		cmdline string
	}
	var jobs, virtJobs []job

	if wb := k.wideBandDevice(); wb != nil {
		if raw, ok := k.cfg.Startup["startup_virtual"]; ok {
			for _, cmdline := range strings.Split(raw, ",") {
				cmdline = strings.TrimSpace(cmdline)
				if cmdline != "" {
					virtJobs = append(virtJobs, job{devID: wb.ID, cmdline: cmdline})
				}
			}
		}
	}

	for _, d := range k.ctx.Devices.All() {
		if d.Kind != devices.NarrowBand || d.Serial == "" {
			continue
		}
		if cmdline, ok := k.cfg.Startup["startup_"+d.Serial]; ok {
			jobs = append(jobs, job{devID: d.ID, cmdline: cmdline})
		}
	}
	jobs = append(jobs, virtJobs...)

	for _, j := range jobs {
		k.runStartupEntry(j.devID, j.cmdline, false)
	}

	for n := pseudoDevBase; ; n++ {
		cmdline, ok := k.cfg.Startup["startup_"+strconv.Itoa(n)]
		if !ok {
			break
		}
		k.runStartupEntry(n, cmdline, true)
	}
}

func (k *Kernel) runStartupEntry(devID any, cmdline string, pseudo bool) {
	fields := strings.SplitN(strings.TrimSpace(cmdline), " ", 2)
	modName := fields[0]
	args := ""
	if len(fields) == 2 {
		args = fields[1]
	}

	if pseudo {
		mod, ok := k.mods.Get(modName)
		if !ok {
			util.ConsoleMessage("kernel", "unknown startup module: %s", modName)
			return
		}
		if !mod.IsPseudo() {
			util.ConsoleMessage("kernel", "module %s does not support pseudo devices", modName)
			return
		}
		k.runModule(devID, modName, args)
		return
	}

	k.runModule(devID, modName, args)
}

func (k *Kernel) wideBandDevice() *devices.Device {
	for _, d := range k.ctx.Devices.All() {
		if d.Kind == devices.WideBand {
			return d
		}
	}
	return nil
}

// parseDevID turns a REPL argument into the any-typed id the device
// registry keys on: an int for physical/pseudo devices, or the raw
// string itself for a virtual slot letter.
func parseDevID(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
