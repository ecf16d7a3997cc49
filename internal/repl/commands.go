package repl

import (
	"sort"
	"strings"
	"time"

	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/util"
)

func cmdHelp(k *Kernel, args string) {
	util.ConsoleMessageBare("")
	util.ConsoleMessageBare("%s", VersionString)
	util.ConsoleMessageBare("Type 'quit' to quit")
	util.ConsoleMessageBare("")

	names := make([]string, 0, len(k.commands))
	for name := range k.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		util.ConsoleMessageBare("%-18s| %s", name, k.commandHelp[name])
	}
	util.ConsoleMessageBare("")
}

func cmdInteresting(k *Kernel, args string) {
	entries, err := k.ctx.Connector.FetchInteresting()
	if err != nil {
		util.ConsoleMessage("", "error getting interesting freqs")
		return
	}
	if len(entries) == 0 {
		util.ConsoleMessageBare("no interesting freqs registered")
		return
	}
	for _, e := range entries {
		util.ConsoleMessageBare("%-12.0f %s", e.Freq, e.Name)
	}
}

func cmdInterestingAdd(k *Kernel, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		util.ConsoleMessage("", "usage: interesting_add freq freqname; freq is integer or int rtl_power format, name is a word")
		return
	}

	freq, ok := util.StrToHz(fields[0])
	if !ok {
		util.ConsoleMessage("", "usage: interesting_add freq freqname; freq is integer or int rtl_power format, name is a word")
		return
	}

	if err := k.ctx.Connector.InterestingAdd(float64(freq), fields[1]); err != nil {
		util.ConsoleMessage("", "error updating interesting freqs")
		return
	}
	util.ConsoleMessage("", "interesting freqs updated")
}

func cmdInterestingDel(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: interesting_del freq; freq is an integer or in rtl_power format")
		return
	}

	freq, ok := util.StrToHz(args)
	if !ok {
		util.ConsoleMessage("", "usage: interesting_del freq; freq is an integer or in rtl_power format")
		return
	}

	if err := k.ctx.Connector.InterestingDel(float64(freq)); err != nil {
		util.ConsoleMessage("", "error updating interesting freqs")
	}
}

func cmdLocation(k *Kernel, args string) {
	util.ConsoleMessage("", "%s", k.ctx.Location.Status())
}

func cmdMessage(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: message target_station message")
		return
	}

	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		util.ConsoleMessage("", "usage: message target_station message")
		return
	}
	target, text := parts[0], parts[1]

	reply, err := k.ctx.Connector.SendCommand(map[string]any{
		"request": connector.ReqMessage,
		"target":  target,
		"message": text,
	})
	if err != nil || reply["reply"] != "ok" {
		util.ConsoleMessage("", "error sending message")
		return
	}
	util.ConsoleMessage("", "message sent")
}

func cmdMods(k *Kernel, args string) {
	for _, mod := range k.mods.All() {
		util.ConsoleMessageBare("%s", mod.Name())
		util.ConsoleMessageBare("%s", strings.Repeat("=", len(mod.Name())))
		util.ConsoleMessageBare("%s", mod.DocString())
		util.ConsoleMessageBare("")
	}
}

func cmdNow(k *Kernel, args string) {
	util.ConsoleMessageBare("%s", time.Now().UTC().Format("2006-01-02 15:04:05.000000"))
}

func cmdPwr(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: pwr freq")
		return
	}

	freq, ok := util.StrToHz(strings.Fields(args)[0])
	if !ok {
		util.ConsoleMessage("", "usage: pwr freq")
		return
	}

	if k.ctx.Spectrum == nil {
		util.ConsoleMessage("", "no wide-band device present")
		return
	}

	pwr, ok := k.ctx.Spectrum.PowerAt(freq)
	if !ok {
		util.ConsoleMessage("", "no reading yet for that frequency")
		return
	}
	util.ConsoleMessageBare("%.2f", pwr)
}

func cmdQuit(k *Kernel, args string) {
	k.shutdown()
	k.quit = true
}

func cmdRun(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "must specify which module to run")
		return
	}

	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 2 {
		util.ConsoleMessage("", "must specify a device number as the first argument")
		return
	}

	modName := fields[0]
	if _, ok := k.mods.Get(modName); !ok {
		util.ConsoleMessage("", "invalid module: %s", modName)
		return
	}

	devID := parseDevID(fields[1])
	argline := ""
	if len(fields) == 3 {
		argline = fields[2]
	}

	k.runModule(devID, modName, argline)
}

func cmdSettings(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: settings module [setting [value]]")
		return
	}

	fields := strings.Fields(args)
	if len(fields) > 3 {
		util.ConsoleMessage("", "usage: settings module [setting [value]]")
		return
	}

	modName := fields[0]
	mod, ok := k.mods.Get(modName)
	if !ok {
		util.ConsoleMessage("", "invalid module: %s", modName)
		return
	}

	if len(fields) == 1 {
		settings := mod.Settings()
		if len(settings) == 0 {
			util.ConsoleMessage("", "module %s has no settings", modName)
			return
		}
		names := make([]string, 0, len(settings))
		for name := range settings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			util.ConsoleMessage("", "%s: %v", name, settings[name])
		}
		return
	}

	settingName := fields[1]
	if len(fields) == 2 {
		v := mod.Setting(settingName, nil)
		if v == nil {
			util.ConsoleMessage("", "module %s has no toggleable setting %s", modName, settingName)
			return
		}
		util.ConsoleMessage("", "%s: %v", settingName, v)
		return
	}

	value := fields[2]
	v := mod.Setting(settingName, &value)
	if v == nil {
		util.ConsoleMessage("", "module %s has no toggleable setting %s", modName, settingName)
		return
	}
	util.ConsoleMessage("", "%s: %v", settingName, v)
}

func cmdStations(k *Kernel, args string) {
	util.ConsoleMessageBare("%s", k.ctx.Connector.StationsPretty(k.webURL))
}

func cmdDevs(k *Kernel, args string) {
	devs := k.ctx.Devices.All()
	if len(devs) == 0 {
		util.ConsoleMessage("", "no devices registered")
		return
	}

	for _, d := range devs {
		status := "free"
		if k.ctx.Devices.Reserved(d.ID) {
			status = "reserved"
		} else if job, ok := k.ctx.Devices.JobOn(d.ID); ok {
			status = "running " + job.Module
		}
		util.ConsoleMessageBare("%-6v %-10s %s", d.ID, d.Kind, status)
	}
}

func cmdReserve(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: reserve devid")
		return
	}

	devID := parseDevID(args)
	if err := k.ctx.Devices.Reserve(devID); err != nil {
		util.ConsoleMessage("", "%v", err)
		return
	}
	util.ConsoleMessage("", "device %v reserved", devID)
}

func cmdUnreserve(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: unreserve devid")
		return
	}

	devID := parseDevID(args)
	if err := k.ctx.Devices.Unreserve(devID); err != nil {
		util.ConsoleMessage("", "%v", err)
		return
	}
	util.ConsoleMessage("", "device %v unreserved", devID)
}

func cmdStop(k *Kernel, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		util.ConsoleMessage("", "usage: stop devid")
		return
	}

	devID := parseDevID(args)
	if k.ctx.Devices.Reserved(devID) {
		util.ConsoleMessage("", "device %v is reserved", devID)
		return
	}

	job, ok := k.ctx.Devices.JobOn(devID)
	if !ok {
		util.ConsoleMessage("", "device %v not running", devID)
		return
	}

	mod, ok := k.mods.Get(job.Module)
	if !ok {
		util.ConsoleMessage("", "module %s not loaded", job.Module)
		return
	}

	if mod.Stop(devID, k.ctx.Devices) {
		util.ConsoleMessage("", "stopped %s on device %v", job.Module, devID)
	} else {
		util.ConsoleMessage("", "could not stop %s on device %v", job.Module, devID)
	}
}
