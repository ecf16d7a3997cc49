package repl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gammarf/station/internal/devices"
)

// replCompleter implements readline.AutoCompleter, reproducing the
// original's per-position completion rules: command names for the first
// word, then an argument-specific candidate set depending on which
// command is being typed.
type replCompleter struct {
	k *Kernel
}

func (c *replCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	endsWithSpace := strings.HasSuffix(text, " ")
	fields := strings.Fields(text)

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		frag := ""
		if len(fields) == 1 {
			frag = fields[0]
		}
		return completeFrom(frag, c.commandNames())
	}

	cmd := fields[0]
	var rest []string
	if endsWithSpace {
		rest = fields[1:]
	} else {
		rest = fields[1 : len(fields)-1]
	}
	argIndex := len(rest)

	frag := ""
	if !endsWithSpace {
		frag = fields[len(fields)-1]
	}

	switch cmd {
	case "run":
		switch argIndex {
		case 0:
			return completeFrom(frag, c.k.mods.Names())
		case 1:
			return completeFrom(frag, c.runnableDeviceStrings())
		}
	case "stop":
		if argIndex == 0 {
			return completeFrom(frag, c.occupiedDeviceStrings())
		}
	case "reserve":
		if argIndex == 0 {
			return completeFrom(frag, c.reservableDeviceStrings())
		}
	case "unreserve":
		if argIndex == 0 {
			return completeFrom(frag, c.reservedDeviceStrings())
		}
	case "settings":
		switch argIndex {
		case 0:
			return completeFrom(frag, c.k.mods.Names())
		case 1:
			if mod, ok := c.k.mods.Get(rest[0]); ok {
				names := make([]string, 0)
				for name := range mod.Settings() {
					names = append(names, name)
				}
				sort.Strings(names)
				return completeFrom(frag, names)
			}
		}
	case "message":
		if argIndex == 0 {
			return completeFrom(frag, c.stationNames())
		}
	}

	return nil, 0
}

func completeFrom(frag string, options []string) ([][]rune, int) {
	var out [][]rune
	for _, o := range options {
		if strings.HasPrefix(o, frag) {
			out = append(out, []rune(o[len(frag):]))
		}
	}
	return out, len(frag)
}

func (c *replCompleter) commandNames() []string {
	names := make([]string, 0, len(c.k.commands))
	for name := range c.k.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *replCompleter) runnableDeviceStrings() []string {
	var out []string
	for _, d := range c.k.ctx.Devices.All() {
		if c.k.ctx.Devices.Reserved(d.ID) {
			continue
		}
		if _, occupied := c.k.ctx.Devices.JobOn(d.ID); occupied {
			continue
		}
		out = append(out, devIDString(d.ID))
	}
	return out
}

func (c *replCompleter) occupiedDeviceStrings() []string {
	var out []string
	for _, id := range c.k.ctx.Devices.RunningIDs() {
		out = append(out, devIDString(id))
	}
	return out
}

func (c *replCompleter) reservableDeviceStrings() []string {
	var out []string
	for _, d := range c.k.ctx.Devices.All() {
		if d.Kind == devices.WideBand {
			continue
		}
		if c.k.ctx.Devices.Reserved(d.ID) {
			continue
		}
		if _, occupied := c.k.ctx.Devices.JobOn(d.ID); occupied {
			continue
		}
		out = append(out, devIDString(d.ID))
	}
	return out
}

func (c *replCompleter) reservedDeviceStrings() []string {
	var out []string
	for _, d := range c.k.ctx.Devices.All() {
		if c.k.ctx.Devices.Reserved(d.ID) {
			out = append(out, devIDString(d.ID))
		}
	}
	return out
}

func (c *replCompleter) stationNames() []string {
	stations := c.k.ctx.Connector.StationsList(c.k.webURL)
	names := make([]string, 0, len(stations))
	for _, s := range stations {
		names = append(names, s.Station)
	}
	return names
}

func devIDString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", id)
}
