// Package config loads the station's gammarf.conf INI file (§6.1) into a
// typed Config, replacing the original's exception-driven optional-key
// reads with explicit (value, ok) lookups.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Connector holds the [connector] section.
type Connector struct {
	StationID      string
	StationPass    string
	ServerHost     string
	DataPort       int
	CmdPort        int
	ServerWebProto string
	ServerWebPort  string
}

// Location holds the [location] section.
type Location struct {
	UseGPS bool
	Lat    float64
	Lng    float64
}

// Modules holds the [modules] section.
type Modules struct {
	Names []string
}

// RTLDevs holds the [rtldevs] section: the shared rtl_adsb path plus
// arbitrary per-serial overrides, looked up by serial on demand.
type RTLDevs struct {
	RTLPath      string
	RTL2FreqPath string
	raw          *ini.Section
}

// GainFor returns the gain_<serial> override, if present.
func (r *RTLDevs) GainFor(serial string) (float64, bool) {
	if r.raw == nil {
		return 0, false
	}
	key := "gain_" + serial
	if !r.raw.HasKey(key) {
		return 0, false
	}
	v, err := r.raw.Key(key).Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// PPMFor returns the ppm_<serial> override, if present.
func (r *RTLDevs) PPMFor(serial string) (int, bool) {
	if r.raw == nil {
		return 0, false
	}
	key := "ppm_" + serial
	if !r.raw.HasKey(key) {
		return 0, false
	}
	v, err := r.raw.Key(key).Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

// OffsetFor returns the offset_<serial> override, if present.
func (r *RTLDevs) OffsetFor(serial string) (int, bool) {
	if r.raw == nil {
		return 0, false
	}
	key := "offset_" + serial
	if !r.raw.HasKey(key) {
		return 0, false
	}
	v, err := r.raw.Key(key).Int()
	if err != nil {
		return 0, false
	}
	return v, true
}

// RangeFor returns the range_<serial> override ("<minMHz> <maxMHz>"),
// parsed into Hz, if present.
func (r *RTLDevs) RangeFor(serial string) (minHz, maxHz int64, ok bool) {
	if r.raw == nil {
		return 0, 0, false
	}
	key := "range_" + serial
	if !r.raw.HasKey(key) {
		return 0, 0, false
	}
	fields := strings.Fields(r.raw.Key(key).String())
	if len(fields) != 2 {
		return 0, 0, false
	}
	minMHz, err1 := strconv.ParseFloat(fields[0], 64)
	maxMHz, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return int64(minMHz * 1e6), int64(maxMHz * 1e6), true
}

// HackRFDevs holds the optional [hackrfdevs] section.
type HackRFDevs struct {
	LNAGain int
	VGAGain int
	MinFreq int64
	MaxFreq int64
	Step    int64
}

// Scanner holds the optional [scanner] section.
type Scanner struct {
	HitDB float64
}

// Config is the fully-parsed gammarf.conf.
type Config struct {
	Connector  Connector
	Location   Location
	Modules    Modules
	RTLDevs    RTLDevs
	HackRFDevs *HackRFDevs
	Scanner    *Scanner
	Startup    map[string]string

	file *ini.File
}

// Load reads and validates the INI file at path.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not open configuration file %s: %w", path, err)
	}

	cfg := &Config{file: f, Startup: map[string]string{}}

	if err := cfg.loadConnector(); err != nil {
		return nil, err
	}
	if err := cfg.loadLocation(); err != nil {
		return nil, err
	}
	if err := cfg.loadModules(); err != nil {
		return nil, err
	}
	cfg.loadRTLDevs()
	cfg.loadHackRFDevs()
	cfg.loadScanner()
	cfg.loadStartup()

	return cfg, nil
}

func requireKey(sec *ini.Section, key string) (string, error) {
	if sec == nil || !sec.HasKey(key) {
		return "", fmt.Errorf("param %q not appropriately defined in config", key)
	}
	return sec.Key(key).String(), nil
}

func (c *Config) loadConnector() error {
	sec := c.file.Section("connector")
	if sec == nil {
		return fmt.Errorf("no connector section defined in config")
	}

	var err error
	if c.Connector.StationID, err = requireKey(sec, "station_id"); err != nil {
		return err
	}
	if c.Connector.StationPass, err = requireKey(sec, "station_pass"); err != nil {
		return err
	}
	if c.Connector.ServerHost, err = requireKey(sec, "server_host"); err != nil {
		return err
	}

	dataPort, err := requireKey(sec, "data_port")
	if err != nil {
		return err
	}
	c.Connector.DataPort, err = strconv.Atoi(dataPort)
	if err != nil {
		return fmt.Errorf("invalid data_port: %w", err)
	}

	cmdPort, err := requireKey(sec, "cmd_port")
	if err != nil {
		return err
	}
	c.Connector.CmdPort, err = strconv.Atoi(cmdPort)
	if err != nil {
		return fmt.Errorf("invalid cmd_port: %w", err)
	}

	if c.Connector.ServerWebProto, err = requireKey(sec, "server_web_proto"); err != nil {
		return err
	}
	if c.Connector.ServerWebPort, err = requireKey(sec, "server_web_port"); err != nil {
		return err
	}

	return nil
}

func (c *Config) loadLocation() error {
	sec := c.file.Section("location")
	if sec == nil {
		return fmt.Errorf("no location section defined in config")
	}

	useGPSStr, err := requireKey(sec, "usegps")
	if err != nil {
		return err
	}
	switch useGPSStr {
	case "0":
		c.Location.UseGPS = false
		latStr, err := requireKey(sec, "lat")
		if err != nil {
			return fmt.Errorf("GPS off, but static location not defined in config: %w", err)
		}
		lngStr, err := requireKey(sec, "lng")
		if err != nil {
			return fmt.Errorf("GPS off, but static location not defined in config: %w", err)
		}
		if c.Location.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		if c.Location.Lng, err = strconv.ParseFloat(lngStr, 64); err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	case "1":
		c.Location.UseGPS = true
	default:
		return fmt.Errorf("usegps in config must be 0 or 1")
	}

	return nil
}

func (c *Config) loadModules() error {
	sec := c.file.Section("modules")
	if sec == nil {
		return fmt.Errorf("no modules section defined in config")
	}

	modStr, err := requireKey(sec, "modules")
	if err != nil {
		return fmt.Errorf("no modules listed in configuration file: %w", err)
	}

	seen := map[string]bool{}
	for _, m := range strings.Split(modStr, ",") {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		c.Modules.Names = append(c.Modules.Names, m)
	}

	return nil
}

func (c *Config) loadRTLDevs() {
	sec := c.file.Section("rtldevs")
	if sec == nil {
		return
	}
	c.RTLDevs.raw = sec
	if sec.HasKey("rtl_path") {
		c.RTLDevs.RTLPath = sec.Key("rtl_path").String()
	}
	if sec.HasKey("rtl_2freq_path") {
		c.RTLDevs.RTL2FreqPath = sec.Key("rtl_2freq_path").String()
	}
}

func (c *Config) loadHackRFDevs() {
	sec := c.file.Section("hackrfdevs")
	if sec == nil || len(sec.Keys()) == 0 {
		return
	}

	h := &HackRFDevs{LNAGain: 16, VGAGain: 20, MinFreq: 50_000_000, MaxFreq: 1_050_000_000, Step: 5000}
	if sec.HasKey("lna_gain") {
		h.LNAGain, _ = sec.Key("lna_gain").Int()
	}
	if sec.HasKey("vga_gain") {
		h.VGAGain, _ = sec.Key("vga_gain").Int()
	}
	if sec.HasKey("minfreq") {
		v, _ := sec.Key("minfreq").Int64()
		h.MinFreq = v
	}
	if sec.HasKey("maxfreq") {
		v, _ := sec.Key("maxfreq").Int64()
		h.MaxFreq = v
	}
	if sec.HasKey("step") {
		v, _ := sec.Key("step").Int64()
		h.Step = v
	}
	c.HackRFDevs = h
}

func (c *Config) loadScanner() {
	sec := c.file.Section("scanner")
	if sec == nil || !sec.HasKey("hit_db") {
		return
	}
	v, err := sec.Key("hit_db").Float64()
	if err != nil {
		return
	}
	c.Scanner = &Scanner{HitDB: v}
}

func (c *Config) loadStartup() {
	sec := c.file.Section("startup")
	if sec == nil {
		return
	}
	for _, key := range sec.Keys() {
		c.Startup[key.Name()] = key.String()
	}
}
