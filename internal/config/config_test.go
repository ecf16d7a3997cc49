package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gammarf.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const baseConf = `
[connector]
station_id = test-station
station_pass = hunter2
server_host = gammarf.example.com
data_port = 5555
cmd_port = 5556
server_web_proto = https
server_web_port = 443

[location]
usegps = 0
lat = 40.0
lng = -75.0

[modules]
modules = adsb, scanner, adsb

[rtldevs]
rtl_path = /usr/bin/rtl_adsb
gain_00000001 = 19.7
ppm_00000001 = 3
`

func TestLoadHappyPath(t *testing.T) {
	path := writeConf(t, baseConf)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-station", cfg.Connector.StationID)
	assert.Equal(t, 5555, cfg.Connector.DataPort)
	assert.False(t, cfg.Location.UseGPS)
	assert.Equal(t, 40.0, cfg.Location.Lat)
	assert.Equal(t, []string{"adsb", "scanner"}, cfg.Modules.Names)

	gain, ok := cfg.RTLDevs.GainFor("00000001")
	assert.True(t, ok)
	assert.Equal(t, 19.7, gain)

	_, ok = cfg.RTLDevs.GainFor("nonexistent")
	assert.False(t, ok)

	assert.Nil(t, cfg.HackRFDevs)
	assert.Nil(t, cfg.Scanner)
}

func TestLoadMissingConnectorSection(t *testing.T) {
	path := writeConf(t, "[location]\nusegps = 1\n[modules]\nmodules = adsb\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadGPSWithoutStaticFallback(t *testing.T) {
	path := writeConf(t, `
[connector]
station_id = s
station_pass = p
server_host = h
data_port = 1
cmd_port = 2
server_web_proto = http
server_web_port = 80

[location]
usegps = 1

[modules]
modules = adsb
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Location.UseGPS)
}

func TestLoadOptionalSections(t *testing.T) {
	path := writeConf(t, baseConf+`
[hackrfdevs]
lna_gain = 24
vga_gain = 30

[scanner]
hit_db = -40.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.HackRFDevs)
	assert.Equal(t, 24, cfg.HackRFDevs.LNAGain)
	assert.Equal(t, 30, cfg.HackRFDevs.VGAGain)
	assert.Equal(t, int64(50_000_000), cfg.HackRFDevs.MinFreq)

	require.NotNil(t, cfg.Scanner)
	assert.Equal(t, -40.5, cfg.Scanner.HitDB)
}

func TestRangeFor(t *testing.T) {
	path := writeConf(t, baseConf+"range_00000001 = 118 137\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	minHz, maxHz, ok := cfg.RTLDevs.RangeFor("00000001")
	require.True(t, ok)
	assert.Equal(t, int64(118_000_000), minHz)
	assert.Equal(t, int64(137_000_000), maxHz)

	_, _, ok = cfg.RTLDevs.RangeFor("missing")
	assert.False(t, ok)
}
