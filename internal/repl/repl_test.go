package repl

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/location"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
)

type fakeModule struct {
	name     string
	pseudo   bool
	proxy    bool
	kinds    []devices.Kind
	runOK    bool
	lastArgs string
	stopOK   bool
}

func (f *fakeModule) Name() string                        { return f.name }
func (f *fakeModule) Description() string                 { return "fake module" }
func (f *fakeModule) DocString() string                   { return "fake module for tests" }
func (f *fakeModule) SupportedDeviceKinds() []devices.Kind { return f.kinds }
func (f *fakeModule) IsPseudo() bool                       { return f.pseudo }
func (f *fakeModule) IsProxy() bool                        { return f.proxy }
func (f *fakeModule) Settings() map[string]any             { return map[string]any{"on": true} }
func (f *fakeModule) Commands() []modules.Command          { return nil }
func (f *fakeModule) Init(cfg *config.Config) error        { return nil }
func (f *fakeModule) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	f.lastArgs = argline
	return f.runOK
}
func (f *fakeModule) Stop(devID any, reg *devices.Registry) bool {
	if f.stopOK {
		reg.Free(devID)
	}
	return f.stopOK
}
func (f *fakeModule) Shutdown()                              {}
func (f *fakeModule) Setting(name string, value *string) any { return nil }

func newTestKernel(t *testing.T, mod *fakeModule) *Kernel {
	t.Helper()

	modules.Register("repltest_"+mod.name, func() modules.Descriptor { return mod })
	modReg, err := modules.NewRegistry([]string{"repltest_" + mod.name}, &config.Config{})
	require.NoError(t, err)

	devReg := devices.New()
	devReg.Enumerate(nil, fakeProbe{serials: []string{"rtlserial1"}}, 0, 0, 0)

	loc := location.NewStatic(1, 2)
	conn := connector.New(nil, "", "", "station1", "secret", loc, devReg, logrus.New())
	ctx := station.New(&config.Config{}, devReg, loc, nil, conn)

	k := &Kernel{
		cfg:         &config.Config{},
		ctx:         ctx,
		mods:        modReg,
		log:         logrus.New(),
		commands:    map[string]commandFunc{},
		commandHelp: map[string]string{},
	}
	require.NoError(t, k.buildCommandTable())
	return k
}

type fakeProbe struct{ serials []string }

func (f fakeProbe) GetDeviceCount() int { return len(f.serials) }
func (f fakeProbe) GetDeviceUSBStrings(index int) (vendor, product, serial string, err error) {
	return "v", "p", f.serials[index], nil
}

func TestRunModuleRefusesUnknownModule(t *testing.T) {
	k := newTestKernel(t, &fakeModule{name: "a1", kinds: []devices.Kind{devices.NarrowBand}, runOK: true})
	assert.False(t, k.runModule(0, "nosuchmodule", ""))
}

func TestRunModulePseudoRequiresHighDevID(t *testing.T) {
	mod := &fakeModule{name: "a2", pseudo: true, runOK: true}
	k := newTestKernel(t, mod)

	assert.False(t, k.runModule(1, "repltest_a2", ""))
	assert.True(t, k.runModule(9000, "repltest_a2", ""))
}

func TestRunModuleRefusesUnsupportedDeviceType(t *testing.T) {
	mod := &fakeModule{name: "a3", kinds: []devices.Kind{devices.WideBand}, runOK: true}
	k := newTestKernel(t, mod)

	assert.False(t, k.runModule(0, "repltest_a3", ""))
}

func TestRunModuleOccupiesOnlyOnSuccess(t *testing.T) {
	mod := &fakeModule{name: "a4", kinds: []devices.Kind{devices.NarrowBand}, runOK: false}
	k := newTestKernel(t, mod)

	assert.False(t, k.runModule(0, "repltest_a4", "args"))
	_, occupied := k.ctx.Devices.JobOn(0)
	assert.False(t, occupied)

	mod.runOK = true
	assert.True(t, k.runModule(0, "repltest_a4", "args"))
	job, occupied := k.ctx.Devices.JobOn(0)
	require.True(t, occupied)
	assert.Equal(t, "repltest_a4", job.Module)
}

func TestRunModuleRefusesReservedDevice(t *testing.T) {
	mod := &fakeModule{name: "a5", kinds: []devices.Kind{devices.NarrowBand}, runOK: true}
	k := newTestKernel(t, mod)

	require.NoError(t, k.ctx.Devices.Reserve(0))
	assert.False(t, k.runModule(0, "repltest_a5", ""))
}

func TestBuildCommandTableRejectsDuplicateNames(t *testing.T) {
	mod := &fakeModule{name: "a6"}
	k := newTestKernel(t, mod)

	err := k.register("help", "duplicate", cmdHelp)
	assert.Error(t, err)
}

func TestParseDevID(t *testing.T) {
	assert.Equal(t, 0, parseDevID("0"))
	assert.Equal(t, "a", parseDevID("a"))
}

func TestCmdQuitStopsConnector(t *testing.T) {
	mod := &fakeModule{name: "a7", kinds: []devices.Kind{devices.NarrowBand}, runOK: true}
	k := newTestKernel(t, mod)

	stopConnector := make(chan struct{})
	k.stopConnector = stopConnector

	cmdQuit(k, "")
	assert.True(t, k.quit)

	select {
	case <-stopConnector:
	default:
		t.Fatal("expected stopConnector to be closed")
	}
}
