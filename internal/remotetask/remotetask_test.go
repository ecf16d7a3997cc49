package remotetask

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/connector"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/modules"
	"github.com/gammarf/station/internal/station"
)

type fakeModule struct {
	pseudo  bool
	kinds   []devices.Kind
	ran     bool
	stopped bool
}

func (f *fakeModule) Name() string                           { return "fake" }
func (f *fakeModule) Description() string                    { return "fake" }
func (f *fakeModule) DocString() string                       { return "" }
func (f *fakeModule) SupportedDeviceKinds() []devices.Kind    { return f.kinds }
func (f *fakeModule) IsPseudo() bool                          { return f.pseudo }
func (f *fakeModule) IsProxy() bool                           { return false }
func (f *fakeModule) Settings() map[string]any                { return nil }
func (f *fakeModule) Commands() []modules.Command              { return nil }
func (f *fakeModule) Init(cfg *config.Config) error            { return nil }
func (f *fakeModule) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	f.ran = true
	return true
}
func (f *fakeModule) Stop(devID any, reg *devices.Registry) bool {
	f.stopped = true
	return true
}
func (f *fakeModule) Shutdown()                             {}
func (f *fakeModule) Setting(name string, value *string) any { return nil }

func newTestContext(t *testing.T) (*station.Context, *devices.Registry) {
	t.Helper()
	reg := devices.New()
	reg.Enumerate(nil, nil, 0, 0, 0)
	conn := connector.New(nil, "", "", "station1", "secret", nil, nil, logrus.New())
	return &station.Context{Devices: reg, Connector: conn}, reg
}

func TestRunRejectsSpecialModules(t *testing.T) {
	m := New()
	ctx, _ := newTestContext(t)

	assert.False(t, m.Run(ctx, 0, "remotetask", false))
	assert.False(t, m.Run(ctx, 0, "tdoa", false))
	assert.False(t, m.Run(ctx, 0, "", false))
}

func TestRunRequiresBoundRegistry(t *testing.T) {
	m := New()
	ctx, _ := newTestContext(t)

	assert.False(t, m.Run(ctx, 0, "scanner", false))
}

func TestRunRejectsUnknownModule(t *testing.T) {
	m := New()
	ctx, _ := newTestContext(t)

	reg, err := modules.NewRegistry(nil, &config.Config{})
	require.NoError(t, err)
	m.BindRegistry(reg)

	assert.False(t, m.Run(ctx, 0, "nosuchmodule", false))
}

func TestIsProxy(t *testing.T) {
	m := New()
	assert.True(t, m.IsProxy())
	assert.False(t, m.IsPseudo())
}

func TestStopWithoutWorkerIsNoop(t *testing.T) {
	m := New()
	reg := devices.New()
	assert.False(t, m.Stop(0, reg))
}

func TestSettingPrintTasks(t *testing.T) {
	m := New()
	assert.Equal(t, true, m.Settings()["print_tasks"])
	off := "0"
	assert.Equal(t, false, m.Setting("print_tasks", &off))
}

func TestRequestRejectsShortArgs(t *testing.T) {
	m := New()
	ctx, _ := newTestContext(t)
	m.Request(ctx, "grf01 100")
}
