package modules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/station"
)

type fakeModule struct {
	name    string
	initErr error
}

func (f *fakeModule) Name() string                             { return f.name }
func (f *fakeModule) Description() string                      { return "fake" }
func (f *fakeModule) DocString() string                        { return "fake module for tests" }
func (f *fakeModule) SupportedDeviceKinds() []devices.Kind      { return []devices.Kind{devices.NarrowBand} }
func (f *fakeModule) IsPseudo() bool                            { return false }
func (f *fakeModule) IsProxy() bool                             { return false }
func (f *fakeModule) Settings() map[string]any                  { return nil }
func (f *fakeModule) Commands() []Command                       { return nil }
func (f *fakeModule) Init(cfg *config.Config) error             { return f.initErr }
func (f *fakeModule) Run(ctx *station.Context, devID any, argline string, remoteTask bool) bool {
	return true
}
func (f *fakeModule) Stop(devID any, reg *devices.Registry) bool { return true }
func (f *fakeModule) Shutdown()                                  {}
func (f *fakeModule) Setting(name string, value *string) any     { return nil }

func TestRegistryLoadOrderAndDuplicate(t *testing.T) {
	Register("fakea", func() Descriptor { return &fakeModule{name: "fakea"} })
	Register("fakeb", func() Descriptor { return &fakeModule{name: "fakeb"} })

	reg, err := NewRegistry([]string{"fakea", "fakeb"}, &config.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fakea", "fakeb"}, reg.Names())

	_, err = NewRegistry([]string{"fakea", "fakea"}, &config.Config{})
	assert.Error(t, err)
}

func TestRegistrySkipsUnknownModule(t *testing.T) {
	Register("fakeknown", func() Descriptor { return &fakeModule{name: "fakeknown"} })

	reg, err := NewRegistry([]string{"fakeknown", "doesnotexist"}, &config.Config{})
	require.NoError(t, err, "an unknown module name should be logged and skipped, not fatal")
	assert.Equal(t, []string{"fakeknown"}, reg.Names())
}

func TestRegistrySkipsFailedInit(t *testing.T) {
	Register("fakebroken", func() Descriptor { return &fakeModule{name: "fakebroken", initErr: errors.New("boom")} })
	Register("fakeworks", func() Descriptor { return &fakeModule{name: "fakeworks"} })

	reg, err := NewRegistry([]string{"fakebroken", "fakeworks"}, &config.Config{})
	require.NoError(t, err, "a failing Init should be logged and skipped, not fatal")
	assert.Equal(t, []string{"fakeworks"}, reg.Names())

	_, ok := reg.Get("fakebroken")
	assert.False(t, ok)
}

func TestRegistryGet(t *testing.T) {
	Register("fakec", func() Descriptor { return &fakeModule{name: "fakec"} })

	reg, err := NewRegistry([]string{"fakec"}, &config.Config{})
	require.NoError(t, err)

	d, ok := reg.Get("fakec")
	require.True(t, ok)
	assert.Equal(t, "fakec", d.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}
