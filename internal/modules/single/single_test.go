package single

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gammarf/station/internal/devices"
	"github.com/gammarf/station/internal/station"
)

func TestRunRejectsMalformedArgline(t *testing.T) {
	m := New()
	ctx := &station.Context{}
	assert.False(t, m.Run(ctx, 0, "not enough args", false))
	assert.False(t, m.Run(ctx, 0, "100M not-a-number", false))
}

func TestRunRejectsNoSpectrum(t *testing.T) {
	m := New()
	ctx := &station.Context{Spectrum: nil}
	assert.False(t, m.Run(ctx, 0, "100M -10", false))
}

func TestSupportedDeviceKinds(t *testing.T) {
	m := New()
	assert.Equal(t, []devices.Kind{devices.WideBand, devices.Virtual}, m.SupportedDeviceKinds())
}
