package freqwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gammarf/station/internal/station"
)

func TestRunRejectsNoSpectrum(t *testing.T) {
	m := New()
	ctx := &station.Context{}
	assert.False(t, m.Run(ctx, 0, "", false))
}

func TestModuleBasics(t *testing.T) {
	m := New()
	assert.Equal(t, "freqwatch", m.Name())
	assert.False(t, m.IsPseudo())
}
