package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gammarf/station/internal/config"
	"github.com/gammarf/station/internal/station"
)

func TestFreqStatsWelford(t *testing.T) {
	s := &freqStats{}
	for _, v := range []float64{10, 10, 10, 10} {
		s.update(v)
	}
	assert.InDelta(t, 10, s.mean, 0.0001)
	assert.InDelta(t, 0, s.stdev(), 0.0001)
}

func TestInitAppliesConfiguredHitDB(t *testing.T) {
	m := New()
	assert.Equal(t, defaultHitDB, m.hitDB)

	require := &config.Config{Scanner: &config.Scanner{HitDB: -30}}
	_ = m.Init(require)
	assert.Equal(t, -30.0, m.hitDB)
}

func TestRunRejectsNoSpectrum(t *testing.T) {
	m := New()
	ctx := &station.Context{}
	assert.False(t, m.Run(ctx, 0, "", false))
}

func TestFloatsEqual(t *testing.T) {
	assert.True(t, floatsEqual([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.False(t, floatsEqual([]float64{1, 2}, []float64{1, 2, 3}))
}

func TestSettingHitDB(t *testing.T) {
	m := New()
	v := "-25.5"
	got := m.Setting("hit_db", &v)
	assert.Equal(t, -25.5, got)
}
