package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := NewStatic(40.1, -75.2)

	fix, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, 40.1, fix.Lat)
	assert.Equal(t, -75.2, fix.Lng)
	assert.Contains(t, p.Status(), "static")
}

func TestGPSProviderStaleness(t *testing.T) {
	g := &GPSProvider{
		fix:       &Fix{Lat: 1, Lng: 2},
		lastFix:   time.Now(),
		connected: true,
	}

	fix, ok := g.Current()
	require.True(t, ok)
	assert.Equal(t, 1.0, fix.Lat)

	g.lastFix = time.Now().Add(-20 * time.Second)
	_, ok = g.Current()
	assert.False(t, ok, "fix older than staleAfter must be reported unavailable")
	assert.Contains(t, g.Status(), "stale")
}

func TestGPSProviderNoFixYet(t *testing.T) {
	g := &GPSProvider{connected: true}
	_, ok := g.Current()
	assert.False(t, ok)
	assert.Contains(t, g.Status(), "no fix")
}

func TestGPSProviderDisconnected(t *testing.T) {
	g := &GPSProvider{}
	assert.Equal(t, "gps disconnected", g.Status())
}
