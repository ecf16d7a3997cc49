package spectrum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	power float64
}

func (f *fakeSampler) PowerAt(ctx context.Context, freqHz int64) (float64, error) {
	return f.power, nil
}

func TestSpectrumSweepReachesReady(t *testing.T) {
	sp := New(&fakeSampler{power: -50}, 0, 100_000, 25_000)
	sp.dwell = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	sp.Run(ctx)

	assert.True(t, sp.IsReady())
	dBm, ok := sp.PowerAt(0)
	require.True(t, ok)
	assert.Equal(t, -50.0, dBm)
}

func TestPowerAtUnknownBucket(t *testing.T) {
	sp := New(&fakeSampler{}, 0, 100, 25)
	_, ok := sp.PowerAt(999_999)
	assert.False(t, ok)
}

func TestBucketOfRounding(t *testing.T) {
	assert.Equal(t, int64(100_000), bucketOf(100_012))
	assert.Equal(t, int64(125_000), bucketOf(125_000))
}
