package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWideBand struct {
	present bool
	min     int64
	max     int64
}

func (f fakeWideBand) Present() bool  { return f.present }
func (f fakeWideBand) MinFreq() int64 { return f.min }
func (f fakeWideBand) MaxFreq() int64 { return f.max }

type fakeNarrowBand struct {
	serials []string
}

func (f fakeNarrowBand) GetDeviceCount() int { return len(f.serials) }
func (f fakeNarrowBand) GetDeviceUSBStrings(index int) (string, string, string, error) {
	return "vendor", "product", f.serials[index], nil
}

func TestEnumerateWideAndNarrow(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: true, min: 50_000_000, max: 1_500_000_000}, fakeNarrowBand{serials: []string{"s1", "s2"}}, 16, 20, 5000)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, WideBand, all[0].Kind)
	assert.Equal(t, 0, all[0].ID)
	assert.Equal(t, NarrowBand, all[1].Kind)
	assert.Equal(t, "s1", all[1].Serial)
	assert.Equal(t, NarrowBand, all[2].Kind)
	assert.Equal(t, "s2", all[2].Serial)
}

func TestEnumerateNoWideBand(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: false}, fakeNarrowBand{serials: []string{"s1"}}, 16, 20, 5000)

	all := r.All()
	require.Len(t, all, 1)
	assert.Equal(t, NarrowBand, all[0].Kind)
	assert.Equal(t, 0, all[0].ID)
}

func TestOccupyNarrowBand(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{}, fakeNarrowBand{serials: []string{"s1"}}, 0, 0, 0)

	got, err := r.Occupy(0, &Job{Module: "adsb"})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = r.Occupy(0, &Job{Module: "tpms"})
	assert.Error(t, err)

	r.Free(0)
	got, err = r.Occupy(0, &Job{Module: "tpms"})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestOccupyWideBandAllocatesVirtual(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: true, min: 1, max: 2}, fakeNarrowBand{}, 16, 20, 5000)

	virtID, err := r.Occupy(0, &Job{Module: "scanner"})
	require.NoError(t, err)
	assert.Equal(t, "a", virtID)

	virtID2, err := r.Occupy(0, &Job{Module: "scanner"})
	require.NoError(t, err)
	assert.Equal(t, "b", virtID2)

	job, ok := r.JobOn("a")
	require.True(t, ok)
	assert.Equal(t, "scanner", job.Module)

	ids := r.RunningIDs()
	assert.ElementsMatch(t, []any{"a", "b"}, ids)

	running := r.Running()
	var modules []string
	for _, j := range running {
		modules = append(modules, j.Module)
	}
	assert.ElementsMatch(t, []string{"scanner", "scanner"}, modules)

	r.Free("a")
	_, ok = r.Get("a")
	assert.False(t, ok, "virtual slots are removed entirely on free")
}

func TestReserveUnreserve(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{}, fakeNarrowBand{serials: []string{"s1"}}, 0, 0, 0)

	require.NoError(t, r.Reserve(0))
	assert.True(t, r.Reserved(0))

	job, ok := r.JobOn(0)
	require.True(t, ok, "reservation should display a sentinel job")
	assert.Equal(t, reservedSentinel, job.Module)

	require.NoError(t, r.Unreserve(0))
	assert.False(t, r.Reserved(0))
	_, ok = r.JobOn(0)
	assert.False(t, ok, "unreserve should clear the sentinel job")

	assert.Error(t, r.Reserve(99))
}

func TestReserveRefusesWideBandDevice(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: true, min: 1, max: 2}, fakeNarrowBand{}, 16, 20, 5000)

	assert.Error(t, r.Reserve(0))
	assert.False(t, r.Reserved(0))
}

func TestReserveRefusesAlreadyOccupiedDevice(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{}, fakeNarrowBand{serials: []string{"s1"}}, 0, 0, 0)

	_, err := r.Occupy(0, &Job{Module: "adsb"})
	require.NoError(t, err)
	assert.Error(t, r.Reserve(0))
}

func TestOccupyPseudoSynthesizesRecord(t *testing.T) {
	r := New()

	require.NoError(t, r.OccupyPseudo(9000, &Job{Module: "p25log"}))

	dev, ok := r.Get(9000)
	require.True(t, ok)
	assert.Equal(t, Pseudo, dev.Kind)

	job, ok := r.JobOn(9000)
	require.True(t, ok)
	assert.Equal(t, "p25log", job.Module)

	assert.Contains(t, r.RunningIDs(), 9000)

	assert.Error(t, r.OccupyPseudo(9000, &Job{Module: "other"}))

	r.Free(9000)
	_, ok = r.JobOn(9000)
	assert.False(t, ok)
}

func TestWideBandInfoForResolvesVirtualParent(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: true, min: 1, max: 2}, fakeNarrowBand{}, 16, 20, 5000)

	virtID, err := r.Occupy(0, &Job{Module: "snapshot"})
	require.NoError(t, err)

	lna, vga, minS, maxS, step, ok := r.WideBandInfoFor(virtID)
	require.True(t, ok)
	assert.Equal(t, 16, lna)
	assert.Equal(t, 20, vga)
	assert.Equal(t, int64(1), minS)
	assert.Equal(t, int64(2), maxS)
	assert.Equal(t, int64(5000), step)
}

func TestNarrowBandInfoWrongKind(t *testing.T) {
	r := New()
	r.Enumerate(fakeWideBand{present: true, min: 1, max: 2}, fakeNarrowBand{}, 16, 20, 5000)

	_, _, _, _, ok := r.NarrowBandInfo(0)
	assert.False(t, ok)

	lna, vga, minS, maxS, step, ok := r.WideBandInfo(0)
	require.True(t, ok)
	assert.Equal(t, 16, lna)
	assert.Equal(t, 20, vga)
	assert.Equal(t, int64(1), minS)
	assert.Equal(t, int64(2), maxS)
	assert.Equal(t, int64(5000), step)
}
