// Package spectrum maintains the station's wide-band power map: a
// continuously-refreshed table of dBm readings across the wide-band
// device's tuning range, consulted by narrow-band modules (single,
// scanner, freqwatch, snapshot) instead of each opening the hardware
// themselves.
package spectrum

import (
	"context"
	"sync"
	"time"
)

// Sampler is the capture collaborator a wide-band device exposes: tune to
// freqHz and report a single power reading. Satisfied by a thin adapter
// over the rtlsdr/hackrf driver wired in at startup.
type Sampler interface {
	PowerAt(ctx context.Context, freqHz int64) (dBm float64, err error)
}

// bucket is the resolution the sweep buckets frequencies into; both the
// sweep and PowerAt round a frequency down to the bucket boundary at or
// below it.
const bucket = 25_000

// Spectrum is a concurrency-safe power map, kept warm by a background
// sweep goroutine.
type Spectrum struct {
	sampler Sampler
	minHz   int64
	maxHz   int64
	step    int64
	dwell   time.Duration

	mu    sync.RWMutex
	power map[int64]float64
	ready bool
}

// New constructs a Spectrum that will sweep [minHz, maxHz] in step-sized
// increments once Run is started.
func New(sampler Sampler, minHz, maxHz, step int64) *Spectrum {
	return &Spectrum{
		sampler: sampler,
		minHz:   minHz,
		maxHz:   maxHz,
		step:    step,
		dwell:   20 * time.Millisecond,
		power:   make(map[int64]float64),
	}
}

// Run sweeps the configured range on a ticker until ctx is cancelled,
// grounded on the coarse-scan ticker loop pattern: one continuous sweep,
// restarting at minHz once maxHz is passed, each step a non-blocking
// single-frequency measurement.
func (s *Spectrum) Run(ctx context.Context) {
	if s.step <= 0 {
		return
	}

	ticker := time.NewTicker(s.dwell)
	defer ticker.Stop()

	freq := s.minHz
	sweptOnce := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dBm, err := s.sampler.PowerAt(ctx, freq)
			if err == nil {
				s.record(freq, dBm)
			}

			freq += s.step
			if freq > s.maxHz {
				freq = s.minHz
				sweptOnce = true
			}
			if sweptOnce {
				s.mu.Lock()
				s.ready = true
				s.mu.Unlock()
			}
		}
	}
}

func (s *Spectrum) record(freqHz int64, dBm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power[bucketOf(freqHz)] = dBm
}

func bucketOf(freqHz int64) int64 {
	return (freqHz / bucket) * bucket
}

// PowerAt returns the most recent power reading for the bucket containing
// freqHz. ok is false if that bucket has never been swept.
func (s *Spectrum) PowerAt(freqHz int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dBm, ok := s.power[bucketOf(freqHz)]
	return dBm, ok
}

// IsReady reports whether at least one full sweep of [minHz, maxHz] has
// completed. The kernel blocks startup on this when a wide-band device is
// present.
func (s *Spectrum) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
