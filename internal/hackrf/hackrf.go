// Package hackrf is the wide-band device driver collaborator: the narrow
// contract §6.3 asks of the wide-band library (open, toggle the amplifier,
// close) plus the tuning envelope the Device Registry needs at enumeration
// time.
//
// No HackRF Go binding is retrieved anywhere in this module's dependency
// pack, so this package is a documented stub matching the same shape as
// internal/rtlsdr: real hardware access would live behind this interface,
// wired in the same way once a concrete driver is available.
package hackrf

import (
	"context"
	"fmt"
)

// Device is the wide-band driver collaborator.
type Device struct {
	minFreq int64
	maxFreq int64
	ampOn   bool
	open    bool
}

// Open attempts to open the first wide-band device. Present() reports
// false on any failure so enumeration can fall back to "have_wide=false"
// without failing the whole process.
func Open(minFreq, maxFreq int64) (*Device, error) {
	return nil, fmt.Errorf("no wide-band hardware driver compiled in")
}

// Present reports whether a wide-band device was successfully opened.
func (d *Device) Present() bool {
	return d != nil && d.open
}

// MinFreq is the low end of the device's tuning range.
func (d *Device) MinFreq() int64 { return d.minFreq }

// MaxFreq is the high end of the device's tuning range.
func (d *Device) MaxFreq() int64 { return d.maxFreq }

// SetAmpEnable toggles the wide-band device's front-end amplifier.
func (d *Device) SetAmpEnable(enable bool) error {
	if !d.Present() {
		return fmt.Errorf("device not open")
	}
	d.ampOn = enable
	return nil
}

// PowerAt tunes to freqHz and reports a single power reading, satisfying
// internal/spectrum's Sampler interface. Always fails since no real
// capture path is compiled in.
func (d *Device) PowerAt(ctx context.Context, freqHz int64) (float64, error) {
	return 0, fmt.Errorf("no wide-band hardware driver compiled in")
}

// Close releases the device.
func (d *Device) Close() error {
	if d == nil {
		return nil
	}
	d.open = false
	return nil
}
