// Package rtlsdr wraps librtlsdr for narrow-band device enumeration: the
// Device Registry needs a vendor/product/serial string per attached
// dongle, and each worker module needs to resolve a registry id back to
// the index librtlsdr itself uses - everything past that (tuning,
// sample capture, demodulation) is handled by the external decoder
// process each module launches via internal/procworker, matching the
// original's subprocess-per-module design.
package rtlsdr

import (
	"fmt"

	rtlsdr "github.com/jpoirier/gortlsdr"
)

// Probe satisfies devices.NarrowBandProbe by delegating straight to
// librtlsdr's own enumeration calls.
type Probe struct{}

// GetDeviceCount returns the number of attached RTL-SDR dongles.
func (Probe) GetDeviceCount() int {
	return rtlsdr.GetDeviceCount()
}

// GetDeviceUSBStrings returns the vendor/product/serial strings
// librtlsdr reports for the dongle at index.
func (Probe) GetDeviceUSBStrings(index int) (vendor, product, serial string, err error) {
	return rtlsdr.GetDeviceUsbStrings(index)
}

// IndexForSerial finds the librtlsdr device index for a given serial,
// the lookup adsb/tpms/ism433 need to pass `-d <index>` to their
// external decoder processes.
func IndexForSerial(serial string) (int, error) {
	count := rtlsdr.GetDeviceCount()
	for i := 0; i < count; i++ {
		_, _, s, err := rtlsdr.GetDeviceUsbStrings(i)
		if err != nil {
			continue
		}
		if s == serial {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no RTL-SDR device with serial %q", serial)
}
