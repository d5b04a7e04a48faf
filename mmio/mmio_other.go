//go:build !linux

package mmio

import "errors"

// Device is only available on Linux
type Device struct{}

// OpenDevice is not supported on this platform
func OpenDevice(path string, base int64, size int) (*Device, error) {
	return nil, errors.New("memory mapped register access requires linux")
}

// Read8 is not supported on this platform
func (d *Device) Read8(off uint32) (uint8, error) { return 0, errors.New("not supported") }

// Write8 is not supported on this platform
func (d *Device) Write8(off uint32, v uint8) error { return errors.New("not supported") }

// Read16 is not supported on this platform
func (d *Device) Read16(off uint32) (uint16, error) { return 0, errors.New("not supported") }

// Write16 is not supported on this platform
func (d *Device) Write16(off uint32, v uint16) error { return errors.New("not supported") }

// Close is not supported on this platform
func (d *Device) Close() error { return errors.New("not supported") }
