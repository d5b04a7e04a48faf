//go:build linux

package mmio

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Device maps a physical register block through a memory device node,
// usually /dev/mem.  All accesses are relative to the block base given at
// Open.
type Device struct {
	f    *os.File
	page []byte
	off  int // offset of the block base within the mapped page
	size int
}

// OpenDevice maps size bytes of physical address space at base.  path is the
// memory device node, usually /dev/mem, which needs root or CAP_SYS_RAWIO.
func OpenDevice(path string, base int64, size int) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	pageSize := int64(unix.Getpagesize())
	pageBase := base &^ (pageSize - 1)
	off := int(base - pageBase)
	length := off + size
	mem, err := unix.Mmap(int(f.Fd()), pageBase, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping %s at 0x%X: %w", path, base, err)
	}
	return &Device{f: f, page: mem, off: off, size: size}, nil
}

func (d *Device) check(off uint32, width int) error {
	if int(off)+width > d.size {
		return fmt.Errorf("register offset 0x%02X out of mapped block of %d bytes", off, d.size)
	}
	return nil
}

// Read8 returns the byte at off
func (d *Device) Read8(off uint32) (uint8, error) {
	if err := d.check(off, 1); err != nil {
		return 0, err
	}
	return d.page[d.off+int(off)], nil
}

// Write8 stores v at off
func (d *Device) Write8(off uint32, v uint8) error {
	if err := d.check(off, 1); err != nil {
		return err
	}
	d.page[d.off+int(off)] = v
	return nil
}

// Read16 returns the little endian 16-bit value at off
func (d *Device) Read16(off uint32) (uint16, error) {
	if err := d.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.page[d.off+int(off):]), nil
}

// Write16 stores v at off, little endian
func (d *Device) Write16(off uint32, v uint16) error {
	if err := d.check(off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(d.page[d.off+int(off):], v)
	return nil
}

// Close unmaps the block and closes the device node
func (d *Device) Close() error {
	err := unix.Munmap(d.page)
	if err2 := d.f.Close(); err == nil {
		err = err2
	}
	return err
}
