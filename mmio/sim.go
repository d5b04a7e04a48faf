// Package mmio provides register access backends for the DAC driver: a
// memory mapped physical block on Linux, and a simulated register file for
// tests and hardware-free operation.
package mmio

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Sim is an in-memory register file.  It is safe for concurrent use, so a
// bridge server and a driver may share one instance.
type Sim struct {
	mu  sync.Mutex
	mem []byte
}

// NewSim returns a simulated register file of the given size in bytes
func NewSim(size int) *Sim {
	return &Sim{mem: make([]byte, size)}
}

func (s *Sim) check(off uint32, width int) error {
	if int(off)+width > len(s.mem) {
		return fmt.Errorf("register offset 0x%02X out of simulated block of %d bytes", off, len(s.mem))
	}
	return nil
}

// Read8 returns the byte at off
func (s *Sim) Read8(off uint32) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(off, 1); err != nil {
		return 0, err
	}
	return s.mem[off], nil
}

// Write8 stores v at off
func (s *Sim) Write8(off uint32, v uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(off, 1); err != nil {
		return err
	}
	s.mem[off] = v
	return nil
}

// Read16 returns the little endian 16-bit value at off
func (s *Sim) Read16(off uint32) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.mem[off:]), nil
}

// Write16 stores v at off, little endian
func (s *Sim) Write16(off uint32, v uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s.mem[off:], v)
	return nil
}
