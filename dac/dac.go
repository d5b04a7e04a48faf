/*Package dac operates one channel of a 12-bit D/A converter block.

The register map and initialization procedure follow the hardware manual for
the RA-series converter.  Register access is behind the Registers interface,
so the same driver runs against memory mapped hardware (package mmio), a
remote register bridge (package bridge), or a simulated register file in
tests.

Callers own channel control blocks; the zero value of Channel is a closed
block and the driver never allocates.  A block must be Opened before any
other operation and access to one block must be serialized by its owner.

Basic usage:
	feat, _ := dac.Profile("RA6M3")
	periph := dac.NewPeripheral(regs, feat)
	var ch dac.Channel
	err := ch.Open(periph, dac.Config{Channel: 0, OutputAmplifier: true})
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()
	ch.Write(0x0200)
	ch.Start() // blocks ~4us for amplifier settling
*/
package dac

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// openSentinel is ASCII "DAC" followed by a zero byte.  It distinguishes an
// initialized control block from caller-zeroed storage.
const openSentinel = 0x44414300

var (
	// ErrNotOpen is returned by operations on a block that was never
	// opened, or was closed
	ErrNotOpen = errors.New("channel not open")

	// ErrAlreadyOpen is returned by Open on a block that is already open
	ErrAlreadyOpen = errors.New("channel already open")

	// ErrInUse is returned by Start when the channel output is already
	// enabled
	ErrInUse = errors.New("channel already started")

	// ErrChannelNotPresent is returned when the requested channel index
	// does not exist on the device
	ErrChannelNotPresent = errors.New("channel not present on this device")

	// ErrBadFormat is returned for a data format outside the enum
	ErrBadFormat = errors.New("data format out of range")

	// ErrNilPointer is returned when a required pointer argument is nil
	ErrNilPointer = errors.New("nil pointer")
)

// Module identifies a peripheral whose power/clock gate can be released
type Module int

// Modules with power control the driver touches
const (
	ModuleDAC Module = iota
	ModuleADC
)

// ModuleStarter releases the power/clock gate of a peripheral module.
// Implementations must be idempotent; the driver may start a module that is
// already running.
type ModuleStarter interface {
	StartModule(m Module, unit int) error
}

// Delayer blocks the caller for a fixed duration.  The driver uses it for
// the amplifier settling wait; the wait cannot be cancelled.
type Delayer interface {
	Delay(d time.Duration)
}

// DataFormat selects the justification of the 12-bit value within the
// 16-bit data register
type DataFormat int

// Data register justification formats
const (
	FormatRightJustified DataFormat = iota
	FormatLeftJustified
)

// Config holds the per-channel settings applied at Open
type Config struct {
	// Channel is the output line index, 0 or 1 depending on device
	Channel int

	// Format is the data register justification
	Format DataFormat

	// SynchronizeADC wires D/A conversion to the A/D converter's scan
	// timing.  On devices with a second A/D unit, the first channel
	// opened with this set powers on A/D unit 1: writing the unit select
	// register requires that unit's clock to be running.  Callers that do
	// not want the A/D powered must leave this false.
	SynchronizeADC bool

	// OutputAmplifier enables the output buffer amplifier, when present.
	// Start then performs the settling sequence from the hardware manual.
	OutputAmplifier bool

	// ChargePump enables the reference charge pump on devices that have
	// one; ignored otherwise
	ChargePump bool
}

// Peripheral ties register access and platform services together for one DAC
// block.  Both channels of a block share its registers and its critical
// section.
type Peripheral struct {
	// Regs is the register block
	Regs Registers

	// Feat is the device feature profile
	Feat Features

	// Power releases module power gates; nil means power is managed
	// elsewhere and StartModule is a no-op
	Power ModuleStarter

	// Delay blocks for the amplifier settling wait; nil means time.Sleep
	Delay Delayer

	// SkipValidation disables parameter and state-precondition checks.
	// Callers are then trusted and invalid input is undefined behavior.
	SkipValidation bool

	// mu guards register read-modify-write sequences that must not be
	// split by another context touching the shared control registers
	mu sync.Mutex
}

// NewPeripheral returns a Peripheral with the default platform services
func NewPeripheral(regs Registers, feat Features) *Peripheral {
	return &Peripheral{Regs: regs, Feat: feat}
}

// critical runs fn holding the block's critical section, released on every
// exit path
func (p *Peripheral) critical(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

func (p *Peripheral) startModule(m Module, unit int) error {
	if p.Power == nil {
		return nil
	}
	return p.Power.StartModule(m, unit)
}

func (p *Peripheral) delay(d time.Duration) {
	if p.Delay == nil {
		time.Sleep(d)
		return
	}
	p.Delay.Delay(d)
}

// setChannelBit sets or clears the per-channel bit at pos+channel of an
// 8-bit register.  Callers hold the critical section.
func (p *Peripheral) setChannelBit(off uint32, pos, channel int, on bool) error {
	v, err := p.Regs.Read8(off)
	if err != nil {
		return err
	}
	mask := uint8(1) << uint(pos+channel)
	if on {
		v |= mask
	} else {
		v &^= mask
	}
	return p.Regs.Write8(off, v)
}

// Channel is a caller-owned control block for one output line.  The zero
// value is a closed block.
type Channel struct {
	p          *Peripheral
	channel    int
	opened     uint32
	ampEnabled bool
}

// Open performs the initialization procedure from the hardware manual and
// marks the block opened.  It powers on the DAC module and, when
// Config.SynchronizeADC is set on a device with a second A/D unit, powers on
// A/D unit 1 as well (see Config.SynchronizeADC).  Open must not be called
// again on the same block without an intervening Close.
func (c *Channel) Open(p *Peripheral, cfg Config) error {
	if p == nil || p.Regs == nil {
		return fmt.Errorf("open: %w", ErrNilPointer)
	}
	if !p.SkipValidation {
		if cfg.Channel < 0 || cfg.Channel >= p.Feat.Channels {
			return ErrChannelNotPresent
		}
		if c.opened == openSentinel {
			return ErrAlreadyOpen
		}
		if cfg.Format != FormatRightJustified && cfg.Format != FormatLeftJustified {
			return ErrBadFormat
		}
	}

	if err := p.startModule(ModuleDAC, cfg.Channel); err != nil {
		return fmt.Errorf("open: powering DAC module: %w", err)
	}

	// stop the channel before touching configuration
	err := p.critical(func() error {
		return p.setChannelBit(regDACR, daoeBit, cfg.Channel, false)
	})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if err := p.Regs.Write8(regDADPR, uint8(cfg.Format)<<dpselBit); err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if err := c.configureSync(p, cfg); err != nil {
		return err
	}

	if p.Feat.OutputAmplifier {
		c.ampEnabled = cfg.OutputAmplifier
	}
	if p.Feat.VRefSelect {
		if err := p.Regs.Write8(regDAVREFCR, davrefAVCC0); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}
	if p.Feat.ChargePump {
		var v uint8
		if cfg.ChargePump {
			v = 1
		}
		if err := p.Regs.Write8(regDAPC, v); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}

	c.p = p
	c.channel = cfg.Channel
	c.opened = openSentinel
	return nil
}

// configureSync programs D/A-A/D synchronization.  On devices with A/D unit
// 1, the unit select register is only writable while that unit's clock runs
// and synchronous start is off, so the first synchronized Open starts the
// unit.
func (c *Channel) configureSync(p *Peripheral, cfg Config) error {
	if !p.Feat.SyncADCUnit1 {
		var v uint8
		if cfg.SynchronizeADC {
			v = 1 << daadstBit
		}
		if err := p.Regs.Write8(regDAADSCR, v); err != nil {
			return fmt.Errorf("open: %w", err)
		}
		return nil
	}
	if !cfg.SynchronizeADC {
		return nil
	}
	scr, err := p.Regs.Read8(regDAADSCR)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if scr != 0 {
		// synchronization already configured by the other channel
		return nil
	}
	if err := p.startModule(ModuleADC, 1); err != nil {
		return fmt.Errorf("open: powering A/D unit 1: %w", err)
	}
	if err := p.Regs.Write8(regDAADUSR, daadusrUnit1); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if err := p.Regs.Write8(regDAADSCR, 1<<daadstBit); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	return nil
}

// Write stores a 16-bit value in the channel data register.  Conversion of
// the new value happens on the hardware's own schedule; Write adds no side
// effects.
func (c *Channel) Write(value uint16) error {
	if !c.validOrTrusted() {
		return ErrNotOpen
	}
	if err := c.p.Regs.Write16(dadr(c.channel), value); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Start enables the channel output.  With the output amplifier enabled this
// runs the settling sequence from the hardware manual: the converter settles
// at zero with the stabilization wait asserted, then the pre-Start data
// register value is restored.  The settling wait blocks the caller and
// cannot be cancelled.
func (c *Channel) Start() error {
	if !c.validOrTrusted() {
		return ErrNotOpen
	}
	p := c.p
	if !p.SkipValidation {
		started, err := c.Started()
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		if started {
			return ErrInUse
		}
	}

	if !(p.Feat.OutputAmplifier && c.ampEnabled) {
		err := p.critical(func() error {
			return p.setChannelBit(regDACR, daoeBit, c.channel, true)
		})
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		return nil
	}

	// amplifier initialization: the converter must settle at zero before
	// the real value is presented
	saved, err := p.Regs.Read16(dadr(c.channel))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := p.Regs.Write16(dadr(c.channel), 0); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	err = p.critical(func() error {
		if err := p.setChannelBit(regDACR, daoeBit, c.channel, false); err != nil {
			return err
		}
		if err := p.setChannelBit(regDAASWCR, daaswBit, c.channel, true); err != nil {
			return err
		}
		if err := p.setChannelBit(regDAAMPCR, daampBit, c.channel, true); err != nil {
			return err
		}
		return p.setChannelBit(regDACR, daoeBit, c.channel, true)
	})
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	p.delay(stabilizationDelay)

	err = p.critical(func() error {
		return p.setChannelBit(regDAASWCR, daaswBit, c.channel, false)
	})
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if err := p.Regs.Write16(dadr(c.channel), saved); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// Stop disables the channel output
func (c *Channel) Stop() error {
	if !c.validOrTrusted() {
		return ErrNotOpen
	}
	err := c.p.critical(func() error {
		return c.p.setChannelBit(regDACR, daoeBit, c.channel, false)
	})
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Started reports whether the channel output is enabled
func (c *Channel) Started() (bool, error) {
	if !c.validOrTrusted() {
		return false, ErrNotOpen
	}
	v, err := c.p.Regs.Read8(regDACR)
	if err != nil {
		return false, fmt.Errorf("started: %w", err)
	}
	return v&(1<<uint(daoeBit+c.channel)) != 0, nil
}

// Close stops the output, disables the amplifier control for the channel and
// resets the block to the closed state.  The module power gate is left
// alone: the block has no per-channel power control, and stopping the module
// would kill the other channel too.
func (c *Channel) Close() error {
	if !c.validOrTrusted() {
		return ErrNotOpen
	}
	err := c.p.critical(func() error {
		if err := c.p.setChannelBit(regDACR, daoeBit, c.channel, false); err != nil {
			return err
		}
		return c.p.setChannelBit(regDAAMPCR, daampBit, c.channel, false)
	})
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	c.opened = 0
	c.p = nil
	c.ampEnabled = false
	c.channel = 0
	return nil
}

// validOrTrusted reports whether the block may be operated on: either it is
// open, or validation is off and the caller is trusted
func (c *Channel) validOrTrusted() bool {
	if c.opened == openSentinel {
		return true
	}
	return c.p != nil && c.p.SkipValidation
}
