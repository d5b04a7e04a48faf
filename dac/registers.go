package dac

import "time"

// Registers is the access capability for the DAC register block.  Concrete
// implementations map a physical block (mmio.Device), simulate one in memory
// (mmio.Sim), or tunnel operations to a remote bridge (bridge.Remote).
//
// Offsets are relative to the base of the block.  Multi-byte registers are
// little endian.
type Registers interface {
	Read8(off uint32) (uint8, error)
	Write8(off uint32, v uint8) error
	Read16(off uint32) (uint16, error)
	Write16(off uint32, v uint16) error
}

// register offsets within the DAC block
const (
	regDADR0    = 0x00 // channel 0 data register, 16-bit
	regDADR1    = 0x02 // channel 1 data register, 16-bit
	regDACR     = 0x04 // control: output enable per channel
	regDADPR    = 0x05 // data justification select
	regDAADSCR  = 0x06 // D/A-A/D synchronous start control
	regDAVREFCR = 0x07 // reference voltage select
	regDAAMPCR  = 0x08 // output amplifier control per channel
	regDAASWCR  = 0x09 // amplifier stabilization wait per channel
	regDAPC     = 0x0A // charge pump control
	regDAADUSR  = 0x0C // D/A-A/D synchronous unit select
)

// bit positions; each per-channel bit is at pos+channel
const (
	daoeBit   = 6 // DACR output enable, channel 0
	daampBit  = 6 // DAAMPCR amplifier control, channel 0
	daaswBit  = 6 // DAASWCR stabilization wait, channel 0
	dpselBit  = 7 // DADPR justification select
	daadstBit = 7 // DAADSCR synchronous start enable
)

const (
	// daadusrUnit1 selects A/D unit 1 for synchronization
	daadusrUnit1 = 0x02

	// davrefAVCC0 selects AVCC0/AVSS0 as the reference pair
	davrefAVCC0 = 0x01
)

// stabilizationDelay is the settling time of the output amplifier, from the
// D/A conversion characteristics table of the hardware manual.
const stabilizationDelay = 4 * time.Microsecond

// dadr returns the offset of the data register for a channel
func dadr(channel int) uint32 {
	return regDADR0 + 2*uint32(channel)
}
