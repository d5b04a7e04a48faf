/*Package bridge tunnels register access over a byte stream.

Small monitor firmwares on evaluation boards expose the register file over a
UART or USB bulk pipe; this package speaks a telegram protocol with such a
monitor.  Remote implements the driver's Registers interface on the client
side, and Serve implements the device side against any Registers, which also
makes a simulated device endpoint out of an mmio.Sim.

Telegrams are framed as [SOT] [op] [addr16] [data16] [CRC16] [EOT] with
CRC-CCITT (XMODEM) over the body.  The start, end, and escape bytes are
kept out of the body by character substitution.
*/
package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/snksoft/crc"
)

const (
	// telStart is the start of telegram byte
	telStart = 0x0D

	// telEnd is the end of telegram byte
	telEnd = 0x0A

	// escFirst marks an escaped byte; the escaped value is shifted up
	escFirst = 0x5E

	// escShift is the amount escaped bytes are shifted.  Special
	// characters max out at 0x5E, so the shift cannot overflow a byte.
	escShift = 0x40
)

// Telegram operations
const (
	// OpRead8 requests one byte at addr; the reply carries it in data
	OpRead8 byte = 0x01

	// OpWrite8 stores the low data byte at addr
	OpWrite8 byte = 0x02

	// OpRead16 requests the 16-bit value at addr
	OpRead16 byte = 0x03

	// OpWrite16 stores data at addr
	OpWrite16 byte = 0x04

	// OpNack is a device-side failure reply; data carries no meaning
	OpNack byte = 0x15
)

var (
	dataOrder = binary.LittleEndian

	// specialChars must not appear in a telegram body
	specialChars = []byte{telEnd, telStart, escFirst}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrNack is returned when the device reports a failed operation
	ErrNack = errors.New("device rejected register operation")

	// ErrCRC is returned when a received telegram fails the CRC check
	ErrCRC = errors.New("telegram CRC mismatch, data lost in transmission")
)

// Telegram is one register operation or reply
type Telegram struct {
	Op   byte
	Addr uint16
	Data uint16
}

// crcHelper computes the two CRC bytes for a body
func crcHelper(body []byte) []byte {
	v := crcTable.InitCrc()
	v = crcTable.UpdateCrc(v, body)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(v))
	return out
}

func escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escFirst, b+escShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	subNext := false
	for _, b := range data {
		if b == escFirst && !subNext {
			subNext = true
			continue
		}
		if subNext {
			b -= escShift
			subNext = false
		}
		out = append(out, b)
	}
	return out
}

// Encode renders a telegram into its wire framing
func Encode(t Telegram) []byte {
	body := make([]byte, 5)
	body[0] = t.Op
	dataOrder.PutUint16(body[1:3], t.Addr)
	dataOrder.PutUint16(body[3:5], t.Data)
	body = append(body, crcHelper(body)...)

	out := append([]byte{telStart}, escape(body)...)
	return append(out, telEnd)
}

// Decode parses a wire frame into a telegram, verifying the CRC.  The input
// may carry leading garbage before the start byte.
func Decode(frame []byte) (Telegram, error) {
	iStart := bytes.IndexByte(frame, telStart)
	if iStart < 0 {
		return Telegram{}, fmt.Errorf("telegram start byte %#02x not found", telStart)
	}
	// only look for the end byte after the start byte; line noise before the
	// frame may contain it
	iEnd := bytes.IndexByte(frame[iStart:], telEnd)
	if iEnd < 0 {
		return Telegram{}, fmt.Errorf("telegram end byte %#02x not found after start byte", telEnd)
	}
	iEnd += iStart
	body := unescape(frame[iStart+1 : iEnd])
	if len(body) != 7 {
		return Telegram{}, fmt.Errorf("telegram body is %d bytes, want 7", len(body))
	}
	recv := body[5:]
	body = body[:5]
	if !bytes.Equal(recv, crcHelper(body)) {
		return Telegram{}, ErrCRC
	}
	return Telegram{
		Op:   body[0],
		Addr: dataOrder.Uint16(body[1:3]),
		Data: dataOrder.Uint16(body[3:5]),
	}, nil
}
