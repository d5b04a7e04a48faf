package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/embedlab/radac/dac"
)

// Serve answers telegrams on conn against regs until the connection is
// closed or reading fails.  Backing regs with an mmio.Sim makes a simulated
// device endpoint; monitor firmwares implement the same loop on the device.
func Serve(conn io.ReadWriteCloser, regs dac.Registers) error {
	rd := bufio.NewReader(conn)
	for {
		frame, err := rd.ReadBytes(telEnd)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		t, err := Decode(frame)
		if err != nil {
			// the client times out or fails on the nack either way,
			// but a dead connection ends the loop
			if _, err := conn.Write(Encode(Telegram{Op: OpNack})); err != nil {
				return fmt.Errorf("bridge serve: writing nack: %w", err)
			}
			continue
		}
		if _, err := conn.Write(Encode(answer(t, regs))); err != nil {
			return fmt.Errorf("bridge serve: writing reply: %w", err)
		}
	}
}

func answer(t Telegram, regs dac.Registers) Telegram {
	nack := Telegram{Op: OpNack, Addr: t.Addr}
	switch t.Op {
	case OpRead8:
		v, err := regs.Read8(uint32(t.Addr))
		if err != nil {
			return nack
		}
		return Telegram{Op: OpRead8, Addr: t.Addr, Data: uint16(v)}
	case OpWrite8:
		if err := regs.Write8(uint32(t.Addr), uint8(t.Data)); err != nil {
			return nack
		}
		return Telegram{Op: OpWrite8, Addr: t.Addr}
	case OpRead16:
		v, err := regs.Read16(uint32(t.Addr))
		if err != nil {
			return nack
		}
		return Telegram{Op: OpRead16, Addr: t.Addr, Data: v}
	case OpWrite16:
		if err := regs.Write16(uint32(t.Addr), t.Data); err != nil {
			return nack
		}
		return Telegram{Op: OpWrite16, Addr: t.Addr}
	default:
		return nack
	}
}
