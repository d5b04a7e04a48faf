package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultTelegramsPerSecond paces telegram transmission when no rate is
// given.  UART monitors have shallow buffers and drop bytes when flooded.
const DefaultTelegramsPerSecond = 200

// Remote implements the driver's Registers interface over a telegram
// connection.  It is safe for concurrent use; telegrams are serialized and
// paced.
type Remote struct {
	mu   sync.Mutex
	conn io.ReadWriteCloser
	rd   *bufio.Reader
	lim  *rate.Limiter
}

// NewRemote wraps an established connection.  telegramsPerSecond bounds the
// transmission rate; zero or negative selects DefaultTelegramsPerSecond.
func NewRemote(conn io.ReadWriteCloser, telegramsPerSecond float64) *Remote {
	if telegramsPerSecond <= 0 {
		telegramsPerSecond = DefaultTelegramsPerSecond
	}
	return &Remote{
		conn: conn,
		rd:   bufio.NewReader(conn),
		lim:  rate.NewLimiter(rate.Limit(telegramsPerSecond), 1),
	}
}

// roundTrip sends one telegram and decodes the reply
func (r *Remote) roundTrip(t Telegram) (Telegram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.lim.Wait(context.Background()); err != nil {
		return Telegram{}, err
	}
	if _, err := r.conn.Write(Encode(t)); err != nil {
		return Telegram{}, fmt.Errorf("bridge send: %w", err)
	}
	frame, err := r.rd.ReadBytes(telEnd)
	if err != nil {
		return Telegram{}, fmt.Errorf("bridge recv: %w", err)
	}
	resp, err := Decode(frame)
	if err != nil {
		return Telegram{}, err
	}
	if resp.Op == OpNack {
		return resp, fmt.Errorf("%w (op %#02x addr %#04x)", ErrNack, t.Op, t.Addr)
	}
	if resp.Op != t.Op {
		return resp, fmt.Errorf("bridge reply op %#02x does not echo request op %#02x", resp.Op, t.Op)
	}
	return resp, nil
}

// Read8 returns the byte at off
func (r *Remote) Read8(off uint32) (uint8, error) {
	resp, err := r.roundTrip(Telegram{Op: OpRead8, Addr: uint16(off)})
	return uint8(resp.Data), err
}

// Write8 stores v at off
func (r *Remote) Write8(off uint32, v uint8) error {
	_, err := r.roundTrip(Telegram{Op: OpWrite8, Addr: uint16(off), Data: uint16(v)})
	return err
}

// Read16 returns the 16-bit value at off
func (r *Remote) Read16(off uint32) (uint16, error) {
	resp, err := r.roundTrip(Telegram{Op: OpRead16, Addr: uint16(off)})
	return resp.Data, err
}

// Write16 stores v at off
func (r *Remote) Write16(off uint32, v uint16) error {
	_, err := r.roundTrip(Telegram{Op: OpWrite16, Addr: uint16(off), Data: v})
	return err
}

// Close closes the underlying connection
func (r *Remote) Close() error {
	return r.conn.Close()
}
