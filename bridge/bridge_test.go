package bridge

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/embedlab/radac/mmio"
)

// loopback returns a Remote wired to a Serve loop over a simulated register
// file, plus a teardown func
func loopback(t *testing.T, size int) (*Remote, func()) {
	t.Helper()
	client, server := net.Pipe()
	sim := mmio.NewSim(size)
	done := make(chan error, 1)
	go func() { done <- Serve(server, sim) }()
	r := NewRemote(client, 1e6) // no pacing in tests
	return r, func() {
		r.Close()
		server.Close()
		if err := <-done; err != nil {
			t.Errorf("serve loop: %v", err)
		}
	}
}

func TestRemoteReadWrite(t *testing.T) {
	r, teardown := loopback(t, 16)
	defer teardown()

	if err := r.Write16(0x00, 0xABCD); err != nil {
		t.Fatal(err)
	}
	v16, err := r.Read16(0x00)
	if err != nil {
		t.Fatal(err)
	}
	if v16 != 0xABCD {
		t.Errorf("read16: got %#04X, want 0xABCD", v16)
	}
	lo, err := r.Read8(0x00)
	if err != nil {
		t.Fatal(err)
	}
	if lo != 0xCD {
		t.Errorf("read8 low byte: got %#02X, want 0xCD", lo)
	}
	if err := r.Write8(0x04, 0x40); err != nil {
		t.Fatal(err)
	}
	v8, err := r.Read8(0x04)
	if err != nil {
		t.Fatal(err)
	}
	if v8 != 0x40 {
		t.Errorf("read8: got %#02X, want 0x40", v8)
	}
}

// deadConn yields canned input and fails every write
type deadConn struct {
	rd *bytes.Reader
}

func (d *deadConn) Read(p []byte) (int, error) { return d.rd.Read(p) }

func (d *deadConn) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func (d *deadConn) Close() error { return nil }

func TestServeStopsOnWriteError(t *testing.T) {
	frames := append(
		Encode(Telegram{Op: OpRead8, Addr: 0x00}),
		Encode(Telegram{Op: OpRead8, Addr: 0x01})...)
	conn := &deadConn{rd: bytes.NewReader(frames)}
	if err := Serve(conn, mmio.NewSim(4)); err == nil {
		t.Error("serve kept going on a connection that cannot be written")
	}
}

func TestRemoteNack(t *testing.T) {
	r, teardown := loopback(t, 4)
	defer teardown()

	// out of range on the device side comes back as a nack
	if err := r.Write16(0x10, 0); !errors.Is(err, ErrNack) {
		t.Errorf("out of range write: got %v, want ErrNack", err)
	}
	if _, err := r.Read8(0x10); !errors.Is(err, ErrNack) {
		t.Errorf("out of range read: got %v, want ErrNack", err)
	}
	// the connection survives a nack
	if err := r.Write8(0x00, 1); err != nil {
		t.Errorf("write after nack: %v", err)
	}
}
