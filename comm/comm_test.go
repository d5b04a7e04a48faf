package comm_test

import (
	"net"
	"testing"
	"time"

	"github.com/embedlab/radac/comm"
)

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	conn, err := comm.OpenTCP(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
}

func TestOpenTCPRetries(t *testing.T) {
	// reserve a port, release it, and only start listening after the
	// first connect attempts have failed
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	go func() {
		time.Sleep(200 * time.Millisecond)
		ln2, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer ln2.Close()
		c, err := ln2.Accept()
		if err == nil {
			c.Close()
		}
	}()

	conn, err := comm.OpenTCP(addr)
	if err != nil {
		t.Fatalf("open did not survive a slow-starting listener: %v", err)
	}
	conn.Close()
}
