/*Package comm establishes connections to register bridge hardware.

Three transports are supported: RS232/USB-serial ports, TCP (for bridges
behind a terminal server), and raw USB bulk endpoints.  Opens are retried
with an exponential backoff; bridge monitors are commonly not ready the
instant the host asks for them.
*/
package comm

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// openRetry runs op under the standard open backoff policy
func openRetry(op func() error) error {
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      5 * time.Second,
		Clock:               backoff.SystemClock})
}

// OpenSerial opens a serial port at the given baud rate, 8N1, with a read
// timeout so a dead bridge does not hang the caller forever
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	cfg := &serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: 3 * time.Second,
	}
	var conn *serial.Port
	err := openRetry(func() error {
		var err error
		conn, err = serial.OpenPort(cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", port, err)
	}
	return conn, nil
}

// OpenTCP connects to a bridge behind a terminal server with a connect
// timeout
func OpenTCP(addr string) (io.ReadWriteCloser, error) {
	var conn net.Conn
	err := openRetry(func() error {
		var err error
		conn, err = net.DialTimeout("tcp", addr, 3*time.Second)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return conn, nil
}
