package comm

import (
	"fmt"

	"github.com/google/gousb"
)

// USBConn exposes the bulk endpoints of a USB bridge as an
// io.ReadWriteCloser.  Unlike the serial transports there is no framing
// below the telegram layer; the bulk pipe carries the telegram bytes as is.
type USBConn struct {
	ctx    *gousb.Context
	device *gousb.Device
	iface  *gousb.Interface
	done   func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

// OpenUSB claims the default interface of the device with the given vendor
// and product IDs and wires up its first bulk IN and OUT endpoints
func OpenUSB(vid, pid uint16) (*USBConn, error) {
	c := &USBConn{ctx: gousb.NewContext()}
	err := openRetry(func() error {
		var err error
		c.device, err = c.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
		if err != nil {
			return err
		}
		if c.device == nil {
			return fmt.Errorf("no device %04x:%04x attached", vid, pid)
		}
		return nil
	})
	if err != nil {
		c.ctx.Close()
		return nil, err
	}
	if err := c.device.SetAutoDetach(true); err != nil {
		c.Close()
		return nil, err
	}
	c.iface, c.done, err = c.device.DefaultInterface()
	if err != nil {
		c.Close()
		return nil, err
	}
	for _, ep := range c.iface.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && c.in == nil {
			c.in, err = c.iface.InEndpoint(ep.Number)
		} else if ep.Direction == gousb.EndpointDirectionOut && c.out == nil {
			c.out, err = c.iface.OutEndpoint(ep.Number)
		}
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	if c.in == nil || c.out == nil {
		c.Close()
		return nil, fmt.Errorf("device %04x:%04x has no bulk endpoint pair", vid, pid)
	}
	return c, nil
}

func (c *USBConn) Read(p []byte) (int, error) {
	return c.in.Read(p)
}

func (c *USBConn) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Close releases the interface, device, and USB context
func (c *USBConn) Close() error {
	if c.done != nil {
		c.done()
	}
	var err error
	if c.device != nil {
		err = c.device.Close()
	}
	if err2 := c.ctx.Close(); err == nil {
		err = err2
	}
	return err
}
