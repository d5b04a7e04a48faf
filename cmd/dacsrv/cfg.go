package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/embedlab/radac/bridge"
	"github.com/embedlab/radac/comm"
	"github.com/embedlab/radac/dac"
	"github.com/embedlab/radac/mmio"
)

// ChannelSetup holds the per-channel configuration applied at Open
type ChannelSetup struct {
	// Channel is the output line index
	Channel int `koanf:"channel" yaml:"channel"`

	// Format is the data register justification, "right" or "left"
	Format string `koanf:"format" yaml:"format"`

	// Amplifier enables the output buffer amplifier on devices that have one
	Amplifier bool `koanf:"amplifier" yaml:"amplifier"`

	// SyncADC wires D/A conversion to the A/D scan timing.  The first
	// channel opened with this set powers on A/D unit 1.
	SyncADC bool `koanf:"sync-adc" yaml:"sync-adc"`

	// ChargePump enables the reference charge pump on devices that have one
	ChargePump bool `koanf:"charge-pump" yaml:"charge-pump"`
}

// MMIOSetup locates the register block in physical address space
type MMIOSetup struct {
	// Devmem is the memory device node
	Devmem string `koanf:"devmem" yaml:"devmem"`

	// Base is the physical base address of the DAC block
	Base int64 `koanf:"base" yaml:"base"`
}

// SerialSetup configures a serial register bridge
type SerialSetup struct {
	Port string `koanf:"port" yaml:"port"`
	Baud int    `koanf:"baud" yaml:"baud"`
}

// USBSetup configures a USB bulk register bridge
type USBSetup struct {
	VID uint16 `koanf:"vid" yaml:"vid"`
	PID uint16 `koanf:"pid" yaml:"pid"`
}

// Config is the top level daemon configuration
type Config struct {
	// Addr is the listen address
	Addr string `koanf:"addr" yaml:"addr"`

	// Mount is the URL prefix the DAC routes are served under
	Mount string `koanf:"mount" yaml:"mount"`

	// Profile names the device feature profile, see dac.ProfileNames
	Profile string `koanf:"profile" yaml:"profile"`

	// Transport selects register access: sim, mmio, serial, tcp, usb
	Transport string `koanf:"transport" yaml:"transport"`

	// TCPAddr is the bridge address for the tcp transport
	TCPAddr string `koanf:"tcp-addr" yaml:"tcp-addr"`

	// Rate bounds bridge telegrams per second; 0 means the default
	Rate float64 `koanf:"rate" yaml:"rate"`

	// SkipValidation trusts callers and disables driver parameter and
	// state checks
	SkipValidation bool `koanf:"skip-validation" yaml:"skip-validation"`

	MMIO   MMIOSetup   `koanf:"mmio" yaml:"mmio"`
	Serial SerialSetup `koanf:"serial" yaml:"serial"`
	USB    USBSetup    `koanf:"usb" yaml:"usb"`

	// Channels lists the channels this server exposes
	Channels []ChannelSetup `koanf:"channels" yaml:"channels"`
}

// regBlockSize is the span of the DAC register block in bytes
const regBlockSize = 16

// buildRegisters opens the configured register transport.  The returned
// closer is nil for transports with nothing to release.
func buildRegisters(c Config) (dac.Registers, io.Closer, error) {
	switch strings.ToLower(c.Transport) {
	case "", "sim":
		return mmio.NewSim(regBlockSize), nil, nil
	case "mmio":
		dev, err := mmio.OpenDevice(c.MMIO.Devmem, c.MMIO.Base, regBlockSize)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev, nil
	case "serial":
		conn, err := comm.OpenSerial(c.Serial.Port, c.Serial.Baud)
		if err != nil {
			return nil, nil, err
		}
		r := bridge.NewRemote(conn, c.Rate)
		return r, r, nil
	case "tcp":
		conn, err := comm.OpenTCP(c.TCPAddr)
		if err != nil {
			return nil, nil, err
		}
		r := bridge.NewRemote(conn, c.Rate)
		return r, r, nil
	case "usb":
		conn, err := comm.OpenUSB(c.USB.VID, c.USB.PID)
		if err != nil {
			return nil, nil, err
		}
		r := bridge.NewRemote(conn, c.Rate)
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q, want sim, mmio, serial, tcp, or usb", c.Transport)
	}
}

// parseFormat maps the config string to the driver enum
func parseFormat(s string) (dac.DataFormat, error) {
	switch strings.ToLower(s) {
	case "", "right":
		return dac.FormatRightJustified, nil
	case "left":
		return dac.FormatLeftJustified, nil
	default:
		return 0, fmt.Errorf("unknown data format %q, want right or left", s)
	}
}

// driverConfig converts a ChannelSetup to the driver's Config
func driverConfig(cs ChannelSetup) (dac.Config, error) {
	fmtsel, err := parseFormat(cs.Format)
	if err != nil {
		return dac.Config{}, err
	}
	return dac.Config{
		Channel:         cs.Channel,
		Format:          fmtsel,
		SynchronizeADC:  cs.SyncADC,
		OutputAmplifier: cs.Amplifier,
		ChargePump:      cs.ChargePump,
	}, nil
}
