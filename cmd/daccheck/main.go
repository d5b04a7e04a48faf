// Command daccheck is an interactive bench checkout for a DAC channel.  Hook
// a meter or scope to the output and step through the prompts.
package main

import (
	"bufio"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/theckman/yacspin"

	"github.com/embedlab/radac/bridge"
	"github.com/embedlab/radac/comm"
	"github.com/embedlab/radac/dac"
	"github.com/embedlab/radac/mmio"
)

var (
	transport = flag.String("transport", "sim", "register transport: sim, serial, or tcp")
	port      = flag.String("port", "/dev/ttyUSB0", "serial port of the register bridge")
	baud      = flag.Int("baud", 115200, "serial baud rate")
	tcpAddr   = flag.String("tcp", "localhost:2001", "tcp address of the register bridge")
	profile   = flag.String("profile", "RA6M3", "device feature profile")
	channel   = flag.Int("channel", 0, "channel to exercise")
	amp       = flag.Bool("amp", false, "enable the output amplifier")
)

func openRegs() (dac.Registers, io.Closer) {
	switch *transport {
	case "sim":
		return mmio.NewSim(16), nil
	case "serial":
		conn, err := comm.OpenSerial(*port, *baud)
		if err != nil {
			log.Fatal(err)
		}
		r := bridge.NewRemote(conn, 0)
		return r, r
	case "tcp":
		conn, err := comm.OpenTCP(*tcpAddr)
		if err != nil {
			log.Fatal(err)
		}
		r := bridge.NewRemote(conn, 0)
		return r, r
	default:
		log.Fatal("unknown transport ", *transport)
		return nil, nil
	}
}

// ramp walks the output from zero up to and including stop
func ramp(ch *dac.Channel, stop, step uint16, dT time.Duration) error {
	var out uint16
	for ; out < stop-step+1; out += step {
		if err := ch.Write(out); err != nil {
			return err
		}
		time.Sleep(dT)
	}
	// the loop stops short of full scale; land on it exactly
	return ch.Write(stop)
}

func main() {
	flag.Parse()
	reader := bufio.NewReader(os.Stdin)

	feat, err := dac.Profile(*profile)
	if err != nil {
		log.Fatal(err)
	}
	regs, closer := openRegs()
	if closer != nil {
		defer closer.Close()
	}
	periph := dac.NewPeripheral(regs, feat)

	var ch dac.Channel
	log.Printf("opening channel %d (amplifier=%v)", *channel, *amp)
	err = ch.Open(periph, dac.Config{Channel: *channel, OutputAmplifier: *amp})
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	log.Println("press enter to write midscale (0x0800) and start the output")
	reader.ReadString('\n')
	if err := ch.Write(0x0800); err != nil {
		log.Fatal(err)
	}
	if err := ch.Start(); err != nil {
		log.Fatal(err)
	}
	log.Println("output enabled; expect half of full scale on the meter")

	log.Println("press enter to write zero scale, then full scale")
	reader.ReadString('\n')
	ch.Write(0x0000)
	time.Sleep(time.Second)
	ch.Write(0x0FFF)

	log.Println("advancing to ramp test")
	log.Println("start=0, stop=0x0FFF, step=8, dT=15ms (~8s); press enter to start")
	reader.ReadString('\n')
	spinner, err := yacspin.New(yacspin.Config{
		Frequency: 100 * time.Millisecond,
		CharSet:   yacspin.CharSets[59],
		Suffix:    " ramping",
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	if err := ramp(&ch, 0x0FFF, 8, 15*time.Millisecond); err != nil {
		spinner.Stop()
		log.Fatal(err)
	}
	spinner.Stop()

	log.Println("press enter to stop the output and close")
	reader.ReadString('\n')
	if err := ch.Stop(); err != nil {
		log.Fatal(err)
	}
	log.Println("test complete")
}
