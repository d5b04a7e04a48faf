package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/embedlab/radac/dac"
	httpdac "github.com/embedlab/radac/generichttp/dac"
	"github.com/embedlab/radac/server/middleware/locker"
)

var (
	// Version is the version number.  Typically injected via ldflags with
	// git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "dacsrv.yml"

	k = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:    ":8000",
		Mount:   "dac",
		Profile: "RA6M3",
		Channels: []ChannelSetup{
			{Channel: 0, Format: "right"},
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `dacsrv operates a D/A converter block and exposes an HTTP interface to it.
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	dacsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `dacsrv is amenable to configuration via its .yml file.  For a primer on YAML,
see https://yaml.org/start.html

Device profiles select which optional hardware features exist (channel count,
output amplifier, charge pump, reference select, A/D synchronization):
	` + strings.Join(dac.ProfileNames(), ", ") + `

Register transports:
	sim     in-memory register file, no hardware required
	mmio    memory mapped block via /dev/mem (linux, needs root)
	serial  register bridge monitor on a serial port
	tcp     register bridge monitor behind a terminal server
	usb     register bridge monitor on USB bulk endpoints

Channels listed in the config are opened at startup and may be cycled through
the /chan/{n}/open and /chan/{n}/close routes.  POST a json bool to /lock to
freeze hardware access during alignment.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	var v dac.Version
	dac.VersionGet(&v)
	fmt.Printf("dacsrv version %v, driver %v\n", Version, v)
}

// boundChannel binds a control block to its peripheral and open-time
// configuration, adapting the driver API to the HTTP layer's interface
type boundChannel struct {
	ch  *dac.Channel
	p   *dac.Peripheral
	cfg dac.Config
}

func (b *boundChannel) Open() error { return b.ch.Open(b.p, b.cfg) }

func (b *boundChannel) Write(v uint16) error { return b.ch.Write(v) }

func (b *boundChannel) Start() error { return b.ch.Start() }

func (b *boundChannel) Stop() error { return b.ch.Stop() }

func (b *boundChannel) Close() error { return b.ch.Close() }

func (b *boundChannel) Started() (bool, error) { return b.ch.Started() }

// driverVersion adapts dac.VersionGet to the HTTP layer
type driverVersion struct{}

func (driverVersion) Version() (string, error) {
	var v dac.Version
	if err := dac.VersionGet(&v); err != nil {
		return "", err
	}
	return v.String(), nil
}

func run() {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	feat, err := dac.Profile(c.Profile)
	if err != nil {
		log.Fatal(err)
	}
	regs, closer, err := buildRegisters(c)
	if err != nil {
		log.Fatal("error opening register transport: ", err)
	}
	periph := dac.NewPeripheral(regs, feat)
	periph.SkipValidation = c.SkipValidation

	chans := map[int]httpdac.Channel{}
	bound := make([]*boundChannel, 0, len(c.Channels))
	for _, cs := range c.Channels {
		dcfg, err := driverConfig(cs)
		if err != nil {
			log.Fatal(err)
		}
		b := &boundChannel{ch: &dac.Channel{}, p: periph, cfg: dcfg}
		if err := b.Open(); err != nil {
			log.Fatalf("error opening channel %d: %v", cs.Channel, err)
		}
		log.Printf("channel %d open (amplifier=%v sync-adc=%v)", cs.Channel, cs.Amplifier, cs.SyncADC)
		chans[cs.Channel] = b
		bound = append(bound, b)
	}

	httpD := httpdac.NewHTTPDAC(chans, driverVersion{})
	lock := locker.New()
	locker.Inject(httpD, lock)

	r := chi.NewRouter()
	r.Use(lock.Check)
	httpD.RouteTable.Bind(r)

	rootR := chi.NewRouter()
	rootR.Use(middleware.Logger)
	mount := "/" + strings.Trim(c.Mount, "/")
	rootR.Mount(mount, r)
	log.Printf("DAC available via HTTP at %s on %s", mount, c.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		for _, b := range bound {
			b.Close()
		}
		if closer != nil {
			closer.Close()
		}
		os.Exit(0)
	}()
	log.Fatal(http.ListenAndServe(c.Addr, rootR))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
