package dac

import (
	"errors"
	"testing"
	"time"

	"github.com/embedlab/radac/mmio"
)

type powerCall struct {
	m    Module
	unit int
}

// recordingPower records module start requests
type recordingPower struct {
	calls []powerCall
}

func (r *recordingPower) StartModule(m Module, unit int) error {
	r.calls = append(r.calls, powerCall{m, unit})
	return nil
}

// recordingDelay records settling waits instead of sleeping
type recordingDelay struct {
	delays []time.Duration
}

func (r *recordingDelay) Delay(d time.Duration) {
	r.delays = append(r.delays, d)
}

func testPeripheral(t *testing.T, profile string) (*Peripheral, *mmio.Sim, *recordingPower, *recordingDelay) {
	t.Helper()
	feat, err := Profile(profile)
	if err != nil {
		t.Fatal(err)
	}
	sim := mmio.NewSim(16)
	pwr := &recordingPower{}
	dly := &recordingDelay{}
	p := NewPeripheral(sim, feat)
	p.Power = pwr
	p.Delay = dly
	return p, sim, pwr, dly
}

func TestOpenThenReopenFails(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Fatalf("open on a fresh block failed: %v", err)
	}
	err := ch.Open(p, Config{Channel: 0})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second open without close: got %v, want ErrAlreadyOpen", err)
	}
}

func TestOperationsBeforeOpen(t *testing.T) {
	var ch Channel
	cases := map[string]func() error{
		"write": func() error { return ch.Write(0x0100) },
		"start": func() error { return ch.Start() },
		"stop":  func() error { return ch.Stop() },
		"close": func() error { return ch.Close() },
	}
	for name, op := range cases {
		if err := op(); !errors.Is(err, ErrNotOpen) {
			t.Errorf("%s before open: got %v, want ErrNotOpen", name, err)
		}
	}
	if _, err := ch.Started(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("started before open: got %v, want ErrNotOpen", err)
	}
}

func TestDoubleStartIsInUse(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Start(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Start(); !errors.Is(err, ErrInUse) {
		t.Errorf("second start: got %v, want ErrInUse", err)
	}
}

func TestDoubleStartTrustedMode(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA6M3")
	p.SkipValidation = true
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Start(); err != nil {
		t.Fatal(err)
	}
	// validation off, the in-use check does not run
	if err := ch.Start(); err != nil {
		t.Errorf("second start in trusted mode: got %v, want nil", err)
	}
}

func TestCloseAllowsReopen(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	for i := 0; i < 3; i++ {
		if err := ch.Open(p, Config{Channel: 0}); err != nil {
			t.Fatalf("open cycle %d: %v", i, err)
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("close cycle %d: %v", i, err)
		}
	}
}

func TestChannelNotPresent(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA4W1") // single channel device
	var ch Channel
	if err := ch.Open(p, Config{Channel: 1}); !errors.Is(err, ErrChannelNotPresent) {
		t.Errorf("channel 1 on one-channel device: got %v, want ErrChannelNotPresent", err)
	}
	if err := ch.Open(p, Config{Channel: -1}); !errors.Is(err, ErrChannelNotPresent) {
		t.Errorf("negative channel: got %v, want ErrChannelNotPresent", err)
	}
}

func TestBadFormat(t *testing.T) {
	p, _, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0, Format: DataFormat(7)}); !errors.Is(err, ErrBadFormat) {
		t.Errorf("format 7: got %v, want ErrBadFormat", err)
	}
}

func TestVersionGet(t *testing.T) {
	if err := VersionGet(nil); !errors.Is(err, ErrNilPointer) {
		t.Errorf("nil out: got %v, want ErrNilPointer", err)
	}
	var v Version
	if err := VersionGet(&v); err != nil {
		t.Fatal(err)
	}
	if v != version {
		t.Errorf("got %v, want %v", v, version)
	}
	if v.String() == "" {
		t.Error("version string is empty")
	}
}

func TestStartAmplifierRestoresValue(t *testing.T) {
	p, sim, _, dly := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0, OutputAmplifier: true}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Write(0xABCD); err != nil {
		t.Fatal(err)
	}
	if err := ch.Start(); err != nil {
		t.Fatal(err)
	}
	got, err := sim.Read16(regDADR0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xABCD {
		t.Errorf("data register after amplifier start: got %#04X, want 0xABCD", got)
	}
	if len(dly.delays) != 1 || dly.delays[0] != stabilizationDelay {
		t.Errorf("settling delays: got %v, want one of %v", dly.delays, stabilizationDelay)
	}
	cr, _ := sim.Read8(regDACR)
	if cr&(1<<daoeBit) == 0 {
		t.Error("output enable not set after start")
	}
	amp, _ := sim.Read8(regDAAMPCR)
	if amp&(1<<daampBit) == 0 {
		t.Error("amplifier control not set after start")
	}
	sw, _ := sim.Read8(regDAASWCR)
	if sw&(1<<daaswBit) != 0 {
		t.Error("stabilization wait still set after start")
	}
}

func TestLifecycleScenario(t *testing.T) {
	p, sim, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Write(0x0200); err != nil {
		t.Fatal(err)
	}
	if err := ch.Start(); err != nil {
		t.Fatal(err)
	}
	started, err := ch.Started()
	if err != nil {
		t.Fatal(err)
	}
	if !started {
		t.Error("output enable bit not set after start")
	}
	if err := ch.Stop(); err != nil {
		t.Fatal(err)
	}
	started, _ = ch.Started()
	if started {
		t.Error("output enable bit still set after stop")
	}
	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	amp, _ := sim.Read8(regDAAMPCR)
	if amp&(1<<daampBit) != 0 {
		t.Error("amplifier control still set after close")
	}
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Errorf("reopen after close: %v", err)
	}
}

func TestSecondChannelBits(t *testing.T) {
	p, sim, _, _ := testPeripheral(t, "RA6M3")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 1}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Write(0x0123); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim.Read16(regDADR1); v != 0x0123 {
		t.Errorf("channel 1 data register: got %#04X, want 0x0123", v)
	}
	if err := ch.Start(); err != nil {
		t.Fatal(err)
	}
	cr, _ := sim.Read8(regDACR)
	if cr&(1<<(daoeBit+1)) == 0 {
		t.Error("channel 1 output enable not set")
	}
	if cr&(1<<daoeBit) != 0 {
		t.Error("channel 0 output enable set by channel 1 start")
	}
}

func TestSyncPowersADCUnitOnce(t *testing.T) {
	p, sim, pwr, _ := testPeripheral(t, "RA6M3")
	var ch0, ch1 Channel
	if err := ch0.Open(p, Config{Channel: 0, SynchronizeADC: true}); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim.Read8(regDAADUSR); v != daadusrUnit1 {
		t.Errorf("unit select register: got %#02X, want %#02X", v, daadusrUnit1)
	}
	if v, _ := sim.Read8(regDAADSCR); v != 1<<daadstBit {
		t.Errorf("synchronous start register: got %#02X, want %#02X", v, 1<<daadstBit)
	}
	if err := ch1.Open(p, Config{Channel: 1, SynchronizeADC: true}); err != nil {
		t.Fatal(err)
	}
	adcStarts := 0
	for _, c := range pwr.calls {
		if c.m == ModuleADC {
			adcStarts++
			if c.unit != 1 {
				t.Errorf("A/D start on unit %d, want 1", c.unit)
			}
		}
	}
	if adcStarts != 1 {
		t.Errorf("A/D unit powered %d times across two synchronized opens, want 1", adcStarts)
	}
}

func TestSyncWithoutSecondADCUnit(t *testing.T) {
	p, sim, pwr, _ := testPeripheral(t, "RA4W1")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0, SynchronizeADC: true}); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim.Read8(regDAADSCR); v != 1<<daadstBit {
		t.Errorf("synchronous start register: got %#02X, want %#02X", v, 1<<daadstBit)
	}
	for _, c := range pwr.calls {
		if c.m == ModuleADC {
			t.Error("A/D module started on a device without a second unit")
		}
	}
}

func TestOptionalRegisters(t *testing.T) {
	// reference select exists on RA4W1
	p, sim, _, _ := testPeripheral(t, "RA4W1")
	var ch Channel
	if err := ch.Open(p, Config{Channel: 0}); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim.Read8(regDAVREFCR); v != davrefAVCC0 {
		t.Errorf("reference select: got %#02X, want %#02X", v, davrefAVCC0)
	}

	// charge pump exists on RA2A1
	p2, sim2, _, _ := testPeripheral(t, "RA2A1")
	var ch2 Channel
	if err := ch2.Open(p2, Config{Channel: 0, ChargePump: true}); err != nil {
		t.Fatal(err)
	}
	if v, _ := sim2.Read8(regDAPC); v != 1 {
		t.Errorf("charge pump register: got %#02X, want 1", v)
	}
}
