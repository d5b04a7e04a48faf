package dac

import (
	"fmt"
	"sort"
)

// Features describes the optional capabilities of a DAC block.  The silicon
// fixes these per device; resolve a profile once at startup and treat it as
// immutable afterwards.
type Features struct {
	// Channels is the number of output channels present (1 or 2)
	Channels int

	// OutputAmplifier is true if the channels have an output buffer
	// amplifier stage, which needs a settling sequence at start
	OutputAmplifier bool

	// ChargePump is true if the reference has a charge pump (DAPC register)
	ChargePump bool

	// VRefSelect is true if the reference voltage source is selectable
	// (DAVREFCR register)
	VRefSelect bool

	// SyncADCUnit1 is true if a second A/D unit exists for D/A-A/D
	// synchronization; selecting it powers that unit on
	SyncADCUnit1 bool
}

var profiles = map[string]Features{
	"RA6M3": {Channels: 2, OutputAmplifier: true, SyncADCUnit1: true},
	"RA4W1": {Channels: 1, VRefSelect: true},
	"RA2A1": {Channels: 1, ChargePump: true},
}

// Profile returns the feature set of a named device
func Profile(name string) (Features, error) {
	f, ok := profiles[name]
	if !ok {
		return f, fmt.Errorf("unknown device profile %q, known: %v", name, ProfileNames())
	}
	return f, nil
}

// ProfileNames returns the known device profile names, sorted
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for k := range profiles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
