package dac

import "fmt"

// Version identifies the driver API and code revisions
type Version struct {
	APIMajor  uint8
	APIMinor  uint8
	CodeMajor uint8
	CodeMinor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("api %d.%d code %d.%d", v.APIMajor, v.APIMinor, v.CodeMajor, v.CodeMinor)
}

// version is fixed at build time
var version = Version{APIMajor: 1, APIMinor: 1, CodeMajor: 1, CodeMinor: 6}

// VersionGet copies the driver version into out.  It fails only when out is
// nil, and works on closed blocks.
func VersionGet(out *Version) error {
	if out == nil {
		return fmt.Errorf("versionget: %w", ErrNilPointer)
	}
	*out = version
	return nil
}
