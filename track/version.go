package track

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version information for the tracked-reference library.
const (
	// Version is the current library version.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides information about the library.
type Info struct {
	// Version is the library version string.
	Version string

	// Algorithm is the invalidation scheme used.
	Algorithm string
}

// GetInfo returns information about the library.
//
// Example:
//
//	info := track.GetInfo()
//	fmt.Printf("track %s (%s)\n", info.Version, info.Algorithm)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Algorithm: "generation-stamped slots, lazy invalidation",
	}
}

// Compatible reports whether data written for version v (for example a
// replay scenario) can be used with this library: same major version and not
// newer than Version. The leading "v" is optional.
func Compatible(v string) bool {
	want := canonical(v)
	if want == "" {
		return false
	}
	have := canonical(Version)
	return semver.Major(want) == semver.Major(have) && semver.Compare(want, have) <= 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
