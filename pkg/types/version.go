package types

import (
	"github.com/Masterminds/semver/v3"
)

// Supported major versions of the three on-disk document formats.
// A document carrying a larger major version is rejected (forward-incompatible);
// unknown minor or patch versions, and unknown JSON fields, are accepted.
const (
	PackFormatMajor    = 1
	StateFormatMajor   = 1
	OverlayFormatMajor = 1
)

// Current format versions written by this implementation.
const (
	CurrentPackVersion    = "1.0.0"
	CurrentStateVersion   = "1.0.0"
	CurrentOverlayVersion = "1.0.0"
)

// checkFormatVersion validates a document's semantic-version field against a
// supported major version and records any reasons on result.
func checkFormatVersion(result *ValidationResult, field, value string, supportedMajor uint64) {
	if value == "" {
		result.addErrorf("%s is required", field)
		return
	}
	v, err := semver.NewVersion(value)
	if err != nil {
		result.addErrorf("%s %q is not a valid semantic version", field, value)
		return
	}
	if v.Major() > supportedMajor {
		result.addErrorf("%s %q has unsupported major version %d (max supported: %d)",
			field, value, v.Major(), supportedMajor)
	}
}
