package compat

import (
	"fmt"
	"regexp"
	"strconv"
)

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// VersionFormatError reports a version string that does not follow
// semantic versioning. It is fatal only for the affected schema's bump
// check: diffing proceeds with the version treated as absent.
type VersionFormatError struct {
	Raw string
}

// Error implements the error interface
func (e *VersionFormatError) Error() string {
	return fmt.Sprintf("invalid semantic version %q", e.Raw)
}

// Version is a parsed semantic version
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Build      string
	Raw        string
}

// ParseVersion parses MAJOR.MINOR.PATCH with optional pre-release and
// build metadata, and an optional leading v.
func ParseVersion(raw string) (*Version, error) {
	m := semverRegex.FindStringSubmatch(raw)
	if m == nil {
		return nil, &VersionFormatError{Raw: raw}
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return &Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: m[4],
		Build:      m[5],
		Raw:        raw,
	}, nil
}

// String returns the raw version string
func (v *Version) String() string {
	return v.Raw
}

// Bump classifies the distance between two versions
type Bump int

const (
	BumpNone Bump = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

// String returns the bump name
func (b Bump) String() string {
	return []string{"none", "patch", "minor", "major"}[b]
}

// BumpBetween returns the version component that increased from one
// version to the next. Downgrades and equal versions yield BumpNone.
func BumpBetween(from, to *Version) Bump {
	switch {
	case to.Major > from.Major:
		return BumpMajor
	case to.Major < from.Major:
		return BumpNone
	case to.Minor > from.Minor:
		return BumpMinor
	case to.Minor < from.Minor:
		return BumpNone
	case to.Patch > from.Patch:
		return BumpPatch
	default:
		return BumpNone
	}
}

// validateBump applies the semver rule to a pair of raw version
// strings. Absent or unparseable versions skip the check: the
// corresponding report field stays nil and the result is true.
func validateBump(fromRaw, toRaw string, required Bump) (fromVersion, toVersion *string, valid bool) {
	from, errFrom := parseOptional(fromRaw)
	to, errTo := parseOptional(toRaw)

	if from != nil && errFrom == nil {
		fromVersion = &from.Raw
	}
	if to != nil && errTo == nil {
		toVersion = &to.Raw
	}

	if fromVersion == nil || toVersion == nil {
		return fromVersion, toVersion, true
	}

	actual := BumpBetween(from, to)
	return fromVersion, toVersion, actual >= required
}

// parseOptional treats an empty string as an absent version rather
// than a format error.
func parseOptional(raw string) (*Version, error) {
	if raw == "" {
		return nil, nil
	}
	return ParseVersion(raw)
}
