package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a (major, minor, patch) triple compared lexicographically
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "major.minor.patch" into a Version
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", s, p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion parses a version literal and panics on malformed input.
// Intended for compile-time constants such as upgrade step declarations.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is ordered before, equal to, or after other
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return sign(v.Major - other.Major)
	}
	if v.Minor != other.Minor {
		return sign(v.Minor - other.Minor)
	}
	return sign(v.Patch - other.Patch)
}

// Before reports v < other
func (v Version) Before(other Version) bool { return v.Compare(other) < 0 }

// After reports v > other
func (v Version) After(other Version) bool { return v.Compare(other) > 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// ClusterVersionRecord is the singleton per-cluster version row. It is
// created once at cluster initialization and only ever moves forward,
// mutated exclusively by the upgrade engine.
type ClusterVersionRecord struct {
	InitializedVersion   *Version
	LastDeployVersion    Version
	LastSubstrateVersion string
}
