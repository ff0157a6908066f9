// Package version normalizes and orders the dotted version strings reported for drivers.
//
// Input is never rejected: anything that cannot be read as a version degrades to 0.0.0.0,
// which orders below every real version.
package version

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

const (
	// Zero is the normalized form of an empty or unreadable version.
	Zero = "0.0.0.0"

	// Unknown is the placeholder some enumerators report for a missing driver version.
	Unknown = "Unknown"

	segments = 4
)

// Ordering is the result of Compare.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Normalize keeps only digits and dots, then returns exactly four dot separated segments.
// Empty segments read as "0", extra segments are dropped, missing ones are padded with "0".
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if strings.Trim(cleaned, ".") == "" {
		return Zero
	}

	parts := strings.Split(cleaned, ".")
	if len(parts) > segments {
		parts = parts[:segments]
	}
	for i := range parts {
		if parts[i] == "" {
			parts[i] = "0"
		}
	}
	for len(parts) < segments {
		parts = append(parts, "0")
	}

	return strings.Join(parts, ".")
}

// Parse returns the numeric form of raw. Segments that overflow degrade the result to Zero.
func Parse(raw string) *goversion.Version {
	v, err := goversion.NewVersion(Normalize(raw))
	if err != nil {
		return goversion.Must(goversion.NewVersion(Zero))
	}
	return v
}

// Compare orders a and b segment by segment, numerically.
func Compare(a, b string) Ordering {
	switch c := Parse(a).Compare(Parse(b)); {
	case c < 0:
		return Less
	case c > 0:
		return Greater
	default:
		return Equal
	}
}

// IsUnset reports whether raw carries no usable driver version.
func IsUnset(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || strings.EqualFold(raw, Unknown) || raw == Zero
}

// Major returns the first segment of the normalized version.
func Major(raw string) int64 {
	segs := Parse(raw).Segments64()
	if len(segs) == 0 {
		return 0
	}
	return segs[0]
}
