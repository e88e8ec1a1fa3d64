package model

import (
	"fmt"
	"strings"
)

// Severity classifies how clinically serious an interaction is.
// The order is safe < moderate < high.
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Severities lists every valid level in ascending order.
var Severities = []Severity{SeveritySafe, SeverityModerate, SeverityHigh}

// ParseSeverity accepts a level case-insensitively. Anything outside the
// three enumerated values is rejected rather than ranked by guesswork.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeveritySafe:
		return SeveritySafe, nil
	case SeverityModerate:
		return SeverityModerate, nil
	case SeverityHigh:
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q (want safe, moderate or high)", s)
}

// Rank is the position of s in the total order, or -1 if s is invalid.
func (s Severity) Rank() int {
	switch s {
	case SeveritySafe:
		return 0
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the enumerated levels.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

func (s Severity) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and YAML
// decoding. Unknown levels fail the decode.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
