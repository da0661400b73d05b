package filter

import (
	"fmt"
	"strings"
)

// Target is one near-color entry: a pixel within Delta of Color on every
// channel is erased
type Target struct {
	Color RGB
	Delta uint8
}

// Matches reports whether (r, g, b) lies within the per-channel tolerance
func (t Target) Matches(r, g, b uint8) bool {
	return absDiff(r, t.Color.R) <= t.Delta &&
		absDiff(g, t.Color.G) <= t.Delta &&
		absDiff(b, t.Color.B) <= t.Delta
}

// Table is an ordered, read-only list of targets. The first match wins.
type Table struct {
	Version string
	Targets []Target
}

// DefaultTableVersion identifies the built-in palette
const DefaultTableVersion = "2024.1"

// DefaultDelta is the tolerance used by every built-in entry
const DefaultDelta = 5

// defaultTargets are anti-aliased edge colors sampled around red ink and
// highlighter strokes on scanned exam sheets
var defaultTargets = [...]Target{
	{RGB{224, 202, 202}, DefaultDelta},
	{RGB{218, 203, 204}, DefaultDelta},
	{RGB{229, 220, 220}, DefaultDelta},
	{RGB{230, 212, 220}, DefaultDelta},
	{RGB{215, 190, 197}, DefaultDelta},
	{RGB{254, 251, 249}, DefaultDelta},
	{RGB{197, 193, 194}, DefaultDelta},
	{RGB{197, 195, 196}, DefaultDelta},
	{RGB{198, 194, 195}, DefaultDelta},
	{RGB{200, 192, 195}, DefaultDelta},
	{RGB{200, 195, 195}, DefaultDelta},
	{RGB{200, 196, 195}, DefaultDelta},
	{RGB{201, 193, 194}, DefaultDelta},
	{RGB{202, 185, 187}, DefaultDelta},
	{RGB{203, 199, 198}, DefaultDelta},
	{RGB{205, 203, 204}, DefaultDelta},
}

// DefaultTable returns the built-in palette. Each call returns a fresh copy
// so callers can never mutate the shared data.
func DefaultTable() Table {
	targets := make([]Target, len(defaultTargets))
	copy(targets, defaultTargets[:])
	return Table{Version: DefaultTableVersion, Targets: targets}
}

// Match returns the index of the first matching target, or -1
func (t Table) Match(r, g, b uint8) int {
	for i, target := range t.Targets {
		if target.Matches(r, g, b) {
			return i
		}
	}
	return -1
}

// key identifies the table contents for caching derived lookups
func (t Table) key() string {
	var sb strings.Builder
	sb.WriteString(t.Version)
	for _, target := range t.Targets {
		fmt.Fprintf(&sb, "|%d,%d,%d,%d", target.Color.R, target.Color.G, target.Color.B, target.Delta)
	}
	return sb.String()
}

// Replacement is the color painted over every erased pixel
type Replacement int

const (
	White Replacement = iota
	Black
)

// RGB returns the replacement as a pixel value
func (r Replacement) RGB() RGB {
	if r == Black {
		return RGB{0, 0, 0}
	}
	return RGB{255, 255, 255}
}

func (r Replacement) String() string {
	if r == Black {
		return "black"
	}
	return "white"
}

// ParseReplacement parses "white" or "black"
func ParseReplacement(s string) (Replacement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white":
		return White, nil
	case "black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown replacement color %q (want white or black)", s)
}

// Algorithm selects how a filter pass is executed
type Algorithm int

const (
	// Reference is the scalar per-pixel implementation
	Reference Algorithm = iota
	// Accelerated has the same output as Reference, using a precomputed
	// lookup and concurrent row bands
	Accelerated
	// Approximate is the lower-accuracy fast tier: strong red plus a looser
	// "pinkish" rule, no table, no residual pass. Its output differs from
	// Reference on purpose.
	Approximate
)

func (a Algorithm) String() string {
	switch a {
	case Accelerated:
		return "accelerated"
	case Approximate:
		return "approximate"
	}
	return "reference"
}

// ParseAlgorithm parses an algorithm name. "cpu" and "gpu" are accepted
// for the names used by the desktop tool.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference", "cpu":
		return Reference, nil
	case "accelerated":
		return Accelerated, nil
	case "approximate", "gpu":
		return Approximate, nil
	}
	return Reference, fmt.Errorf("unknown algorithm %q (want reference, accelerated or approximate)", s)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
