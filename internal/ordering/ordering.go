// Package ordering assigns fractional positions to siblings in a
// drag-and-drop ordered collection. New and moved entries are placed
// relative to optional before/after anchors so a reorder touches one
// row; when the float gap between neighbors collapses the whole
// sibling group is renumbered to uniform spacing.
package ordering

import "math"

const (
	// Gap is the spacing between siblings after an append or a reindex.
	Gap = 100.0
	// Epsilon is the smallest usable distance between two positions.
	// Anything closer is treated as a collision and triggers a reindex.
	Epsilon = 0.0001
)

// Anchor is the resolved position of a before/after sibling. An anchor
// whose id did not resolve within the target sibling group is absent.
type Anchor struct {
	Position float64
	Present  bool
}

// At returns a present anchor at the given position.
func At(position float64) Anchor {
	return Anchor{Position: position, Present: true}
}

// None returns an absent anchor.
func None() Anchor {
	return Anchor{}
}

// ErrNoAnchors is returned by PlaceStrict when neither anchor resolved.
type noAnchorsError struct{}

func (noAnchorsError) Error() string { return "ordering: at least one anchor is required" }

// ErrNoAnchors reports that a placement had no usable anchors.
var ErrNoAnchors error = noAnchorsError{}

// Place computes the position for an entry placed relative to two
// optional anchors. With both anchors it lands on their midpoint, with
// one anchor it lands a Gap beyond it, and with none it defaults to Gap
// (the first slot of an empty group).
func Place(before, after Anchor) float64 {
	switch {
	case before.Present && after.Present:
		return (before.Position + after.Position) / 2
	case before.Present:
		return before.Position + Gap
	case after.Present:
		return after.Position - Gap
	default:
		return Gap
	}
}

// PlaceStrict is Place for collections that refuse anchorless moves
// (board lists). It fails with ErrNoAnchors instead of defaulting.
func PlaceStrict(before, after Anchor) (float64, error) {
	if !before.Present && !after.Present {
		return 0, ErrNoAnchors
	}
	return Place(before, after), nil
}

// Append returns the position for an entry added at the end of a group
// whose current maximum position is maxPosition (zero for an empty group).
func Append(maxPosition float64) float64 {
	return maxPosition + Gap
}

// NeedsReindex reports whether placing at position between the two
// anchors collapsed the gap. Only a both-anchors placement can collide;
// single-anchor placements always move a full Gap into open space.
func NeedsReindex(before, after Anchor, position float64) bool {
	if !before.Present || !after.Present {
		return false
	}
	return math.Abs(before.Position-position) < Epsilon ||
		math.Abs(after.Position-position) < Epsilon ||
		after.Position-before.Position < Epsilon
}

// Reindexed returns the uniform positions {Gap, 2*Gap, ...} for a
// sibling group of n entries kept in ascending-position order.
// Applying it to an already reindexed group is a no-op.
func Reindexed(n int) []float64 {
	positions := make([]float64, n)
	for i := range positions {
		positions[i] = float64(i+1) * Gap
	}
	return positions
}
