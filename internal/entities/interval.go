package entities

import "time"

// Interval is the occupancy window of a reservation. End == nil means the
// reservation is open-ended (on-demand, blocks until checkout). Bounded
// intervals are half-open [Start, End), so back-to-back reservations on the
// same spot do not collide.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func NewInterval(start time.Time, end *time.Time) Interval {
	return Interval{Start: start, End: end}
}

func (iv Interval) IsOpen() bool {
	return iv.End == nil
}

// Valid reports whether a bounded interval has End strictly after Start.
// Open intervals are always valid.
func (iv Interval) Valid() bool {
	return iv.End == nil || iv.End.After(iv.Start)
}

// Overlaps is the single conflict predicate used by every availability and
// conflict check. An open interval is treated as [Start, infinity): it
// conflicts with any bounded interval ending after its start, and two open
// intervals on the same spot always conflict. Identical starts always
// conflict, including the degenerate zero-duration on-demand case.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.Start.Equal(other.Start) {
		return true
	}
	if iv.IsOpen() && other.IsOpen() {
		return true
	}
	if iv.IsOpen() {
		return other.End.After(iv.Start)
	}
	if other.IsOpen() {
		return iv.End.After(other.Start)
	}
	return iv.Start.Before(*other.End) && other.Start.Before(*iv.End)
}

// Intersects reports whether the interval touches the half-open window
// [winStart, winEnd). Open intervals count as running through the window end.
func (iv Interval) Intersects(winStart, winEnd time.Time) bool {
	if !iv.Start.Before(winEnd) {
		return false
	}
	return iv.IsOpen() || iv.End.After(winStart)
}

// TimeSlot is one maximal free sub-interval inside a work window.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
