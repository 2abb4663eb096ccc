package service

import (
	"time"

	"parkspot/internal/db"
	"parkspot/internal/entities"
)

// Work window over which per-day availability is reported.
const (
	workDayStartHour = 8
	workDayEndHour   = 17
)

// WorkWindow returns the [start, end) reporting window for the given date, in
// the date's location.
func WorkWindow(date time.Time) (time.Time, time.Time) {
	year, month, day := date.Date()
	start := time.Date(year, month, day, workDayStartHour, 0, 0, 0, date.Location())
	end := time.Date(year, month, day, workDayEndHour, 0, 0, 0, date.Location())
	return start, end
}

// ComputeFreeSlots sweeps the reservations intersecting [winStart, winEnd) and
// returns the ordered maximal free sub-intervals, plus whether the whole
// window is free. Reservations must be ordered by start time, which the store
// guarantees. An open-ended reservation occupies through the end of the
// window. An empty result means the spot is fully booked.
func ComputeFreeSlots(winStart, winEnd time.Time, reservations []db.Reservation) ([]entities.TimeSlot, bool) {
	if len(reservations) == 0 {
		return []entities.TimeSlot{{Start: winStart, End: winEnd}}, true
	}

	var slots []entities.TimeSlot
	cursor := winStart

	for _, res := range reservations {
		if !res.Interval().Intersects(winStart, winEnd) {
			continue
		}
		effectiveStart := res.StartTime
		if effectiveStart.Before(winStart) {
			effectiveStart = winStart
		}
		if cursor.Before(effectiveStart) {
			slots = append(slots, entities.TimeSlot{Start: cursor, End: effectiveStart})
		}

		effectiveEnd := winEnd
		if res.EndTime != nil {
			effectiveEnd = *res.EndTime
		}
		if effectiveEnd.After(cursor) {
			cursor = effectiveEnd
		}
	}

	if cursor.Before(winEnd) {
		slots = append(slots, entities.TimeSlot{Start: cursor, End: winEnd})
	}

	allDay := len(slots) == 1 && slots[0].Start.Equal(winStart) && slots[0].End.Equal(winEnd)
	return slots, allDay
}
