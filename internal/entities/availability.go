package entities

// SpotAvailability reports the free time inside the work window for one spot:
// the ordered maximal free sub-intervals, and whether the single slot covers
// the whole window.
type SpotAvailability struct {
	ParkingSpotID int64      `json:"parking_spot_id"`
	TimeSlots     []TimeSlot `json:"time_slots"`
	AllDay        bool       `json:"all_day"`
}

// AvailabilityReport maps spot number to that spot's availability. Spots with
// no free slots are not present.
type AvailabilityReport map[int]SpotAvailability
