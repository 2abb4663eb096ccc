package entities

import "time"

// ReservationResponse is the outward shape of a reservation. EndTime is nil
// while an on-demand reservation is still open.
type ReservationResponse struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	UserID        int64      `json:"user_id"`
	ParkingSpotID int64      `json:"parking_spot_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Kind          string     `json:"kind"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ReservationsList struct {
	Total        int                   `json:"total"`
	Reservations []ReservationResponse `json:"reservations"`
}
