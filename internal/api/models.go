package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Auth
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type LoginResponse struct {
	Token string `json:"token"`
}
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

// Reservations. Timestamps are RFC 3339 with offset; the engine treats them
// as absolute instants.
type CreateOnDemandReservationRequest struct {
	ParkingSpotID int64     `json:"parking_spot_id"`
	StartTime     time.Time `json:"start_time"`
}
type CreateScheduledReservationRequest struct {
	ParkingSpotID int64     `json:"parking_spot_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}
type UpdateReservationRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}
type CheckoutRequest struct {
	ParkingSpotID int64 `json:"parking_spot_id"`
}

// Inventory
type CreateFacilityRequest struct {
	Name             string `json:"name"`
	ParkingSpotCount int    `json:"parking_spot_count"`
	ManagerID        *int64 `json:"manager_id"`
}
type UpdateFacilityRequest struct {
	Name             *string `json:"name"`
	ParkingSpotCount *int    `json:"parking_spot_count"`
	ManagerID        *int64  `json:"manager_id"`
}
type CreateSpotRequest struct {
	FacilityID int64 `json:"facility_id"`
	SpotNumber int   `json:"spot_number"`
}
type UpdateSpotRequest struct {
	SpotNumber int `json:"spot_number"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
