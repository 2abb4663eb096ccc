package db

import (
	"time"

	"parkspot/internal/entities"
)

// Reservation kinds. An on-demand reservation keeps its kind after checkout;
// checkout only fills the end time.
const (
	KindOnDemand  = "ondemand"
	KindScheduled = "scheduled"
)

// User roles.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

type Facility struct {
	ID               int64
	Name             string
	ParkingSpotCount int
	ManagerID        *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ParkingSpot struct {
	ID         int64
	FacilityID int64
	SpotNumber int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Reservation struct {
	ID            int64
	Code          string
	UserID        int64
	ParkingSpotID int64
	StartTime     time.Time
	EndTime       *time.Time
	Kind          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Interval returns the reservation's occupancy window as a value type so all
// overlap checks go through the one predicate in entities.
func (r *Reservation) Interval() entities.Interval {
	return entities.Interval{Start: r.StartTime, End: r.EndTime}
}

type User struct {
	ID              int64
	Name            string
	Email           string
	PasswordHash    string
	Phone           string
	Role            string
	FacilityID      *int64
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EmailVerificationPin struct {
	ID        int64
	UserID    int64
	Pin       string
	ExpiresAt time.Time
	CreatedAt time.Time
}
