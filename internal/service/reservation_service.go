package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/repository"
)

// ReservationService is the scheduling engine: it decides whether a candidate
// interval is free on a spot and, if so, commits it so no concurrent request
// can take an overlapping interval on the same spot. The check-then-write
// sequence always runs under the store's per-spot lock; the constraint in the
// schema backstops anything the lock does not cover.
type ReservationService struct {
	Store repository.ReservationStore
	Spots repository.FacilityStore

	now func() time.Time
}

func NewReservationService(store repository.ReservationStore, spots repository.FacilityStore) *ReservationService {
	return &ReservationService{Store: store, Spots: spots, now: time.Now}
}

// UpdateReservationParams carries the optional new bounds for an update. A nil
// StartTime keeps the current start. A nil EndTime keeps the current end for
// scheduled reservations; for on-demand reservations the end stays open
// unless explicitly supplied.
type UpdateReservationParams struct {
	StartTime *time.Time
	EndTime   *time.Time
}

// CreateOnDemand reserves the spot from start with no end; the reservation
// blocks the spot until checkout.
func (s *ReservationService) CreateOnDemand(ctx context.Context, userID, spotID int64, start time.Time) (*entities.ReservationResponse, error) {
	return s.create(ctx, userID, spotID, entities.NewInterval(start, nil), db.KindOnDemand)
}

// CreateScheduled reserves the spot for the bounded interval [start, end).
func (s *ReservationService) CreateScheduled(ctx context.Context, userID, spotID int64, start, end time.Time) (*entities.ReservationResponse, error) {
	return s.create(ctx, userID, spotID, entities.NewInterval(start, &end), db.KindScheduled)
}

func (s *ReservationService) create(ctx context.Context, userID, spotID int64, iv entities.Interval, kind string) (*entities.ReservationResponse, error) {
	if !iv.Valid() {
		return nil, apperr.ErrInvalidRange
	}
	if _, err := s.Spots.GetSpot(ctx, spotID); err != nil {
		return nil, err
	}

	res := &db.Reservation{
		Code:          uuid.NewString(),
		UserID:        userID,
		ParkingSpotID: spotID,
		StartTime:     iv.Start,
		EndTime:       iv.End,
		Kind:          kind,
	}

	err := s.Store.WithSpotLock(ctx, spotID, func(tx *sql.Tx) error {
		conflicts, err := s.Store.FindConflicting(ctx, tx, spotID, iv, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperr.ErrUnavailable
		}
		return s.Store.Insert(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Created %s reservation %s on spot %d for user %d", kind, res.Code, spotID, userID)
	return toReservationResponse(res), nil
}

// Update changes a reservation's interval. The conflict check excludes the
// reservation's own row; kind never changes. On any failure the stored row is
// left untouched.
func (s *ReservationService) Update(ctx context.Context, reservationID int64, params UpdateReservationParams) (*entities.ReservationResponse, error) {
	res, err := s.Store.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	start := res.StartTime
	if params.StartTime != nil {
		start = *params.StartTime
	}
	var end *time.Time
	switch {
	case params.EndTime != nil:
		end = params.EndTime
	case res.Kind == db.KindScheduled:
		end = res.EndTime
	}
	iv := entities.NewInterval(start, end)
	if !iv.Valid() {
		return nil, apperr.ErrInvalidRange
	}

	var updated *db.Reservation
	err = s.Store.WithSpotLock(ctx, res.ParkingSpotID, func(tx *sql.Tx) error {
		conflicts, err := s.Store.FindConflicting(ctx, tx, res.ParkingSpotID, iv, res.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperr.ErrUnavailable
		}
		updated, err = s.Store.UpdateInterval(ctx, tx, res.ID, iv)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toReservationResponse(updated), nil
}

// Checkout terminates the spot's current occupancy by setting its end to now.
// The reservation keeps its kind; an on-demand reservation simply becomes
// bounded. The operation is spot-scoped: who may trigger it for which
// occupant is the transport layer's concern.
func (s *ReservationService) Checkout(ctx context.Context, spotID int64) (*entities.ReservationResponse, error) {
	now := s.now()
	var updated *db.Reservation
	err := s.Store.WithSpotLock(ctx, spotID, func(tx *sql.Tx) error {
		// The occupant is resolved under the lock: a checkout racing this one
		// ends the occupancy first, and this call then sees a free spot
		// instead of extending a row that already ended.
		active, err := s.Store.GetActiveBySpot(ctx, tx, spotID, now)
		if err != nil {
			return err
		}
		if active == nil {
			return fmt.Errorf("no active reservation on spot %d: %w", spotID, apperr.ErrNotFound)
		}

		end := now
		if !end.After(active.StartTime) {
			// Checkout at the very instant the occupancy started. The stored
			// interval must stay non-empty, so bound it at one second.
			end = active.StartTime.Add(time.Second)
		}
		updated, err = s.Store.UpdateInterval(ctx, tx, active.ID, entities.NewInterval(active.StartTime, &end))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Checked out reservation %s on spot %d at %s", updated.Code, spotID, now.Format(time.RFC3339))
	return toReservationResponse(updated), nil
}

// ActiveReservationForSpot returns the spot's current occupant, if any. Used
// by the transport layer for the self-checkout ownership check.
func (s *ReservationService) ActiveReservationForSpot(ctx context.Context, spotID int64) (*entities.ReservationResponse, error) {
	active, err := s.Store.GetActiveBySpot(ctx, nil, spotID, s.now())
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return toReservationResponse(active), nil
}

func (s *ReservationService) Get(ctx context.Context, reservationID int64) (*entities.ReservationResponse, error) {
	res, err := s.Store.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	return toReservationResponse(res), nil
}

func (s *ReservationService) GetByCode(ctx context.Context, code string) (*entities.ReservationResponse, error) {
	res, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return toReservationResponse(res), nil
}

// Delete removes the reservation unconditionally. Authorization is the
// caller's concern.
func (s *ReservationService) Delete(ctx context.Context, reservationID int64) error {
	existed, err := s.Store.Delete(ctx, reservationID)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("reservation %d: %w", reservationID, apperr.ErrNotFound)
	}
	return nil
}

// ListActiveAndPending returns the user's reservations that are occupying a
// spot right now or have not started yet, ordered by start time.
func (s *ReservationService) ListActiveAndPending(ctx context.Context, userID int64) (*entities.ReservationsList, error) {
	reservations, err := s.Store.ListActiveOrPendingByUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return toReservationsList(reservations), nil
}

// ListForDate returns every reservation intersecting the given calendar day,
// including open-ended ones that started earlier and bounded ones spilling
// past midnight.
func (s *ReservationService) ListForDate(ctx context.Context, date time.Time) (*entities.ReservationsList, error) {
	dayStart, dayEnd := dayWindow(date)
	reservations, err := s.Store.ListByWindow(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return toReservationsList(reservations), nil
}

// ListForDateByFacility is the manager-scoped day view.
func (s *ReservationService) ListForDateByFacility(ctx context.Context, facilityID int64, date time.Time) (*entities.ReservationsList, error) {
	dayStart, dayEnd := dayWindow(date)
	reservations, err := s.Store.ListByFacilityAndWindow(ctx, facilityID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return toReservationsList(reservations), nil
}

// ListForDateByUser is the owner-scoped day view.
func (s *ReservationService) ListForDateByUser(ctx context.Context, userID int64, date time.Time) (*entities.ReservationsList, error) {
	dayStart, dayEnd := dayWindow(date)
	reservations, err := s.Store.ListByUserAndWindow(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return toReservationsList(reservations), nil
}

// AvailableSpots computes the facility's availability report for the date's
// work window. The read is not serialized against writers; a view stale by a
// few milliseconds is acceptable here.
func (s *ReservationService) AvailableSpots(ctx context.Context, facilityID int64, date time.Time) (entities.AvailabilityReport, error) {
	spots, err := s.Spots.ListSpotsByFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	winStart, winEnd := WorkWindow(date)
	report := make(entities.AvailabilityReport)

	for _, spot := range spots {
		reservations, err := s.Store.ListBySpotAndWindow(ctx, spot.ID, winStart, winEnd)
		if err != nil {
			return nil, err
		}
		slots, allDay := ComputeFreeSlots(winStart, winEnd, reservations)
		if len(slots) == 0 {
			// Fully booked spots stay out of the report.
			continue
		}
		report[spot.SpotNumber] = entities.SpotAvailability{
			ParkingSpotID: spot.ID,
			TimeSlots:     slots,
			AllDay:        allDay,
		}
	}
	return report, nil
}

func dayWindow(date time.Time) (time.Time, time.Time) {
	year, month, day := date.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}

func toReservationResponse(res *db.Reservation) *entities.ReservationResponse {
	return &entities.ReservationResponse{
		ID:            res.ID,
		Code:          res.Code,
		UserID:        res.UserID,
		ParkingSpotID: res.ParkingSpotID,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Kind:          res.Kind,
		CreatedAt:     res.CreatedAt,
		UpdatedAt:     res.UpdatedAt,
	}
}

func toReservationsList(reservations []db.Reservation) *entities.ReservationsList {
	list := &entities.ReservationsList{
		Total:        len(reservations),
		Reservations: make([]entities.ReservationResponse, 0, len(reservations)),
	}
	for i := range reservations {
		list.Reservations = append(list.Reservations, *toReservationResponse(&reservations[i]))
	}
	return list
}
