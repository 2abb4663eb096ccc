package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
	"parkspot/internal/entities"
)

// ReservationStore is the persistence contract the scheduler depends on.
// FindConflicting, Insert and UpdateInterval must run on the transaction
// handed out by WithSpotLock so the check-then-write sequence for a spot is
// serialized against concurrent writers on the same spot.
type ReservationStore interface {
	WithSpotLock(ctx context.Context, spotID int64, fn func(tx *sql.Tx) error) error
	FindConflicting(ctx context.Context, tx *sql.Tx, spotID int64, iv entities.Interval, excludeID int64) ([]db.Reservation, error)
	Insert(ctx context.Context, tx *sql.Tx, res *db.Reservation) error
	UpdateInterval(ctx context.Context, tx *sql.Tx, id int64, iv entities.Interval) (*db.Reservation, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*db.Reservation, error)
	GetByCode(ctx context.Context, code string) (*db.Reservation, error)
	ListBySpotAndWindow(ctx context.Context, spotID int64, winStart, winEnd time.Time) ([]db.Reservation, error)
	ListActiveOrPendingByUser(ctx context.Context, userID int64, now time.Time) ([]db.Reservation, error)
	GetActiveBySpot(ctx context.Context, tx *sql.Tx, spotID int64, now time.Time) (*db.Reservation, error)
	ListByWindow(ctx context.Context, winStart, winEnd time.Time) ([]db.Reservation, error)
	ListByFacilityAndWindow(ctx context.Context, facilityID int64, winStart, winEnd time.Time) ([]db.Reservation, error)
	ListByUserAndWindow(ctx context.Context, userID int64, winStart, winEnd time.Time) ([]db.Reservation, error)
}

type ReservationRepository struct {
	DB *sql.DB
}

func NewReservationRepository(database *sql.DB) *ReservationRepository {
	return &ReservationRepository{DB: database}
}

const reservationColumns = `id, code, user_id, parking_spot_id, start_time, end_time, kind, created_at, updated_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *ReservationRepository) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// WithSpotLock runs fn inside a transaction holding a per-spot advisory lock.
// All writers on the same spot queue behind the lock; writers on different
// spots proceed in parallel. The lock is released on commit or rollback.
func (r *ReservationRepository) WithSpotLock(ctx context.Context, spotID int64, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin tx", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, spotID); err != nil {
		tx.Rollback()
		return apperr.Store("acquire spot lock", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store("commit", err)
	}
	return nil
}

// FindConflicting returns every reservation on the spot whose interval
// overlaps the candidate, half-open semantics. An open candidate is treated
// as [start, infinity); an open existing row likewise. Equal start times
// always conflict. excludeID = 0 excludes nothing (used by updates to skip
// the reservation's own row).
func (r *ReservationRepository) FindConflicting(ctx context.Context, tx *sql.Tx, spotID int64, iv entities.Interval, excludeID int64) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE parking_spot_id = $1
		  AND ($4::bigint = 0 OR id <> $4)
		  AND (
			start_time = $2
			OR ($3::timestamptz IS NULL AND (end_time IS NULL OR end_time > $2))
			OR ($3::timestamptz IS NOT NULL AND start_time < $3 AND (end_time IS NULL OR end_time > $2))
		  )
		ORDER BY start_time ASC`

	rows, err := r.q(tx).QueryContext(ctx, query, spotID, iv.Start, iv.End, excludeID)
	if err != nil {
		return nil, apperr.Store("find conflicting reservations", err)
	}
	defer rows.Close()

	return scanReservations(rows)
}

func (r *ReservationRepository) Insert(ctx context.Context, tx *sql.Tx, res *db.Reservation) error {
	query := `
		INSERT INTO reservations (code, user_id, parking_spot_id, start_time, end_time, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.q(tx).QueryRowContext(ctx, query,
		res.Code,
		res.UserID,
		res.ParkingSpotID,
		res.StartTime,
		res.EndTime,
		res.Kind,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if isConflictConstraint(err) {
			// The exclusion constraint caught a race the optimistic check
			// missed. Surface it as a plain availability rejection.
			return apperr.ErrUnavailable
		}
		return apperr.Store("insert reservation", err)
	}
	return nil
}

func (r *ReservationRepository) UpdateInterval(ctx context.Context, tx *sql.Tx, id int64, iv entities.Interval) (*db.Reservation, error) {
	query := `
		UPDATE reservations
		SET start_time = $2, end_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + reservationColumns
	res, err := scanReservation(r.q(tx).QueryRowContext(ctx, query, id, iv.Start, iv.End))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %d: %w", id, apperr.ErrNotFound)
		}
		if isConflictConstraint(err) {
			return nil, apperr.ErrUnavailable
		}
		return nil, apperr.Store("update reservation interval", err)
	}
	return res, nil
}

func (r *ReservationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, apperr.Store("delete reservation", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Store("delete reservation", err)
	}
	return affected > 0, nil
}

func (r *ReservationRepository) Get(ctx context.Context, id int64) (*db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %d: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Store("get reservation", err)
	}
	return res, nil
}

func (r *ReservationRepository) GetByCode(ctx context.Context, code string) (*db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = $1`
	res, err := scanReservation(r.DB.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %s: %w", code, apperr.ErrNotFound)
		}
		return nil, apperr.Store("get reservation by code", err)
	}
	return res, nil
}

// ListBySpotAndWindow returns reservations intersecting [winStart, winEnd) on
// one spot, ordered by start_time, as the availability sweep expects.
func (r *ReservationRepository) ListBySpotAndWindow(ctx context.Context, spotID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE parking_spot_id = $1
		  AND start_time < $3
		  AND (end_time IS NULL OR end_time > $2)
		ORDER BY start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, spotID, winStart, winEnd)
	if err != nil {
		return nil, apperr.Store("list reservations by spot and window", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListActiveOrPendingByUser returns reservations currently occupying a spot or
// not yet started, ordered by start_time. "Pending" is start_time > now, a
// derived classification, not a stored state.
func (r *ReservationRepository) ListActiveOrPendingByUser(ctx context.Context, userID int64, now time.Time) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		  AND (
			(start_time <= $2 AND (end_time IS NULL OR end_time >= $2))
			OR start_time > $2
		  )
		ORDER BY start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, apperr.Store("list active or pending reservations", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// GetActiveBySpot returns the single reservation occupying the spot right now,
// or nil when the spot is free. An unterminated on-demand reservation counts
// as occupying. Pass the WithSpotLock transaction when the result feeds a
// write, so the read cannot go stale under a concurrent checkout.
func (r *ReservationRepository) GetActiveBySpot(ctx context.Context, tx *sql.Tx, spotID int64, now time.Time) (*db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE parking_spot_id = $1
		  AND start_time <= $2
		  AND (end_time >= $2 OR (end_time IS NULL AND kind = $3))
		LIMIT 1`
	res, err := scanReservation(r.q(tx).QueryRowContext(ctx, query, spotID, now, db.KindOnDemand))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("get active reservation by spot", err)
	}
	return res, nil
}

func (r *ReservationRepository) ListByWindow(ctx context.Context, winStart, winEnd time.Time) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE start_time < $2
		  AND (end_time IS NULL OR end_time > $1)
		ORDER BY start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, winStart, winEnd)
	if err != nil {
		return nil, apperr.Store("list reservations by window", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) ListByFacilityAndWindow(ctx context.Context, facilityID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	query := `
		SELECT r.id, r.code, r.user_id, r.parking_spot_id, r.start_time, r.end_time, r.kind, r.created_at, r.updated_at
		FROM reservations r
		JOIN parking_spots ps ON ps.id = r.parking_spot_id
		WHERE ps.facility_id = $1
		  AND r.start_time < $3
		  AND (r.end_time IS NULL OR r.end_time > $2)
		ORDER BY r.start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, facilityID, winStart, winEnd)
	if err != nil {
		return nil, apperr.Store("list reservations by facility and window", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) ListByUserAndWindow(ctx context.Context, userID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		  AND start_time < $3
		  AND (end_time IS NULL OR end_time > $2)
		ORDER BY start_time ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID, winStart, winEnd)
	if err != nil {
		return nil, apperr.Store("list reservations by user and window", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*db.Reservation, error) {
	var res db.Reservation
	err := row.Scan(
		&res.ID, &res.Code, &res.UserID, &res.ParkingSpotID,
		&res.StartTime, &res.EndTime, &res.Kind, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]db.Reservation, error) {
	var reservations []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, apperr.Store("scan reservation row", err)
		}
		reservations = append(reservations, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate reservation rows", err)
	}
	return reservations, nil
}

// isConflictConstraint reports whether err is the reservations_no_overlap
// exclusion constraint (or a unique violation) firing. That constraint is the
// backstop for races the advisory lock did not cover, e.g. writes coming from
// another deployment that skipped the lock.
func isConflictConstraint(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23P01" || pqErr.Code == "23505"
}
