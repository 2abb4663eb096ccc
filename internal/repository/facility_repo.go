package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
)

// FacilityStore covers the static inventory: facilities and their numbered
// parking spots. Spot numbers are unique within a facility.
type FacilityStore interface {
	CreateFacility(ctx context.Context, f *db.Facility) error
	UpdateFacility(ctx context.Context, f *db.Facility) error
	DeleteFacility(ctx context.Context, id int64) (bool, error)
	GetFacility(ctx context.Context, id int64) (*db.Facility, error)
	ListFacilities(ctx context.Context) ([]db.Facility, error)
	CreateSpot(ctx context.Context, spot *db.ParkingSpot) error
	GetSpot(ctx context.Context, id int64) (*db.ParkingSpot, error)
	ListSpotsByFacility(ctx context.Context, facilityID int64) ([]db.ParkingSpot, error)
	UpdateSpotNumber(ctx context.Context, id int64, spotNumber int) (*db.ParkingSpot, error)
	DeleteSpot(ctx context.Context, id int64) (bool, error)
	CountSpots(ctx context.Context, facilityID int64) (int, error)
}

type FacilityRepository struct {
	DB *sql.DB
}

func NewFacilityRepository(database *sql.DB) *FacilityRepository {
	return &FacilityRepository{DB: database}
}

// CreateFacility inserts the facility and provisions spots numbered
// 1..ParkingSpotCount in one transaction.
func (r *FacilityRepository) CreateFacility(ctx context.Context, f *db.Facility) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin tx", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO facilities (name, parking_spot_count, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		f.Name, f.ParkingSpotCount, f.ManagerID,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return apperr.Store("insert facility", err)
	}

	if err := addSpots(ctx, tx, f.ID, 0, f.ParkingSpotCount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store("commit", err)
	}
	return nil
}

// UpdateFacility persists name/count/manager changes and grows or shrinks the
// provisioned spots to match the new count. Shrinking removes the highest
// numbered spots first, as the inventory was provisioned in order.
func (r *FacilityRepository) UpdateFacility(ctx context.Context, f *db.Facility) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin tx", err)
	}
	defer tx.Rollback()

	var oldCount int
	err = tx.QueryRowContext(ctx,
		`SELECT parking_spot_count FROM facilities WHERE id = $1 FOR UPDATE`, f.ID,
	).Scan(&oldCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("facility %d: %w", f.ID, apperr.ErrNotFound)
		}
		return apperr.Store("lock facility row", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE facilities
		SET name = $2, parking_spot_count = $3, manager_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.Name, f.ParkingSpotCount, f.ManagerID,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return apperr.Store("update facility", err)
	}

	switch {
	case f.ParkingSpotCount > oldCount:
		if err := addSpots(ctx, tx, f.ID, oldCount, f.ParkingSpotCount); err != nil {
			return err
		}
	case f.ParkingSpotCount < oldCount:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM parking_spots WHERE facility_id = $1 AND spot_number > $2`,
			f.ID, f.ParkingSpotCount)
		if err != nil {
			return apperr.Store("remove excess spots", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("commit", err)
	}
	return nil
}

func addSpots(ctx context.Context, tx *sql.Tx, facilityID int64, from, to int) error {
	for n := from + 1; n <= to; n++ {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO parking_spots (facility_id, spot_number, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())`,
			facilityID, n)
		if err != nil {
			return apperr.Store("provision parking spots", err)
		}
	}
	return nil
}

func (r *FacilityRepository) DeleteFacility(ctx context.Context, id int64) (bool, error) {
	// Spots and their reservations go with it via ON DELETE CASCADE.
	result, err := r.DB.ExecContext(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	if err != nil {
		return false, apperr.Store("delete facility", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Store("delete facility", err)
	}
	return affected > 0, nil
}

func (r *FacilityRepository) GetFacility(ctx context.Context, id int64) (*db.Facility, error) {
	var f db.Facility
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, parking_spot_count, manager_id, created_at, updated_at
		FROM facilities WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.ParkingSpotCount, &f.ManagerID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("facility %d: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Store("get facility", err)
	}
	return &f, nil
}

func (r *FacilityRepository) ListFacilities(ctx context.Context) ([]db.Facility, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, parking_spot_count, manager_id, created_at, updated_at
		FROM facilities ORDER BY name ASC`)
	if err != nil {
		return nil, apperr.Store("list facilities", err)
	}
	defer rows.Close()

	var facilities []db.Facility
	for rows.Next() {
		var f db.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.ParkingSpotCount, &f.ManagerID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, apperr.Store("scan facility row", err)
		}
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate facility rows", err)
	}
	return facilities, nil
}

func (r *FacilityRepository) CreateSpot(ctx context.Context, spot *db.ParkingSpot) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO parking_spots (facility_id, spot_number, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		spot.FacilityID, spot.SpotNumber,
	).Scan(&spot.ID, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("spot number %d already exists for facility %d: %w",
				spot.SpotNumber, spot.FacilityID, apperr.ErrUnavailable)
		}
		return apperr.Store("insert parking spot", err)
	}
	return nil
}

func (r *FacilityRepository) GetSpot(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	var spot db.ParkingSpot
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, facility_id, spot_number, created_at, updated_at
		FROM parking_spots WHERE id = $1`, id,
	).Scan(&spot.ID, &spot.FacilityID, &spot.SpotNumber, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parking spot %d: %w", id, apperr.ErrNotFound)
		}
		return nil, apperr.Store("get parking spot", err)
	}
	return &spot, nil
}

func (r *FacilityRepository) ListSpotsByFacility(ctx context.Context, facilityID int64) ([]db.ParkingSpot, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, facility_id, spot_number, created_at, updated_at
		FROM parking_spots WHERE facility_id = $1
		ORDER BY spot_number ASC`, facilityID)
	if err != nil {
		return nil, apperr.Store("list parking spots", err)
	}
	defer rows.Close()

	var spots []db.ParkingSpot
	for rows.Next() {
		var spot db.ParkingSpot
		if err := rows.Scan(&spot.ID, &spot.FacilityID, &spot.SpotNumber, &spot.CreatedAt, &spot.UpdatedAt); err != nil {
			return nil, apperr.Store("scan parking spot row", err)
		}
		spots = append(spots, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate parking spot rows", err)
	}
	return spots, nil
}

func (r *FacilityRepository) UpdateSpotNumber(ctx context.Context, id int64, spotNumber int) (*db.ParkingSpot, error) {
	var spot db.ParkingSpot
	err := r.DB.QueryRowContext(ctx, `
		UPDATE parking_spots SET spot_number = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, facility_id, spot_number, created_at, updated_at`,
		id, spotNumber,
	).Scan(&spot.ID, &spot.FacilityID, &spot.SpotNumber, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parking spot %d: %w", id, apperr.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("spot number %d already taken: %w", spotNumber, apperr.ErrUnavailable)
		}
		return nil, apperr.Store("update spot number", err)
	}
	return &spot, nil
}

func (r *FacilityRepository) DeleteSpot(ctx context.Context, id int64) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = $1`, id)
	if err != nil {
		return false, apperr.Store("delete parking spot", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Store("delete parking spot", err)
	}
	return affected > 0, nil
}

func (r *FacilityRepository) CountSpots(ctx context.Context, facilityID int64) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_spots WHERE facility_id = $1`, facilityID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Store("count parking spots", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
