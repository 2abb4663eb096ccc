package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
	"parkspot/internal/entities"
)

var reservationCols = []string{
	"id", "code", "user_id", "parking_spot_id",
	"start_time", "end_time", "kind", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*ReservationRepository, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewReservationRepository(database), mock
}

func tRow(id int64, start time.Time, end *time.Time, kind string) *sqlmock.Rows {
	var endVal interface{}
	if end != nil {
		endVal = *end
	}
	return sqlmock.NewRows(reservationCols).
		AddRow(id, "code-1", int64(1), int64(2), start, endVal, kind, start, start)
}

func TestFindConflictingPassesBoundsAndExclusion(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	iv := entities.NewInterval(start, &end)

	mock.ExpectQuery(`SELECT (.+) FROM\s+reservations\s+WHERE parking_spot_id = \$1`).
		WithArgs(int64(2), start, end, int64(7)).
		WillReturnRows(tRow(9, start, &end, db.KindScheduled))

	conflicts, err := repo.FindConflicting(ctx, nil, 2, iv, 7)

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(9), conflicts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMapsExclusionViolationToUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	res := &db.Reservation{
		Code: "c", UserID: 1, ParkingSpotID: 2,
		StartTime: start, Kind: db.KindOnDemand,
	}

	mock.ExpectQuery(`INSERT INTO reservations`).
		WithArgs("c", int64(1), int64(2), start, nil, db.KindOnDemand).
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "reservations_no_overlap"})

	err := repo.Insert(ctx, nil, res)

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWrapsOtherErrorsAsStoreError(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	res := &db.Reservation{Code: "c", UserID: 1, ParkingSpotID: 2, StartTime: start, Kind: db.KindOnDemand}

	mock.ExpectQuery(`INSERT INTO reservations`).
		WillReturnError(errors.New("connection reset"))

	err := repo.Insert(ctx, nil, res)

	require.Error(t, err)
	var storeErr *apperr.StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.NotErrorIs(t, err, apperr.ErrUnavailable)
}

func TestWithSpotLockCommitsAfterFn(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	called := false
	err := repo.WithSpotLock(ctx, 2, func(tx *sql.Tx) error {
		called = true
		require.NotNil(t, tx)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSpotLockRollsBackOnFnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithSpotLock(ctx, 2, func(tx *sql.Tx) error {
		return apperr.ErrUnavailable
	})

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsWhetherRowExisted(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM reservations WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	existed, err := repo.Delete(ctx, 5)
	require.NoError(t, err)
	assert.True(t, existed)

	mock.ExpectExec(`DELETE FROM reservations WHERE id = \$1`).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	existed, err = repo.Delete(ctx, 6)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestGetActiveBySpotReturnsNilWhenFree(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM\s+reservations\s+WHERE parking_spot_id = \$1`).
		WithArgs(int64(2), now, db.KindOnDemand).
		WillReturnRows(sqlmock.NewRows(reservationCols))

	res, err := repo.GetActiveBySpot(ctx, nil, 2, now)

	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetMapsMissingRowToNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT (.+) FROM reservations WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(reservationCols))

	_, err := repo.Get(ctx, 404)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateIntervalMapsConstraintToUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(`UPDATE reservations`).
		WithArgs(int64(7), start, end).
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "reservations_no_overlap"})

	_, err := repo.UpdateInterval(ctx, nil, 7, entities.NewInterval(start, &end))

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}
