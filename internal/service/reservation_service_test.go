package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parkspot/internal/apperr"
	"parkspot/internal/db"
	"parkspot/internal/entities"
)

type mockReservationStore struct {
	mock.Mock
}

// WithSpotLock runs fn directly; lock serialization is the real repository's
// concern and is covered by the repository tests.
func (m *mockReservationStore) WithSpotLock(ctx context.Context, spotID int64, fn func(tx *sql.Tx) error) error {
	args := m.Called(ctx, spotID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(nil)
}

func (m *mockReservationStore) FindConflicting(ctx context.Context, tx *sql.Tx, spotID int64, iv entities.Interval, excludeID int64) ([]db.Reservation, error) {
	args := m.Called(ctx, tx, spotID, iv, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

func (m *mockReservationStore) Insert(ctx context.Context, tx *sql.Tx, res *db.Reservation) error {
	args := m.Called(ctx, tx, res)
	return args.Error(0)
}

func (m *mockReservationStore) UpdateInterval(ctx context.Context, tx *sql.Tx, id int64, iv entities.Interval) (*db.Reservation, error) {
	args := m.Called(ctx, tx, id, iv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Reservation), args.Error(1)
}

func (m *mockReservationStore) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservationStore) Get(ctx context.Context, id int64) (*db.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Reservation), args.Error(1)
}

func (m *mockReservationStore) GetByCode(ctx context.Context, code string) (*db.Reservation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Reservation), args.Error(1)
}

func (m *mockReservationStore) ListBySpotAndWindow(ctx context.Context, spotID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	args := m.Called(ctx, spotID, winStart, winEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

func (m *mockReservationStore) ListActiveOrPendingByUser(ctx context.Context, userID int64, now time.Time) ([]db.Reservation, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

func (m *mockReservationStore) GetActiveBySpot(ctx context.Context, tx *sql.Tx, spotID int64, now time.Time) (*db.Reservation, error) {
	args := m.Called(ctx, tx, spotID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Reservation), args.Error(1)
}

func (m *mockReservationStore) ListByWindow(ctx context.Context, winStart, winEnd time.Time) ([]db.Reservation, error) {
	args := m.Called(ctx, winStart, winEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

func (m *mockReservationStore) ListByFacilityAndWindow(ctx context.Context, facilityID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	args := m.Called(ctx, facilityID, winStart, winEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

func (m *mockReservationStore) ListByUserAndWindow(ctx context.Context, userID int64, winStart, winEnd time.Time) ([]db.Reservation, error) {
	args := m.Called(ctx, userID, winStart, winEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Reservation), args.Error(1)
}

type mockFacilityStore struct {
	mock.Mock
}

func (m *mockFacilityStore) CreateFacility(ctx context.Context, f *db.Facility) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFacilityStore) UpdateFacility(ctx context.Context, f *db.Facility) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFacilityStore) DeleteFacility(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockFacilityStore) GetFacility(ctx context.Context, id int64) (*db.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Facility), args.Error(1)
}

func (m *mockFacilityStore) ListFacilities(ctx context.Context) ([]db.Facility, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Facility), args.Error(1)
}

func (m *mockFacilityStore) CreateSpot(ctx context.Context, spot *db.ParkingSpot) error {
	return m.Called(ctx, spot).Error(0)
}

func (m *mockFacilityStore) GetSpot(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.ParkingSpot), args.Error(1)
}

func (m *mockFacilityStore) ListSpotsByFacility(ctx context.Context, facilityID int64) ([]db.ParkingSpot, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.ParkingSpot), args.Error(1)
}

func (m *mockFacilityStore) UpdateSpotNumber(ctx context.Context, id int64, spotNumber int) (*db.ParkingSpot, error) {
	args := m.Called(ctx, id, spotNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.ParkingSpot), args.Error(1)
}

func (m *mockFacilityStore) DeleteSpot(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockFacilityStore) CountSpots(ctx context.Context, facilityID int64) (int, error) {
	args := m.Called(ctx, facilityID)
	return args.Int(0), args.Error(1)
}

func newTestService() (*ReservationService, *mockReservationStore, *mockFacilityStore) {
	store := &mockReservationStore{}
	spots := &mockFacilityStore{}
	return NewReservationService(store, spots), store, spots
}

func TestCreateScheduledRejectsInvalidRange(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateScheduled(ctx, 1, 2, at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)

	_, err = svc.CreateScheduled(ctx, 1, 2, at(10, 0), at(9, 59))
	assert.ErrorIs(t, err, apperr.ErrInvalidRange)

	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "WithSpotLock", mock.Anything, mock.Anything)
}

func TestCreateOnDemandRejectedWhenSpotTaken(t *testing.T) {
	svc, store, spots := newTestService()
	ctx := context.Background()

	spots.On("GetSpot", mock.Anything, int64(2)).Return(&db.ParkingSpot{ID: 2, FacilityID: 1, SpotNumber: 4}, nil)
	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(2), mock.Anything, int64(0)).
		Return([]db.Reservation{{ID: 9, ParkingSpotID: 2, StartTime: at(10, 0)}}, nil)

	_, err := svc.CreateOnDemand(ctx, 1, 2, at(10, 0))

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOnDemandPersistsOpenInterval(t *testing.T) {
	svc, store, spots := newTestService()
	ctx := context.Background()

	spots.On("GetSpot", mock.Anything, int64(2)).Return(&db.ParkingSpot{ID: 2, FacilityID: 1, SpotNumber: 4}, nil)
	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(2), mock.Anything, int64(0)).
		Return([]db.Reservation{}, nil)
	store.On("Insert", mock.Anything, mock.Anything, mock.AnythingOfType("*db.Reservation")).
		Run(func(args mock.Arguments) {
			res := args.Get(2).(*db.Reservation)
			res.ID = 42
			res.CreatedAt = at(10, 0)
			res.UpdatedAt = at(10, 0)
		}).
		Return(nil)

	res, err := svc.CreateOnDemand(ctx, 1, 2, at(10, 0))

	require.NoError(t, err)
	assert.Equal(t, int64(42), res.ID)
	assert.Equal(t, db.KindOnDemand, res.Kind)
	assert.Equal(t, at(10, 0), res.StartTime)
	assert.Nil(t, res.EndTime)
	assert.NotEmpty(t, res.Code)
}

func TestCreateScheduledPersistsBoundedInterval(t *testing.T) {
	svc, store, spots := newTestService()
	ctx := context.Background()

	spots.On("GetSpot", mock.Anything, int64(5)).Return(&db.ParkingSpot{ID: 5, FacilityID: 1, SpotNumber: 1}, nil)
	store.On("WithSpotLock", mock.Anything, int64(5)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(5), mock.Anything, int64(0)).
		Return([]db.Reservation{}, nil)
	store.On("Insert", mock.Anything, mock.Anything, mock.AnythingOfType("*db.Reservation")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*db.Reservation).ID = 7
		}).
		Return(nil)

	res, err := svc.CreateScheduled(ctx, 3, 5, at(13, 0), at(15, 0))

	require.NoError(t, err)
	assert.Equal(t, db.KindScheduled, res.Kind)
	require.NotNil(t, res.EndTime)
	assert.Equal(t, at(15, 0), *res.EndTime)
}

func TestCreateFailsWhenSpotMissing(t *testing.T) {
	svc, store, spots := newTestService()
	ctx := context.Background()

	spots.On("GetSpot", mock.Anything, int64(99)).Return(nil, apperr.ErrNotFound)

	_, err := svc.CreateOnDemand(ctx, 1, 99, at(10, 0))

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	store.AssertNotCalled(t, "WithSpotLock", mock.Anything, mock.Anything)
}

func TestUpdateExcludesOwnReservationFromConflictCheck(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	current := &db.Reservation{
		ID: 7, UserID: 1, ParkingSpotID: 3, Kind: db.KindScheduled,
		StartTime: at(10, 0), EndTime: atp(12, 0),
	}
	store.On("Get", mock.Anything, int64(7)).Return(current, nil)
	store.On("WithSpotLock", mock.Anything, int64(3)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(3), mock.Anything, int64(7)).
		Return([]db.Reservation{}, nil)
	store.On("UpdateInterval", mock.Anything, mock.Anything, int64(7), mock.MatchedBy(func(iv entities.Interval) bool {
		return iv.Start.Equal(at(11, 0)) && iv.End != nil && iv.End.Equal(at(13, 0))
	})).Return(&db.Reservation{
		ID: 7, UserID: 1, ParkingSpotID: 3, Kind: db.KindScheduled,
		StartTime: at(11, 0), EndTime: atp(13, 0),
	}, nil)

	res, err := svc.Update(ctx, 7, UpdateReservationParams{StartTime: atp(11, 0), EndTime: atp(13, 0)})

	require.NoError(t, err)
	assert.Equal(t, at(11, 0), res.StartTime)
	store.AssertExpectations(t)
}

func TestUpdateRejectedOnConflict(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	current := &db.Reservation{
		ID: 7, UserID: 1, ParkingSpotID: 3, Kind: db.KindScheduled,
		StartTime: at(10, 0), EndTime: atp(12, 0),
	}
	store.On("Get", mock.Anything, int64(7)).Return(current, nil)
	store.On("WithSpotLock", mock.Anything, int64(3)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(3), mock.Anything, int64(7)).
		Return([]db.Reservation{{ID: 8, ParkingSpotID: 3, StartTime: at(12, 30), EndTime: atp(14, 0)}}, nil)

	_, err := svc.Update(ctx, 7, UpdateReservationParams{EndTime: atp(13, 0)})

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	store.AssertNotCalled(t, "UpdateInterval", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOnDemandKeepsEndOpenWhenNotSupplied(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	current := &db.Reservation{
		ID: 4, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand,
		StartTime: at(9, 0),
	}
	store.On("Get", mock.Anything, int64(4)).Return(current, nil)
	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("FindConflicting", mock.Anything, mock.Anything, int64(2), mock.MatchedBy(func(iv entities.Interval) bool {
		return iv.IsOpen()
	}), int64(4)).Return([]db.Reservation{}, nil)
	store.On("UpdateInterval", mock.Anything, mock.Anything, int64(4), mock.MatchedBy(func(iv entities.Interval) bool {
		return iv.Start.Equal(at(9, 30)) && iv.IsOpen()
	})).Return(&db.Reservation{
		ID: 4, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand, StartTime: at(9, 30),
	}, nil)

	res, err := svc.Update(ctx, 4, UpdateReservationParams{StartTime: atp(9, 30)})

	require.NoError(t, err)
	assert.Nil(t, res.EndTime)
	assert.Equal(t, db.KindOnDemand, res.Kind)
}

func TestUpdateRejectsInvalidRange(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	current := &db.Reservation{
		ID: 7, UserID: 1, ParkingSpotID: 3, Kind: db.KindScheduled,
		StartTime: at(10, 0), EndTime: atp(12, 0),
	}
	store.On("Get", mock.Anything, int64(7)).Return(current, nil)

	_, err := svc.Update(ctx, 7, UpdateReservationParams{EndTime: atp(10, 0)})

	assert.ErrorIs(t, err, apperr.ErrInvalidRange)
	store.AssertNotCalled(t, "WithSpotLock", mock.Anything, mock.Anything)
}

func TestCheckoutFailsWithoutActiveReservation(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("GetActiveBySpot", mock.Anything, mock.Anything, int64(2), mock.Anything).Return(nil, nil)

	_, err := svc.Checkout(ctx, 2)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	store.AssertNotCalled(t, "UpdateInterval", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutSetsEndToNowAndKeepsKind(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	now := at(14, 37)
	svc.now = func() time.Time { return now }

	active := &db.Reservation{
		ID: 11, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand, StartTime: at(9, 0),
	}
	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("GetActiveBySpot", mock.Anything, mock.Anything, int64(2), now).Return(active, nil)
	store.On("UpdateInterval", mock.Anything, mock.Anything, int64(11), mock.MatchedBy(func(iv entities.Interval) bool {
		return iv.Start.Equal(at(9, 0)) && iv.End != nil && iv.End.Equal(now)
	})).Return(&db.Reservation{
		ID: 11, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand,
		StartTime: at(9, 0), EndTime: &now,
	}, nil)

	res, err := svc.Checkout(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, db.KindOnDemand, res.Kind, "checkout never reclassifies the reservation")
	require.NotNil(t, res.EndTime)
	assert.Equal(t, now, *res.EndTime)
}

func TestCheckoutAtOccupancyStartBoundsToOneSecond(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	start := at(9, 0)
	svc.now = func() time.Time { return start }

	active := &db.Reservation{
		ID: 11, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand, StartTime: start,
	}
	store.On("WithSpotLock", mock.Anything, int64(2)).Return(nil)
	store.On("GetActiveBySpot", mock.Anything, mock.Anything, int64(2), start).Return(active, nil)

	wantEnd := start.Add(time.Second)
	store.On("UpdateInterval", mock.Anything, mock.Anything, int64(11), mock.MatchedBy(func(iv entities.Interval) bool {
		return iv.Start.Equal(start) && iv.End != nil && iv.End.Equal(wantEnd)
	})).Return(&db.Reservation{
		ID: 11, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand,
		StartTime: start, EndTime: &wantEnd,
	}, nil)

	res, err := svc.Checkout(ctx, 2)

	require.NoError(t, err)
	require.NotNil(t, res.EndTime)
	assert.Equal(t, wantEnd, *res.EndTime)
	store.AssertExpectations(t)
}

func TestDeleteReportsMissingReservation(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	store.On("Delete", mock.Anything, int64(5)).Return(false, nil)

	err := svc.Delete(ctx, 5)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAvailableSpotsOmitsFullyBookedSpots(t *testing.T) {
	svc, store, spots := newTestService()
	ctx := context.Background()

	date := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	winStart, winEnd := WorkWindow(date)

	spots.On("ListSpotsByFacility", mock.Anything, int64(1)).Return([]db.ParkingSpot{
		{ID: 10, FacilityID: 1, SpotNumber: 1},
		{ID: 11, FacilityID: 1, SpotNumber: 2},
	}, nil)
	store.On("ListBySpotAndWindow", mock.Anything, int64(10), winStart, winEnd).
		Return([]db.Reservation{{ParkingSpotID: 10, StartTime: at(7, 0), EndTime: atp(18, 0)}}, nil)
	store.On("ListBySpotAndWindow", mock.Anything, int64(11), winStart, winEnd).
		Return([]db.Reservation{}, nil)

	report, err := svc.AvailableSpots(ctx, 1, date)

	require.NoError(t, err)
	assert.NotContains(t, report, 1, "fully booked spot must be omitted")
	require.Contains(t, report, 2)
	assert.True(t, report[2].AllDay)
	assert.Equal(t, []entities.TimeSlot{{Start: winStart, End: winEnd}}, report[2].TimeSlots)
}

func TestListActiveAndPendingDelegatesToStore(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	now := at(12, 0)
	svc.now = func() time.Time { return now }

	store.On("ListActiveOrPendingByUser", mock.Anything, int64(1), now).Return([]db.Reservation{
		{ID: 1, UserID: 1, ParkingSpotID: 2, Kind: db.KindOnDemand, StartTime: at(9, 0)},
		{ID: 2, UserID: 1, ParkingSpotID: 3, Kind: db.KindScheduled, StartTime: at(15, 0), EndTime: atp(16, 0)},
	}, nil)

	list, err := svc.ListActiveAndPending(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, int64(1), list.Reservations[0].ID)
	assert.Equal(t, int64(2), list.Reservations[1].ID)
}
