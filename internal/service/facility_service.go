package service

import (
	"context"
	"errors"
	"fmt"

	"parkspot/internal/db"
	"parkspot/internal/repository"
)

// FacilityService manages the static inventory: facilities and their numbered
// parking spots.
type FacilityService struct {
	Repo repository.FacilityStore
}

func NewFacilityService(repo repository.FacilityStore) *FacilityService {
	return &FacilityService{Repo: repo}
}

// CreateFacility creates the facility and provisions spots 1..count.
func (s *FacilityService) CreateFacility(ctx context.Context, name string, spotCount int, managerID *int64) (*db.Facility, error) {
	if name == "" {
		return nil, errors.New("facility name cannot be empty")
	}
	if spotCount < 0 {
		return nil, errors.New("parking spot count cannot be negative")
	}

	facility := &db.Facility{
		Name:             name,
		ParkingSpotCount: spotCount,
		ManagerID:        managerID,
	}
	if err := s.Repo.CreateFacility(ctx, facility); err != nil {
		return nil, err
	}
	return facility, nil
}

// UpdateFacility applies the new name/count/manager; the spot inventory grows
// or shrinks to match the count.
func (s *FacilityService) UpdateFacility(ctx context.Context, id int64, name *string, spotCount *int, managerID *int64) (*db.Facility, error) {
	facility, err := s.Repo.GetFacility(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		facility.Name = *name
	}
	if spotCount != nil {
		if *spotCount < 0 {
			return nil, errors.New("parking spot count cannot be negative")
		}
		facility.ParkingSpotCount = *spotCount
	}
	if managerID != nil {
		facility.ManagerID = managerID
	}

	if err := s.Repo.UpdateFacility(ctx, facility); err != nil {
		return nil, err
	}
	return facility, nil
}

func (s *FacilityService) DeleteFacility(ctx context.Context, id int64) (bool, error) {
	return s.Repo.DeleteFacility(ctx, id)
}

func (s *FacilityService) GetFacility(ctx context.Context, id int64) (*db.Facility, error) {
	return s.Repo.GetFacility(ctx, id)
}

func (s *FacilityService) ListFacilities(ctx context.Context) ([]db.Facility, error) {
	return s.Repo.ListFacilities(ctx)
}

// CreateSpot adds one numbered spot to a facility, refusing to exceed the
// facility's configured capacity.
func (s *FacilityService) CreateSpot(ctx context.Context, facilityID int64, spotNumber int) (*db.ParkingSpot, error) {
	facility, err := s.Repo.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	current, err := s.Repo.CountSpots(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if current >= facility.ParkingSpotCount {
		return nil, fmt.Errorf("facility %d has reached its maximum parking spot count (%d)",
			facilityID, facility.ParkingSpotCount)
	}

	spot := &db.ParkingSpot{FacilityID: facilityID, SpotNumber: spotNumber}
	if err := s.Repo.CreateSpot(ctx, spot); err != nil {
		return nil, err
	}
	return spot, nil
}

func (s *FacilityService) GetSpot(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	return s.Repo.GetSpot(ctx, id)
}

func (s *FacilityService) ListSpots(ctx context.Context, facilityID int64) ([]db.ParkingSpot, error) {
	return s.Repo.ListSpotsByFacility(ctx, facilityID)
}

func (s *FacilityService) UpdateSpotNumber(ctx context.Context, id int64, spotNumber int) (*db.ParkingSpot, error) {
	return s.Repo.UpdateSpotNumber(ctx, id, spotNumber)
}

func (s *FacilityService) DeleteSpot(ctx context.Context, id int64) (bool, error) {
	return s.Repo.DeleteSpot(ctx, id)
}
