package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"parkspot/internal/repository"
)

type JobService struct {
	Repo *repository.JobRepository
}

func NewJobService(repo *repository.JobRepository) *JobService {
	return &JobService{Repo: repo}
}

// PurgeExpiredVerificationPins removes verification pins past their expiry so
// stale codes can never verify an account.
func (s *JobService) PurgeExpiredVerificationPins(ctx context.Context) error {
	log.Println("Cron Job: Checking for expired verification pins...")

	userIDs, err := s.Repo.GetExpiredPinUserIDs(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("cron job: failed to query expired verification pins: %w", err)
	}

	if len(userIDs) == 0 {
		log.Println("Cron Job: No expired verification pins found.")
		return nil
	}

	deleted, err := s.Repo.DeletePinsForUsers(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("cron job: failed to delete expired verification pins: %w", err)
	}

	log.Printf("Cron Job: Purged %d expired verification pins.", deleted)
	return nil
}
