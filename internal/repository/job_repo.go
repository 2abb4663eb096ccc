package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"parkspot/internal/apperr"
)

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(database *sql.DB) *JobRepository {
	return &JobRepository{DB: database}
}

// GetExpiredPinUserIDs returns the user ids whose verification pin expired
// before the given instant.
func (r *JobRepository) GetExpiredPinUserIDs(ctx context.Context, before time.Time) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT user_id FROM email_verification_pins WHERE expires_at < $1`, before)
	if err != nil {
		return nil, apperr.Store("query expired pins", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Store("scan expired pin row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("iterate expired pin rows", err)
	}
	return ids, nil
}

// DeletePinsForUsers removes the pin rows for the given users and returns how
// many went away.
func (r *JobRepository) DeletePinsForUsers(ctx context.Context, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result, err := r.DB.ExecContext(ctx,
		`DELETE FROM email_verification_pins WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return 0, apperr.Store("delete expired pins", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Store("delete expired pins", err)
	}
	return affected, nil
}
