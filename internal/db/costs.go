package db

import (
	"context"
	"fmt"
	"time"

	"github.com/storycove/mediagen/internal/models"
)

// CreateCostRecord appends one ledger row for a generation attempt.
// Rows are never deleted or reused; retries append fresh rows.
func (db *DB) CreateCostRecord(ctx context.Context, rec *models.CostRecord) error {
	query := `
		INSERT INTO media_costs (
			id, user_id, story_id, media_type, provider, cost, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		rec.ID, rec.UserID, rec.StoryID, rec.MediaType, rec.Provider, rec.Cost, rec.Status,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// FinalizeCostRecord terminally updates an attempt row with the real
// provider, accumulated cost, and outcome. Called exactly once per row.
func (db *DB) FinalizeCostRecord(ctx context.Context, rec *models.CostRecord, provider string, cost float64, status models.CostStatus) error {
	query := `
		UPDATE media_costs
		SET provider = $1, cost = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`

	if _, err := db.ExecContext(ctx, query, provider, cost, status, rec.ID); err != nil {
		return fmt.Errorf("failed to finalize cost record: %w", err)
	}

	rec.Provider = provider
	rec.Cost = cost
	rec.Status = status
	return nil
}

// CountMediaAttempts counts a user's attempts of one media type created
// at or after `since`. Failed attempts do not count against quota;
// in-flight and completed ones do.
func (db *DB) CountMediaAttempts(ctx context.Context, userID string, mediaType models.MediaType, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM media_costs
		WHERE user_id = $1
		  AND media_type = $2
		  AND status IN ('pending', 'processing', 'completed')
		  AND created_at >= $3
	`

	var count int
	err := db.QueryRowContext(ctx, query, userID, mediaType, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count media attempts: %w", err)
	}

	return count, nil
}
