package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storycove/mediagen/internal/models"
)

// CreateStory inserts a story row. The ID is assigned by the text
// generation step upstream; the backend passes it through unchanged.
func (db *DB) CreateStory(ctx context.Context, story *models.Story) error {
	query := `
		INSERT INTO stories (id, user_id, title, content, theme)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		story.ID, story.UserID, story.Title, story.Content, story.Theme,
	).Scan(&story.CreatedAt, &story.UpdatedAt)
}

// GetStory retrieves a story by its ID.
func (db *DB) GetStory(ctx context.Context, id string) (*models.Story, error) {
	query := `
		SELECT id, user_id, title, content, theme, video_url, audio_url, created_at, updated_at
		FROM stories
		WHERE id = $1
	`

	story := &models.Story{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&story.ID, &story.UserID, &story.Title, &story.Content, &story.Theme,
		&story.VideoURL, &story.AudioURL, &story.CreatedAt, &story.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	return story, nil
}

// SetMediaField writes the media slot for one media type. The value is
// either a sentinel token or a resolved asset reference. Last writer
// wins; there is no compare-and-swap on the previous value.
func (db *DB) SetMediaField(ctx context.Context, storyID string, mediaType models.MediaType, value string) error {
	var query string
	switch mediaType {
	case models.MediaTypeVideo:
		query = `UPDATE stories SET video_url = $1, updated_at = NOW() WHERE id = $2`
	case models.MediaTypeAudio:
		query = `UPDATE stories SET audio_url = $1, updated_at = NOW() WHERE id = $2`
	default:
		return fmt.Errorf("unknown media type: %s", mediaType)
	}

	result, err := db.ExecContext(ctx, query, value, storyID)
	if err != nil {
		return fmt.Errorf("failed to set %s field: %w", mediaType, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrStoryNotFound
	}

	return nil
}
