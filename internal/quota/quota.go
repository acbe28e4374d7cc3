package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/storycove/mediagen/internal/models"
)

// Monthly generation ceilings per user. The boundary is the wall-clock
// calendar month, not a rolling window.
const (
	VideoMonthlyLimit = 10
	AudioMonthlyLimit = 20
)

// AttemptCounter counts a user's non-failed generation attempts of one
// media type created since a point in time. Satisfied by *db.DB.
type AttemptCounter interface {
	CountMediaAttempts(ctx context.Context, userID string, mediaType models.MediaType, since time.Time) (int, error)
}

// LimitError is the rate-limit-class rejection returned when a user is
// at or over their monthly ceiling.
type LimitError struct {
	MediaType models.MediaType
	Count     int
	Limit     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("monthly %s generation limit reached (%d/%d)", e.MediaType, e.Count, e.Limit)
}

// Guard enforces the monthly admission quota.
type Guard struct {
	counter AttemptCounter
	now     func() time.Time
}

func NewGuard(counter AttemptCounter) *Guard {
	return &Guard{
		counter: counter,
		now:     time.Now,
	}
}

// Check rejects admission when the user's attempt count for the
// current calendar month is at or over the ceiling. Failed attempts do
// not count; in-flight ones do.
func (g *Guard) Check(ctx context.Context, userID string, mediaType models.MediaType) error {
	count, limit, err := g.usage(ctx, userID, mediaType)
	if err != nil {
		return err
	}

	if count >= limit {
		return &LimitError{MediaType: mediaType, Count: count, Limit: limit}
	}

	return nil
}

// Usage returns the read-only quota snapshot for one user and media type.
func (g *Guard) Usage(ctx context.Context, userID string, mediaType models.MediaType) (*models.QuotaSnapshot, error) {
	count, limit, err := g.usage(ctx, userID, mediaType)
	if err != nil {
		return nil, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &models.QuotaSnapshot{
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
	}, nil
}

func (g *Guard) usage(ctx context.Context, userID string, mediaType models.MediaType) (count, limit int, err error) {
	limit = Limit(mediaType)

	count, err = g.counter.CountMediaAttempts(ctx, userID, mediaType, monthStart(g.now()))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count media attempts: %w", err)
	}

	return count, limit, nil
}

// Limit returns the fixed monthly ceiling for a media type.
func Limit(mediaType models.MediaType) int {
	if mediaType == models.MediaTypeVideo {
		return VideoMonthlyLimit
	}
	return AudioMonthlyLimit
}

// monthStart returns the first instant of t's calendar month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
