package providers

import (
	"context"
	"fmt"
	"time"
)

// Placeholder adapters exercise the full pipeline without external
// dependencies or spend: fixed simulated delay, deterministic
// non-functional reference, zero cost. The registry falls back to
// them when the configured provider's credential is absent.

const placeholderDelay = 500 * time.Millisecond

// PlaceholderName is the stable identifier both placeholder adapters
// report for logging and cost attribution.
const PlaceholderName = "placeholder"

type PlaceholderVideoService struct{}

var _ Generator = (*PlaceholderVideoService)(nil)

func NewPlaceholderVideoService() *PlaceholderVideoService {
	return &PlaceholderVideoService{}
}

func (s *PlaceholderVideoService) Name() string {
	return PlaceholderName
}

func (s *PlaceholderVideoService) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := simulateWork(ctx); err != nil {
		return nil, err
	}

	return &Result{
		AssetRef:    fmt.Sprintf("placeholder://video/%s", req.StoryID),
		DurationSec: 10,
		Cost:        0,
	}, nil
}

type PlaceholderAudioService struct{}

var _ Generator = (*PlaceholderAudioService)(nil)

func NewPlaceholderAudioService() *PlaceholderAudioService {
	return &PlaceholderAudioService{}
}

func (s *PlaceholderAudioService) Name() string {
	return PlaceholderName
}

func (s *PlaceholderAudioService) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := simulateWork(ctx); err != nil {
		return nil, err
	}

	return &Result{
		AssetRef:    fmt.Sprintf("placeholder://audio/%s", req.StoryID),
		DurationSec: EstimateDurationSeconds(StripHTML(req.Content)),
		Cost:        0,
	}, nil
}

func simulateWork(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("generation cancelled: %w", ctx.Err())
	case <-time.After(placeholderDelay):
		return nil
	}
}
