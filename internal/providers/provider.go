package providers

import (
	"context"

	"github.com/storycove/mediagen/internal/storage"
)

// Request carries the inputs for one media generation attempt.
type Request struct {
	StoryID string
	OwnerID string // user owning the story; scopes storage keys
	Content string // story text, may contain HTML from the editor
	Title   string
	Theme   string // optional visual/tonal hint
}

// Result is the uniform outcome of a successful generation:
// a first-party asset reference, a duration hint for the client
// player, and the cost attributed to the attempt.
type Result struct {
	AssetRef    string
	DurationSec int
	Cost        float64
}

// Generator is the contract every media provider adapter implements.
// Name returns a stable identifier used for logging and cost attribution.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Uploader persists generated binaries to first-party storage.
// Satisfied by *storage.Storage; narrowed here so adapter tests can
// substitute a fake.
type Uploader interface {
	UploadFile(ctx context.Context, data []byte, filename, mimeType, ownerID string) (*storage.UploadResult, error)
}
