package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Enums

// MediaType identifies which companion asset a job produces.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// Valid reports whether mt is one of the supported media types.
func (mt MediaType) Valid() bool {
	return mt == MediaTypeVideo || mt == MediaTypeAudio
}

// MediaStatus is the client-facing lifecycle status of a media slot.
type MediaStatus string

const (
	MediaStatusPending    MediaStatus = "pending"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
)

// Sentinel values stored in a story's media field while no resolved
// asset reference exists yet. Any other non-empty value in the field
// is the resolved reference itself.
const (
	SentinelPending    = "pending"
	SentinelProcessing = "processing"
	SentinelFailed     = "failed"
)

// CostStatus is the lifecycle status of a cost ledger row.
type CostStatus string

const (
	CostStatusProcessing CostStatus = "processing"
	CostStatusCompleted  CostStatus = "completed"
	CostStatusFailed     CostStatus = "failed"
)

// ErrStoryNotFound is returned when a story id does not resolve to a row.
var ErrStoryNotFound = errors.New("Story not found")

// Models

// Story is the owning row for generated text and its media slots.
// VideoURL and AudioURL each hold either a sentinel token or a
// resolved asset reference; nil means no generation was ever queued.
type Story struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Theme     *string   `json:"theme,omitempty"`
	VideoURL  *string   `json:"video_url,omitempty"`
	AudioURL  *string   `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CostRecord is one append-only ledger row per generation attempt.
// Created when a worker claims the job, terminally updated exactly once.
type CostRecord struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	StoryID   string     `json:"story_id"`
	MediaType MediaType  `json:"media_type"`
	Provider  string     `json:"provider"`
	Cost      float64    `json:"cost"`
	Status    CostStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// QuotaSnapshot is the read-only usage view for one user and media type.
type QuotaSnapshot struct {
	Count     int `json:"count"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// DTOs for API responses

type MediaStatusResponse struct {
	Video MediaStatus `json:"video"`
	Audio MediaStatus `json:"audio"`
}

type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type CreateStoryRequest struct {
	UserID  string  `json:"user_id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Theme   *string `json:"theme,omitempty"`
}

type GenerateMediaRequest struct {
	MediaType MediaType `json:"media_type"`
	Content   string    `json:"content,omitempty"`
	Title     string    `json:"title,omitempty"`
	Theme     string    `json:"theme,omitempty"`
}
