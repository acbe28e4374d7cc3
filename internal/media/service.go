package media

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/storycove/mediagen/internal/models"
	"github.com/storycove/mediagen/internal/queue"
	"github.com/storycove/mediagen/internal/quota"
)

// StoryStore is the slice of the relational store the media surface
// needs. Satisfied by *db.DB.
type StoryStore interface {
	GetStory(ctx context.Context, id string) (*models.Story, error)
	SetMediaField(ctx context.Context, storyID string, mediaType models.MediaType, value string) error
}

// Broker admits jobs to the durable queue. Satisfied by *queue.Queue.
// A nil Broker means the queue was unreachable at startup and the
// service is running in degraded mode.
type Broker interface {
	EnqueueMediaJob(ctx context.Context, job *queue.MediaJob) error
}

// Service is the media-generation surface consumed by the request
// layer. Constructed explicitly in main and handed to the router; it
// holds no process-global state.
type Service struct {
	stories StoryStore
	broker  Broker
	quota   *quota.Guard
}

func NewService(stories StoryStore, broker Broker, guard *quota.Guard) *Service {
	return &Service{
		stories: stories,
		broker:  broker,
		quota:   guard,
	}
}

// QueueMediaGeneration admits one generation job: quota check, enqueue,
// and the synchronous "pending" sentinel write. When the broker is
// absent (degraded mode) the sentinel is still written so clients see
// a consistent status, but no background work will ever advance it.
func (s *Service) QueueMediaGeneration(ctx context.Context, storyID string, mediaType models.MediaType, content, title, theme string) error {
	if !mediaType.Valid() {
		return fmt.Errorf("unknown media type: %s", mediaType)
	}

	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return err
	}

	if err := s.quota.Check(ctx, story.UserID, mediaType); err != nil {
		return err
	}

	// The request layer may omit content; the stored story text is the
	// fallback source.
	if content == "" {
		content = story.Content
	}
	if title == "" {
		title = story.Title
	}
	if theme == "" && story.Theme != nil {
		theme = *story.Theme
	}

	if s.broker == nil {
		log.Warn().Str("story_id", storyID).Str("media_type", string(mediaType)).
			Msg("queue unavailable, marking media pending without scheduling work")
		return s.stories.SetMediaField(ctx, storyID, mediaType, models.SentinelPending)
	}

	job := &queue.MediaJob{
		StoryID:   storyID,
		MediaType: mediaType,
		Content:   content,
		Title:     title,
		Theme:     theme,
	}

	if err := s.broker.EnqueueMediaJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue media job: %w", err)
	}

	if err := s.stories.SetMediaField(ctx, storyID, mediaType, models.SentinelPending); err != nil {
		return err
	}

	log.Info().Str("story_id", storyID).Str("media_type", string(mediaType)).
		Str("job_id", job.ID.String()).Msg("media generation queued")

	return nil
}

// RegenerateMedia re-enters the generation lifecycle with a fresh job.
// Prior cost ledger rows are left untouched as history.
func (s *Service) RegenerateMedia(ctx context.Context, storyID string, mediaType models.MediaType, content, title, theme string) error {
	log.Info().Str("story_id", storyID).Str("media_type", string(mediaType)).
		Msg("media regeneration requested")
	return s.QueueMediaGeneration(ctx, storyID, mediaType, content, title, theme)
}

// GetMediaStatus projects both media slots of a story to client-facing
// statuses. Fails with "Story not found" when the story is absent.
func (s *Service) GetMediaStatus(ctx context.Context, storyID string) (*models.MediaStatusResponse, error) {
	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}

	return &models.MediaStatusResponse{
		Video: ProjectStatus(story.VideoURL),
		Audio: ProjectStatus(story.AudioURL),
	}, nil
}

// CheckMediaLimits is the pre-admission quota gate exposed to the
// request layer.
func (s *Service) CheckMediaLimits(ctx context.Context, userID string, mediaType models.MediaType) error {
	return s.quota.Check(ctx, userID, mediaType)
}

// GetMediaUsage returns the user's quota snapshot for one media type.
func (s *Service) GetMediaUsage(ctx context.Context, userID string, mediaType models.MediaType) (*models.QuotaSnapshot, error) {
	return s.quota.Usage(ctx, userID, mediaType)
}

// ProjectStatus derives the four-state status from the raw media
// field: nil or empty projects to pending, sentinel tokens to their
// status, and any other non-empty value is a resolved reference.
func ProjectStatus(field *string) models.MediaStatus {
	if field == nil || *field == "" {
		return models.MediaStatusPending
	}

	switch *field {
	case models.SentinelPending:
		return models.MediaStatusPending
	case models.SentinelProcessing:
		return models.MediaStatusProcessing
	case models.SentinelFailed:
		return models.MediaStatusFailed
	default:
		return models.MediaStatusCompleted
	}
}
