package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/storycove/mediagen/internal/media"
	"github.com/storycove/mediagen/internal/models"
	"github.com/storycove/mediagen/internal/providers"
	"github.com/storycove/mediagen/internal/queue"
)

const dequeueTimeout = 5 * time.Second

// CostStore is the ledger slice the worker needs. Satisfied by *db.DB.
type CostStore interface {
	CreateCostRecord(ctx context.Context, rec *models.CostRecord) error
	FinalizeCostRecord(ctx context.Context, rec *models.CostRecord, provider string, cost float64, status models.CostStatus) error
}

// ProviderResolver resolves the active adapter per media type.
// Satisfied by *providers.Registry.
type ProviderResolver interface {
	Provider(mediaType models.MediaType) providers.Generator
}

// Worker drains the media generation queue with bounded concurrency
// and runs the per-job processing routine. Concurrency is arbitrated
// by the broker, not in-process state, so multiple worker processes
// sharing one broker remain correct.
type Worker struct {
	stories  media.StoryStore
	costs    CostStore
	queue    *queue.Queue
	registry ProviderResolver
}

func New(stories media.StoryStore, costs CostStore, q *queue.Queue, registry ProviderResolver) *Worker {
	return &Worker{
		stories:  stories,
		costs:    costs,
		queue:    q,
		registry: registry,
	}
}

// Start runs the worker pool until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Info().Int("concurrency", concurrency).Msg("worker pool started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.queue.StartPromoter(gctx)
		return nil
	})

	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.processLoop(gctx)
			return nil
		})
	}

	_ = g.Wait()
	log.Info().Msg("worker pool stopped")
}

func (w *Worker) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("worker: failed to dequeue")
			continue
		}
		if job == nil {
			continue // No job available, retry
		}

		w.queue.MarkActive(ctx)

		if err := w.ProcessMediaJob(ctx, job); err != nil {
			w.handleFailure(ctx, job, err)
			continue
		}

		w.queue.MarkCompleted(ctx)
	}
}

// handleFailure applies the broker retry policy: schedule the next
// attempt with backoff, unless retries are exhausted or the failure
// has no retry benefit (missing story).
func (w *Worker) handleFailure(ctx context.Context, job *queue.MediaJob, jobErr error) {
	logger := log.With().Str("job_id", job.ID.String()).Str("story_id", job.StoryID).
		Str("media_type", string(job.MediaType)).Int("attempt", job.Attempt).Logger()

	if errors.Is(jobErr, models.ErrStoryNotFound) {
		logger.Error().Err(jobErr).Msg("worker: story missing, not retrying")
		w.queue.MarkFailed(ctx)
		return
	}

	if job.Attempt >= queue.MaxAttempts {
		logger.Error().Err(jobErr).Msg("worker: retries exhausted, job failed terminally")
		w.queue.MarkFailed(ctx)
		return
	}

	delay, err := w.queue.ScheduleRetry(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("worker: failed to schedule retry, job failed terminally")
		w.queue.MarkFailed(ctx)
		return
	}

	logger.Warn().Err(jobErr).Dur("delay", delay).Msg("worker: job failed, retry scheduled")
	w.queue.MarkRetried(ctx)
}

// ProcessMediaJob is the per-attempt state machine:
//
//  1. Look up the owning story (absent ⇒ fail fast).
//  2. Append a cost ledger row: status "processing", provider "unknown".
//  3. Set the story's media sentinel to "processing".
//  4. Resolve the provider and invoke it.
//  5. Success: finalize the ledger row and write the resolved reference.
//  6. Failure: best-effort finalize "failed", set the "failed" sentinel,
//     and return the original error so the retry policy applies.
//
// Each retry re-runs the whole routine, appending a fresh ledger row.
func (w *Worker) ProcessMediaJob(ctx context.Context, job *queue.MediaJob) error {
	logger := log.With().Str("job_id", job.ID.String()).Str("story_id", job.StoryID).
		Str("media_type", string(job.MediaType)).Int("attempt", job.Attempt).Logger()

	logger.Info().Msg("worker: processing media job")

	story, err := w.stories.GetStory(ctx, job.StoryID)
	if err != nil {
		return err
	}

	rec := &models.CostRecord{
		ID:        uuid.New(),
		UserID:    story.UserID,
		StoryID:   job.StoryID,
		MediaType: job.MediaType,
		Provider:  "unknown",
		Cost:      0,
		Status:    models.CostStatusProcessing,
	}
	if err := w.costs.CreateCostRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to create cost record: %w", err)
	}

	if err := w.stories.SetMediaField(ctx, job.StoryID, job.MediaType, models.SentinelProcessing); err != nil {
		return fmt.Errorf("failed to mark story processing: %w", err)
	}

	gen := w.registry.Provider(job.MediaType)

	content := job.Content
	if content == "" {
		content = story.Content
	}

	result, genErr := gen.Generate(ctx, providers.Request{
		StoryID: job.StoryID,
		OwnerID: story.UserID,
		Content: content,
		Title:   job.Title,
		Theme:   job.Theme,
	})
	if genErr != nil {
		// Bookkeeping failures here are logged, never propagated, so
		// they can't mask the original generation error.
		if err := w.costs.FinalizeCostRecord(ctx, rec, gen.Name(), 0, models.CostStatusFailed); err != nil {
			logger.Error().Err(err).Msg("worker: failed to record failed attempt")
		}
		if err := w.stories.SetMediaField(ctx, job.StoryID, job.MediaType, models.SentinelFailed); err != nil {
			logger.Error().Err(err).Msg("worker: failed to set failed sentinel")
		}
		return fmt.Errorf("%s generation failed via %s: %w", job.MediaType, gen.Name(), genErr)
	}

	if err := w.costs.FinalizeCostRecord(ctx, rec, gen.Name(), result.Cost, models.CostStatusCompleted); err != nil {
		return fmt.Errorf("failed to finalize cost record: %w", err)
	}

	if err := w.stories.SetMediaField(ctx, job.StoryID, job.MediaType, result.AssetRef); err != nil {
		return fmt.Errorf("failed to store asset reference: %w", err)
	}

	logger.Info().Str("provider", gen.Name()).Float64("cost", result.Cost).
		Int("duration_sec", result.DurationSec).Msg("worker: media job completed")

	return nil
}
