package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycove/mediagen/internal/models"
	"github.com/storycove/mediagen/internal/providers"
	"github.com/storycove/mediagen/internal/queue"
)

// fakeStoryStore holds one story and records media field writes in order.
type fakeStoryStore struct {
	story       *models.Story
	fieldWrites []string
	setErr      error
}

func (f *fakeStoryStore) GetStory(ctx context.Context, id string) (*models.Story, error) {
	if f.story == nil || f.story.ID != id {
		return nil, models.ErrStoryNotFound
	}
	return f.story, nil
}

func (f *fakeStoryStore) SetMediaField(ctx context.Context, storyID string, mediaType models.MediaType, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.fieldWrites = append(f.fieldWrites, value)
	return nil
}

// fakeCostStore records the create and the terminal finalize.
type fakeCostStore struct {
	created       *models.CostRecord
	finalProvider string
	finalCost     float64
	finalStatus   models.CostStatus
	finalized     bool
	createErr     error
	finalizeErr   error
}

func (f *fakeCostStore) CreateCostRecord(ctx context.Context, rec *models.CostRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *rec
	f.created = &copied
	return nil
}

func (f *fakeCostStore) FinalizeCostRecord(ctx context.Context, rec *models.CostRecord, provider string, cost float64, status models.CostStatus) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = true
	f.finalProvider = provider
	f.finalCost = cost
	f.finalStatus = status
	return nil
}

// stubGenerator returns a fixed result or error.
type stubGenerator struct {
	name    string
	result  *providers.Result
	err     error
	lastReq providers.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req providers.Request) (*providers.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubGenerator) Name() string { return s.name }

type stubResolver struct{ gen providers.Generator }

func (s stubResolver) Provider(mediaType models.MediaType) providers.Generator { return s.gen }

func testStory() *models.Story {
	return &models.Story{
		ID:      "story-1",
		UserID:  "user-1",
		Title:   "The Lost Key",
		Content: "<p>Hello world</p>",
	}
}

func testJob(mediaType models.MediaType) *queue.MediaJob {
	return &queue.MediaJob{
		StoryID:   "story-1",
		MediaType: mediaType,
		Content:   "<p>Hello world</p>",
		Title:     "The Lost Key",
		Attempt:   1,
	}
}

func TestProcessMediaJobSuccess(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{}
	gen := &stubGenerator{
		name:   "runway",
		result: &providers.Result{AssetRef: "https://cdn.example.com/v.mp4", DurationSec: 10, Cost: 0.5},
	}
	w := New(stories, costs, nil, stubResolver{gen})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeVideo))
	require.NoError(t, err)

	// Ledger row opened with the claim-time shape.
	require.NotNil(t, costs.created)
	assert.Equal(t, "user-1", costs.created.UserID)
	assert.Equal(t, "story-1", costs.created.StoryID)
	assert.Equal(t, "unknown", costs.created.Provider)
	assert.Zero(t, costs.created.Cost)
	assert.Equal(t, models.CostStatusProcessing, costs.created.Status)

	// Terminal update carries the real provider and cost.
	assert.True(t, costs.finalized)
	assert.Equal(t, "runway", costs.finalProvider)
	assert.InDelta(t, 0.5, costs.finalCost, 0.0001)
	assert.Equal(t, models.CostStatusCompleted, costs.finalStatus)

	// Sentinel advances processing then resolves to the asset reference.
	assert.Equal(t, []string{models.SentinelProcessing, "https://cdn.example.com/v.mp4"}, stories.fieldWrites)

	assert.Equal(t, "user-1", gen.lastReq.OwnerID)
	assert.Equal(t, "<p>Hello world</p>", gen.lastReq.Content)
}

func TestProcessMediaJobPlaceholderAudio(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{}
	w := New(stories, costs, nil, stubResolver{providers.NewPlaceholderAudioService()})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeAudio))
	require.NoError(t, err)

	assert.Equal(t, providers.PlaceholderName, costs.finalProvider)
	assert.Zero(t, costs.finalCost)
	assert.Equal(t, models.CostStatusCompleted, costs.finalStatus)
	assert.Equal(t, []string{models.SentinelProcessing, "placeholder://audio/story-1"}, stories.fieldWrites)
}

func TestProcessMediaJobGenerationFailure(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{}
	gen := &stubGenerator{name: "runway", err: errors.New("upstream exploded")}
	w := New(stories, costs, nil, stubResolver{gen})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeVideo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")

	// Ledger closed as failed with zero cost, sentinel set to failed.
	assert.True(t, costs.finalized)
	assert.Equal(t, models.CostStatusFailed, costs.finalStatus)
	assert.Zero(t, costs.finalCost)
	assert.Equal(t, []string{models.SentinelProcessing, models.SentinelFailed}, stories.fieldWrites)
}

func TestProcessMediaJobFailureBookkeepingNeverMasks(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{finalizeErr: errors.New("ledger down")}
	gen := &stubGenerator{name: "runway", err: errors.New("upstream exploded")}
	w := New(stories, costs, nil, stubResolver{gen})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeVideo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.NotContains(t, err.Error(), "ledger down")
}

func TestProcessMediaJobStoryMissing(t *testing.T) {
	stories := &fakeStoryStore{}
	costs := &fakeCostStore{}
	w := New(stories, costs, nil, stubResolver{&stubGenerator{name: "runway"}})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeVideo))
	assert.ErrorIs(t, err, models.ErrStoryNotFound)

	// No ledger row and no sentinel writes for a story that never existed.
	assert.Nil(t, costs.created)
	assert.Empty(t, stories.fieldWrites)
}

func TestProcessMediaJobCostRecordCreateFails(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{createErr: errors.New("insert failed")}
	w := New(stories, costs, nil, stubResolver{&stubGenerator{name: "runway"}})

	err := w.ProcessMediaJob(context.Background(), testJob(models.MediaTypeVideo))
	require.Error(t, err)
	assert.Empty(t, stories.fieldWrites)
}

func TestProcessMediaJobContentFallsBackToStory(t *testing.T) {
	stories := &fakeStoryStore{story: testStory()}
	costs := &fakeCostStore{}
	gen := &stubGenerator{name: "runway", result: &providers.Result{AssetRef: "ref"}}
	w := New(stories, costs, nil, stubResolver{gen})

	job := testJob(models.MediaTypeVideo)
	job.Content = ""

	require.NoError(t, w.ProcessMediaJob(context.Background(), job))
	assert.Equal(t, "<p>Hello world</p>", gen.lastReq.Content)
}
