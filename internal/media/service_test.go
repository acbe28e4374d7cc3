package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycove/mediagen/internal/models"
	"github.com/storycove/mediagen/internal/queue"
	"github.com/storycove/mediagen/internal/quota"
)

// fakeStoryStore holds stories in memory and records media field writes.
type fakeStoryStore struct {
	stories map[string]*models.Story
	writes  []fieldWrite
}

type fieldWrite struct {
	storyID   string
	mediaType models.MediaType
	value     string
}

func newFakeStoryStore(stories ...*models.Story) *fakeStoryStore {
	m := make(map[string]*models.Story)
	for _, s := range stories {
		m[s.ID] = s
	}
	return &fakeStoryStore{stories: m}
}

func (f *fakeStoryStore) GetStory(ctx context.Context, id string) (*models.Story, error) {
	story, ok := f.stories[id]
	if !ok {
		return nil, models.ErrStoryNotFound
	}
	return story, nil
}

func (f *fakeStoryStore) SetMediaField(ctx context.Context, storyID string, mediaType models.MediaType, value string) error {
	if _, ok := f.stories[storyID]; !ok {
		return models.ErrStoryNotFound
	}
	f.writes = append(f.writes, fieldWrite{storyID, mediaType, value})
	return nil
}

// fakeBroker captures enqueued jobs.
type fakeBroker struct {
	jobs []*queue.MediaJob
	err  error
}

func (f *fakeBroker) EnqueueMediaJob(ctx context.Context, job *queue.MediaJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// fixedCounter satisfies quota.AttemptCounter with a constant count.
type fixedCounter struct{ count int }

func (f fixedCounter) CountMediaAttempts(ctx context.Context, userID string, mediaType models.MediaType, since time.Time) (int, error) {
	return f.count, nil
}

func testStory() *models.Story {
	theme := "watercolor"
	return &models.Story{
		ID:      "story-1",
		UserID:  "user-1",
		Title:   "The Lost Key",
		Content: "<p>Once upon a time.</p>",
		Theme:   &theme,
	}
}

func newTestService(store StoryStore, broker Broker, count int) *Service {
	return NewService(store, broker, quota.NewGuard(fixedCounter{count: count}))
}

func TestQueueMediaGeneration(t *testing.T) {
	store := newFakeStoryStore(testStory())
	broker := &fakeBroker{}
	svc := newTestService(store, broker, 0)

	err := svc.QueueMediaGeneration(context.Background(), "story-1", models.MediaTypeVideo, "", "", "")
	require.NoError(t, err)

	// Job carries the stored story fields when the request omits them.
	require.Len(t, broker.jobs, 1)
	job := broker.jobs[0]
	assert.Equal(t, "story-1", job.StoryID)
	assert.Equal(t, models.MediaTypeVideo, job.MediaType)
	assert.Equal(t, "<p>Once upon a time.</p>", job.Content)
	assert.Equal(t, "The Lost Key", job.Title)
	assert.Equal(t, "watercolor", job.Theme)

	// Pending sentinel is written synchronously with admission.
	require.Len(t, store.writes, 1)
	assert.Equal(t, fieldWrite{"story-1", models.MediaTypeVideo, models.SentinelPending}, store.writes[0])
}

func TestQueueMediaGenerationExplicitOverrides(t *testing.T) {
	store := newFakeStoryStore(testStory())
	broker := &fakeBroker{}
	svc := newTestService(store, broker, 0)

	err := svc.QueueMediaGeneration(context.Background(), "story-1", models.MediaTypeAudio, "custom content", "Custom Title", "noir")
	require.NoError(t, err)

	require.Len(t, broker.jobs, 1)
	assert.Equal(t, "custom content", broker.jobs[0].Content)
	assert.Equal(t, "Custom Title", broker.jobs[0].Title)
	assert.Equal(t, "noir", broker.jobs[0].Theme)
}

func TestQueueMediaGenerationInvalidType(t *testing.T) {
	svc := newTestService(newFakeStoryStore(testStory()), &fakeBroker{}, 0)

	err := svc.QueueMediaGeneration(context.Background(), "story-1", "gif", "", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown media type")
}

func TestQueueMediaGenerationStoryNotFound(t *testing.T) {
	svc := newTestService(newFakeStoryStore(), &fakeBroker{}, 0)

	err := svc.QueueMediaGeneration(context.Background(), "missing", models.MediaTypeVideo, "", "", "")
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestQueueMediaGenerationQuotaExceeded(t *testing.T) {
	store := newFakeStoryStore(testStory())
	broker := &fakeBroker{}
	svc := newTestService(store, broker, quota.VideoMonthlyLimit)

	err := svc.QueueMediaGeneration(context.Background(), "story-1", models.MediaTypeVideo, "", "", "")

	var limitErr *quota.LimitError
	require.ErrorAs(t, err, &limitErr)

	// Nothing enqueued, nothing written.
	assert.Empty(t, broker.jobs)
	assert.Empty(t, store.writes)
}

func TestQueueMediaGenerationDegradedMode(t *testing.T) {
	store := newFakeStoryStore(testStory())
	svc := newTestService(store, nil, 0)

	err := svc.QueueMediaGeneration(context.Background(), "story-1", models.MediaTypeAudio, "", "", "")
	require.NoError(t, err)

	// Pending sentinel is still written so status reads stay consistent.
	require.Len(t, store.writes, 1)
	assert.Equal(t, models.SentinelPending, store.writes[0].value)
}

func TestRegenerateMedia(t *testing.T) {
	store := newFakeStoryStore(testStory())
	broker := &fakeBroker{}
	svc := newTestService(store, broker, 3)

	err := svc.RegenerateMedia(context.Background(), "story-1", models.MediaTypeVideo, "", "", "")
	require.NoError(t, err)

	require.Len(t, broker.jobs, 1)
	require.Len(t, store.writes, 1)
	assert.Equal(t, models.SentinelPending, store.writes[0].value)
}

func TestGetMediaStatus(t *testing.T) {
	story := testStory()
	processing := models.SentinelProcessing
	resolved := "https://cdn.example.com/user-1/story_audio.mp3"
	story.VideoURL = &processing
	story.AudioURL = &resolved

	svc := newTestService(newFakeStoryStore(story), &fakeBroker{}, 0)

	status, err := svc.GetMediaStatus(context.Background(), "story-1")
	require.NoError(t, err)

	assert.Equal(t, models.MediaStatusProcessing, status.Video)
	assert.Equal(t, models.MediaStatusCompleted, status.Audio)
}

func TestGetMediaStatusStoryNotFound(t *testing.T) {
	svc := newTestService(newFakeStoryStore(), &fakeBroker{}, 0)

	_, err := svc.GetMediaStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestProjectStatus(t *testing.T) {
	ptr := func(s string) *string { return &s }

	tests := []struct {
		name  string
		field *string
		want  models.MediaStatus
	}{
		{"nil field", nil, models.MediaStatusPending},
		{"empty field", ptr(""), models.MediaStatusPending},
		{"pending sentinel", ptr("pending"), models.MediaStatusPending},
		{"processing sentinel", ptr("processing"), models.MediaStatusProcessing},
		{"failed sentinel", ptr("failed"), models.MediaStatusFailed},
		{"resolved url", ptr("https://cdn.example.com/v.mp4"), models.MediaStatusCompleted},
		{"placeholder ref", ptr("placeholder://video/story-1"), models.MediaStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectStatus(tt.field))
		})
	}
}

func TestGetMediaUsage(t *testing.T) {
	svc := newTestService(newFakeStoryStore(), &fakeBroker{}, 4)

	snap, err := svc.GetMediaUsage(context.Background(), "user-1", models.MediaTypeVideo)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Count)
	assert.Equal(t, quota.VideoMonthlyLimit, snap.Limit)
	assert.Equal(t, quota.VideoMonthlyLimit-4, snap.Remaining)
}

func TestCheckMediaLimits(t *testing.T) {
	svc := newTestService(newFakeStoryStore(), &fakeBroker{}, quota.AudioMonthlyLimit)

	err := svc.CheckMediaLimits(context.Background(), "user-1", models.MediaTypeAudio)

	var limitErr *quota.LimitError
	assert.ErrorAs(t, err, &limitErr)
}
