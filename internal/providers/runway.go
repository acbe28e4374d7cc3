package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Runway Video Generation Service
// Uses the Runway REST API to generate short ambient videos from text prompts.
// Follows a deferred request pattern: submit generation → poll by task id →
// download → re-upload to first-party storage.
// ---------------------------------------------------------------------------

const (
	runwayDefaultBaseURL = "https://api.dev.runwayml.com"
	runwayAPIVersion     = "2024-11-06"
	runwayModel          = "gen3a_turbo"

	runwayPollInterval    = 5 * time.Second
	runwayMaxPollAttempts = 60 // 5-minute ceiling at one poll per 5s

	runwayTargetDuration = 10        // seconds, fixed per request
	runwayAspectRatio    = "768:1280" // portrait for mobile
	runwayCostPerSecond  = 0.05
)

// RunwayService generates companion videos via Runway's task API.
type RunwayService struct {
	apiKey       string
	baseURL      string
	uploader     Uploader
	pollInterval time.Duration
	client       *http.Client
}

// Ensure RunwayService implements Generator at compile time.
var _ Generator = (*RunwayService)(nil)

// NewRunwayService creates a Runway video adapter. baseURL overrides
// the production endpoint when non-empty (test servers).
func NewRunwayService(apiKey, baseURL string, uploader Uploader) *RunwayService {
	if baseURL == "" {
		baseURL = runwayDefaultBaseURL
	}
	return &RunwayService{
		apiKey:       apiKey,
		baseURL:      baseURL,
		uploader:     uploader,
		pollInterval: runwayPollInterval,
		client: &http.Client{
			Timeout: 30 * time.Second, // per HTTP call, not the full poll cycle
		},
	}
}

func (s *RunwayService) Name() string {
	return "runway"
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// runwayGenerationRequest is the body for POST /v1/text_to_video
type runwayGenerationRequest struct {
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Duration   int    `json:"duration,omitempty"`
	Ratio      string `json:"ratio,omitempty"`
}

// runwayGenerationResponse is the response from POST /v1/text_to_video
type runwayGenerationResponse struct {
	ID string `json:"id"`
}

// runwayTaskResult is the response from GET /v1/tasks/{id}.
// Status progresses PENDING → RUNNING → SUCCEEDED | FAILED.
type runwayTaskResult struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Failure string   `json:"failure,omitempty"`
	Output  []string `json:"output,omitempty"`
}

// Generate submits a text-to-video task, polls it to completion, then
// downloads the remote asset and re-uploads it to first-party storage
// so clients never depend on a short-lived third-party URL.
func (s *RunwayService) Generate(ctx context.Context, req Request) (*Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("runway api key not configured")
	}

	prompt := buildVideoPrompt(req.Title, req.Theme, req.Content)

	log.Info().Str("story_id", req.StoryID).Int("prompt_len", len(prompt)).
		Msg("runway: submitting video generation")

	taskID, err := s.submitGeneration(ctx, runwayGenerationRequest{
		PromptText: prompt,
		Model:      runwayModel,
		Duration:   runwayTargetDuration,
		Ratio:      runwayAspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit video generation: %w", err)
	}

	log.Info().Str("story_id", req.StoryID).Str("task_id", taskID).
		Msg("runway: generation submitted")

	result, err := s.pollForResult(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if len(result.Output) == 0 || result.Output[0] == "" {
		return nil, fmt.Errorf("runway task %s succeeded with no output URL", taskID)
	}

	videoBytes, err := s.downloadVideo(ctx, result.Output[0])
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	upload, err := s.uploader.UploadFile(ctx, videoBytes, "story_video.mp4", "video/mp4", req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated video: %w", err)
	}

	log.Info().Str("story_id", req.StoryID).Str("key", upload.Key).
		Int("bytes", len(videoBytes)).Msg("runway: video stored")

	return &Result{
		AssetRef:    upload.URL,
		DurationSec: runwayTargetDuration,
		Cost:        runwayCostPerSecond * float64(runwayTargetDuration),
	}, nil
}

// submitGeneration sends the initial generation request and returns the task id.
func (s *RunwayService) submitGeneration(ctx context.Context, reqBody runwayGenerationRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/text_to_video", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("runway returned status %d: %s", resp.StatusCode, string(body))
	}

	var genResp runwayGenerationResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse generation response: %w (body: %s)", err, string(body))
	}

	if genResp.ID == "" {
		return "", fmt.Errorf("no task id in generation response: %s", string(body))
	}

	return genResp.ID, nil
}

// pollForResult polls GET /v1/tasks/{id} every pollInterval until the
// task succeeds, fails, or the attempt budget runs out. Exhaustion and
// explicit remote failure surface as distinct errors so logs
// disambiguate cause.
func (s *RunwayService) pollForResult(ctx context.Context, taskID string) (*runwayTaskResult, error) {
	for attempt := 1; attempt <= runwayMaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(s.pollInterval):
		}

		result, err := s.getTaskResult(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll task (attempt %d): %w", attempt, err)
		}

		switch result.Status {
		case "SUCCEEDED":
			log.Info().Str("task_id", taskID).Int("polls", attempt).
				Msg("runway: task completed")
			return result, nil

		case "FAILED":
			failure := result.Failure
			if failure == "" {
				failure = "unknown error"
			}
			return nil, fmt.Errorf("runway video generation failed: %s (task_id=%s)", failure, taskID)

		default:
			// PENDING / RUNNING — keep polling
			log.Debug().Str("task_id", taskID).Int("poll", attempt).
				Str("status", result.Status).Msg("runway: still generating")
		}
	}

	return nil, fmt.Errorf("runway video generation timed out after %d polls (task_id=%s)", runwayMaxPollAttempts, taskID)
}

// getTaskResult fetches the current status of a generation task.
func (s *RunwayService) getTaskResult(ctx context.Context, taskID string) (*runwayTaskResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/v1/tasks/%s", s.baseURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runway returned status %d: %s", resp.StatusCode, string(body))
	}

	var result runwayTaskResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse task result: %w (body: %s)", err, string(body))
	}

	return &result, nil
}

// downloadVideo fetches the video bytes from the given URL.
func (s *RunwayService) downloadVideo(ctx context.Context, videoURL string) ([]byte, error) {
	// Use a longer timeout for video download (videos can be large)
	downloadClient := &http.Client{Timeout: 120 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video data: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	return data, nil
}
