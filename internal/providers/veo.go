package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Uses the Google Gen AI SDK as an alternative remote video provider.
// Same deferred shape as Runway: start an async operation, poll until
// done, download, re-upload to first-party storage.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel    = "veo-3.1-generate-preview"
	veoPollInterval    = 5 * time.Second
	veoMaxPollAttempts = 60 // 5-minute ceiling

	veoTargetDuration = 8 // seconds Veo generates by default
	veoCostPerSecond  = 0.08
)

// VeoService generates companion videos via Google's Veo models.
type VeoService struct {
	apiKey       string
	model        string
	uploader     Uploader
	pollInterval time.Duration
}

var _ Generator = (*VeoService)(nil)

// NewVeoService creates a Veo video adapter.
// apiKey: the Gemini API key (same key works for both Gemini and Veo)
// model: the Veo model to use (empty string defaults to veo-3.1-generate-preview)
func NewVeoService(apiKey, model string, uploader Uploader) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoService{
		apiKey:       apiKey,
		model:        model,
		uploader:     uploader,
		pollInterval: veoPollInterval,
	}
}

func (s *VeoService) Name() string {
	return "veo"
}

// Generate starts a text-to-video operation and polls it to completion.
// This blocks the calling goroutine — intentional, each job runs in its
// own worker slot.
func (s *VeoService) Generate(ctx context.Context, req Request) (*Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("veo api key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	prompt := buildVideoPrompt(req.Title, req.Theme, req.Content)

	config := &genai.GenerateVideosConfig{
		AspectRatio:    "9:16",
		NumberOfVideos: 1,
	}

	log.Info().Str("story_id", req.StoryID).Str("model", s.model).
		Int("prompt_len", len(prompt)).Msg("veo: starting video generation")

	operation, err := client.Models.GenerateVideos(ctx, s.model, prompt, nil, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	// Poll until done, cancelled, or the attempt budget runs out
	pollCount := 0
	for !operation.Done {
		if pollCount >= veoMaxPollAttempts {
			return nil, fmt.Errorf("veo video generation timed out after %d polls (operation: %s)", pollCount, operation.Name)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(s.pollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Debug().Str("story_id", req.StoryID).Int("poll", pollCount).
			Bool("done", operation.Done).Msg("veo: still generating")
	}

	// Operation-level errors (invalid request, quota exceeded, safety block)
	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("veo video generation failed: %s", string(errJSON))
	}

	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("veo video generation failed: no videos in completed operation (polled %d times)", pollCount)
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("veo video generation failed: generated video object is nil")
	}

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	upload, err := s.uploader.UploadFile(ctx, videoBytes, "story_video.mp4", "video/mp4", req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated video: %w", err)
	}

	log.Info().Str("story_id", req.StoryID).Str("key", upload.Key).
		Int("bytes", len(videoBytes)).Int("polls", pollCount).Msg("veo: video stored")

	return &Result{
		AssetRef:    upload.URL,
		DurationSec: veoTargetDuration,
		Cost:        veoCostPerSecond * float64(veoTargetDuration),
	}, nil
}
