package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Synchronous provider: each request returns audio bytes directly.
// Long stories are split into sentence-boundary chunks under the
// provider ceiling, synthesized sequentially, and concatenated.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsModel        = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB"
	elevenLabsOutputFormat = "mp3_44100_128"

	elevenLabsMaxChunkChars  = 4500
	elevenLabsCostPer1kChars = 0.30
)

// ElevenLabsService handles text-to-speech via the ElevenLabs API.
type ElevenLabsService struct {
	apiKey   string
	baseURL  string
	voiceID  string
	uploader Uploader
	client   *http.Client
}

var _ Generator = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs audio adapter. voiceID
// and baseURL fall back to defaults when empty.
func NewElevenLabsService(apiKey, voiceID, baseURL string, uploader Uploader) *ElevenLabsService {
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	return &ElevenLabsService{
		apiKey:   apiKey,
		baseURL:  baseURL,
		voiceID:  voiceID,
		uploader: uploader,
		client:   &http.Client{Timeout: 90 * time.Second},
	}
}

func (s *ElevenLabsService) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// Generate synthesizes narration for the whole story: strip markup,
// chunk under the provider ceiling, call once per chunk in order,
// concatenate the buffers, and upload the combined audio.
func (s *ElevenLabsService) Generate(ctx context.Context, req Request) (*Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not configured")
	}

	text := StripHTML(req.Content)
	if text == "" {
		return nil, fmt.Errorf("no narration text after stripping markup")
	}

	chunks := SplitIntoChunks(text, elevenLabsMaxChunkChars)

	log.Info().Str("story_id", req.StoryID).Int("chunks", len(chunks)).
		Int("text_len", len(text)).Msg("elevenlabs: generating speech")

	var combined bytes.Buffer
	var cost float64
	for i, chunk := range chunks {
		audio, err := s.synthesize(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		combined.Write(audio)
		cost += float64(utf8.RuneCountInString(chunk)) / 1000 * elevenLabsCostPer1kChars
	}

	upload, err := s.uploader.UploadFile(ctx, combined.Bytes(), "story_audio.mp3", "audio/mpeg", req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated audio: %w", err)
	}

	log.Info().Str("story_id", req.StoryID).Str("key", upload.Key).
		Int("bytes", combined.Len()).Msg("elevenlabs: audio stored")

	return &Result{
		AssetRef:    upload.URL,
		DurationSec: EstimateDurationSeconds(text),
		Cost:        cost,
	}, nil
}

// synthesize converts one chunk of text to speech.
func (s *ElevenLabsService) synthesize(ctx context.Context, text string) ([]byte, error) {
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60, // moderate — allows some emotional range
			SimilarityBoost: 0.80,
			Style:           0.35,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.baseURL, s.voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// The response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}

	return audioData, nil
}
