package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Service
// Second synchronous audio provider, equivalent to ElevenLabs behind
// the same Generator contract. Uses the official SDK's speech endpoint.
// ---------------------------------------------------------------------------

const (
	openAIMaxChunkChars  = 4096 // hard input limit of the speech endpoint
	openAICostPer1kChars = 0.015
)

// OpenAITTSService handles text-to-speech via OpenAI's audio API.
type OpenAITTSService struct {
	apiKey   string
	uploader Uploader
	client   *openai.Client
}

var _ Generator = (*OpenAITTSService)(nil)

func NewOpenAITTSService(apiKey string, uploader Uploader) *OpenAITTSService {
	return &OpenAITTSService{
		apiKey:   apiKey,
		uploader: uploader,
		client:   openai.NewClient(apiKey),
	}
}

func (s *OpenAITTSService) Name() string {
	return "openai"
}

// Generate mirrors the ElevenLabs adapter: strip, chunk, synthesize
// sequentially, concatenate in order, upload combined audio.
func (s *OpenAITTSService) Generate(ctx context.Context, req Request) (*Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}

	text := StripHTML(req.Content)
	if text == "" {
		return nil, fmt.Errorf("no narration text after stripping markup")
	}

	chunks := SplitIntoChunks(text, openAIMaxChunkChars)

	log.Info().Str("story_id", req.StoryID).Int("chunks", len(chunks)).
		Int("text_len", len(text)).Msg("openai: generating speech")

	var combined bytes.Buffer
	var cost float64
	for i, chunk := range chunks {
		audio, err := s.synthesize(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		combined.Write(audio)
		cost += float64(utf8.RuneCountInString(chunk)) / 1000 * openAICostPer1kChars
	}

	upload, err := s.uploader.UploadFile(ctx, combined.Bytes(), "story_audio.mp3", "audio/mpeg", req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated audio: %w", err)
	}

	log.Info().Str("story_id", req.StoryID).Str("key", upload.Key).
		Int("bytes", combined.Len()).Msg("openai: audio stored")

	return &Result{
		AssetRef:    upload.URL,
		DurationSec: EstimateDurationSeconds(text),
		Cost:        cost,
	}, nil
}

func (s *OpenAITTSService) synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.VoiceAlloy,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	return audioData, nil
}
