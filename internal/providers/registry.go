package providers

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/storycove/mediagen/internal/config"
	"github.com/storycove/mediagen/internal/models"
)

// Registry resolves the configured provider name to a concrete
// adapter, one active adapter per media type, memoized for the
// process lifetime. A missing credential logs a warning and falls
// back to the placeholder — availability over strictness.
type Registry struct {
	cfg      *config.Config
	uploader Uploader

	mu    sync.Mutex
	video Generator
	audio Generator
}

func NewRegistry(cfg *config.Config, uploader Uploader) *Registry {
	return &Registry{
		cfg:      cfg,
		uploader: uploader,
	}
}

// Provider returns the active adapter for the given media type.
func (r *Registry) Provider(mediaType models.MediaType) Generator {
	if mediaType == models.MediaTypeVideo {
		return r.Video()
	}
	return r.Audio()
}

// Video returns the memoized video adapter, constructing it on first use.
func (r *Registry) Video() Generator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.video == nil {
		r.video = r.buildVideo()
	}
	return r.video
}

// Audio returns the memoized audio adapter, constructing it on first use.
func (r *Registry) Audio() Generator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.audio == nil {
		r.audio = r.buildAudio()
	}
	return r.audio
}

// Reset clears the memoized adapters so the next resolution re-reads
// configuration. Used for test isolation and credential-change pickup.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video = nil
	r.audio = nil
}

func (r *Registry) buildVideo() Generator {
	switch r.cfg.VideoProvider {
	case "runway":
		if r.cfg.RunwayAPIKey == "" {
			log.Warn().Msg("RUNWAY_API_KEY not set, falling back to placeholder video provider")
			return NewPlaceholderVideoService()
		}
		return NewRunwayService(r.cfg.RunwayAPIKey, "", r.uploader)

	case "veo":
		if r.cfg.GeminiKey == "" {
			log.Warn().Msg("GEMINI_API_KEY not set, falling back to placeholder video provider")
			return NewPlaceholderVideoService()
		}
		return NewVeoService(r.cfg.GeminiKey, r.cfg.VeoModel, r.uploader)

	case "placeholder":
		return NewPlaceholderVideoService()

	default:
		log.Warn().Str("provider", r.cfg.VideoProvider).
			Msg("unknown video provider, falling back to placeholder")
		return NewPlaceholderVideoService()
	}
}

func (r *Registry) buildAudio() Generator {
	switch r.cfg.AudioProvider {
	case "elevenlabs":
		if r.cfg.ElevenLabsKey == "" {
			log.Warn().Msg("ELEVENLABS_API_KEY not set, falling back to placeholder audio provider")
			return NewPlaceholderAudioService()
		}
		return NewElevenLabsService(r.cfg.ElevenLabsKey, r.cfg.ElevenLabsVoiceID, "", r.uploader)

	case "openai":
		if r.cfg.OpenAIKey == "" {
			log.Warn().Msg("OPENAI_API_KEY not set, falling back to placeholder audio provider")
			return NewPlaceholderAudioService()
		}
		return NewOpenAITTSService(r.cfg.OpenAIKey, r.uploader)

	case "placeholder":
		return NewPlaceholderAudioService()

	default:
		log.Warn().Str("provider", r.cfg.AudioProvider).
			Msg("unknown audio provider, falling back to placeholder")
		return NewPlaceholderAudioService()
	}
}
