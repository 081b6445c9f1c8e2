package llm

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultRealtimeModel is the voice model used when a session does
	// not request a specific one.
	DefaultRealtimeModel = "gpt-4o-realtime-preview"
	// DefaultVoice is the synthesized voice when voice_config carries no
	// preference (§4.1, schema default voice_gender="female").
	DefaultVoice = "alloy"
	// DefaultVADThreshold is the server-side voice-activity-detection
	// sensitivity; higher values require louder speech to count as a
	// turn (§4.7).
	DefaultVADThreshold = 0.6
	// DefaultPrefixPaddingMs is how much audio before the detected
	// speech onset is included in the turn.
	DefaultPrefixPaddingMs = 300
	// DefaultSilenceDurationMs is how long the caller must be silent
	// before the turn is considered complete; overridden by
	// voice_config.silence_duration_ms when set (§4.7).
	DefaultSilenceDurationMs = 1200
)

// OpenAIRealtimeConfig configures OpenAIRealtimeLLM.
type OpenAIRealtimeConfig struct {
	APIKey string
	Model  string
}

// OpenAIRealtimeLLM implements RealtimeLLM on top of the go-openai
// client. It does not carry realtime audio itself; the voice-agent
// bridge (pkg/voicebridge) hands the session configuration this type
// produces to its RoomConnector, which owns the audio path.
type OpenAIRealtimeLLM struct {
	client *openai.Client
	model  string
}

// NewOpenAIRealtimeLLM builds a RealtimeLLM backed by the OpenAI API.
func NewOpenAIRealtimeLLM(cfg OpenAIRealtimeConfig) (*OpenAIRealtimeLLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRealtimeModel
	}
	client := openai.NewClient(cfg.APIKey)
	return &OpenAIRealtimeLLM{client: client, model: cfg.Model}, nil
}

// OpenAIRealtimeLLMFromEnv reads OPENAI_API_KEY and OPENAI_REALTIME_MODEL.
func OpenAIRealtimeLLMFromEnv() (*OpenAIRealtimeLLM, error) {
	return NewOpenAIRealtimeLLM(OpenAIRealtimeConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  os.Getenv("OPENAI_REALTIME_MODEL"),
	})
}

// SessionConfig fills in provider defaults for any zero-valued fields
// of voice, leaving caller-supplied overrides (from session voice_config)
// untouched.
func (r *OpenAIRealtimeLLM) SessionConfig(voice RealtimeVoiceConfig) RealtimeVoiceConfig {
	if voice.Model == "" {
		voice.Model = r.model
	}
	if voice.Voice == "" {
		voice.Voice = DefaultVoice
	}
	if voice.VADThreshold == 0 {
		voice.VADThreshold = DefaultVADThreshold
	}
	if voice.PrefixPaddingMs == 0 {
		voice.PrefixPaddingMs = DefaultPrefixPaddingMs
	}
	if voice.SilenceDurationMs == 0 {
		voice.SilenceDurationMs = DefaultSilenceDurationMs
	}
	return voice
}

// ValidateReachable performs a cheap models-list call to confirm the
// configured API key is usable before a voice session is dispatched.
func (r *OpenAIRealtimeLLM) ValidateReachable(ctx context.Context) error {
	_, err := r.client.ListModels(ctx)
	return err
}

var _ RealtimeLLM = (*OpenAIRealtimeLLM)(nil)
