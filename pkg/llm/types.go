// Package llm wraps the external language-model providers the
// consultation pipeline depends on: a synchronous ChatLLM used by the
// extraction coordinator (§4.5, §6) and a realtime voice LLM session
// descriptor used by the voice-agent bridge (§4.7).
package llm

import "context"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn passed to a ChatLLM. It mirrors the minimal
// shape every provider in this package accepts, independent of any
// particular SDK's message representation.
type Message struct {
	Role    Role
	Content string
}

// ChatLLM is the collaborator the extraction coordinator (L5) calls to
// turn a dialogue transcript into anketa JSON (§6: "ChatLLM.chat(messages,
// temperature, max_tokens) -> string"). Implementations must be safe for
// concurrent use; the orchestrator may call Chat from multiple sessions
// at once.
type ChatLLM interface {
	// Chat sends messages to the model and returns its text response.
	// temperature and maxTokens are per-call overrides; zero values fall
	// back to the provider's configured defaults.
	Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// RealtimeVoiceConfig describes the tunables the voice-agent bridge
// passes when opening a realtime voice session (§4.7): turn
// detection sensitivity and conversational pacing.
type RealtimeVoiceConfig struct {
	Model              string
	Voice              string
	VADThreshold       float64
	PrefixPaddingMs    int
	SilenceDurationMs  int
	Instructions       string
	Temperature        float64
}

// RealtimeLLM is the collaborator the voice-agent bridge uses to
// describe and validate a realtime voice session before handing it to
// the room/agent-dispatch layer. It does not itself carry audio; the
// realtime audio path is owned by the voice-agent bridge's RoomConnector
// (pkg/voicebridge), which is configured from the value this interface
// returns.
type RealtimeLLM interface {
	// SessionConfig builds the provider-specific realtime session
	// configuration for the given voice config, applying provider
	// defaults for any zero-valued fields.
	SessionConfig(voice RealtimeVoiceConfig) RealtimeVoiceConfig

	// ValidateReachable performs a cheap round-trip (e.g. a models list
	// call) to confirm the configured API key and endpoint are usable
	// before a session is dispatched.
	ValidateReachable(ctx context.Context) error
}
