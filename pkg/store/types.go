package store

import "time"

// DialogueTurn is one exchange in a session's conversation history.
type DialogueTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase,omitempty"`
}

// VoiceConfig holds the closed set of recognised voice-session parameters
// (§3). Unknown keys are rejected at the HTTP boundary before they ever
// reach this type.
type VoiceConfig struct {
	ConsultationType   string  `json:"consultation_type,omitempty"`
	VoiceGender        string  `json:"voice_gender,omitempty"`
	VoiceTone          string  `json:"voice_tone,omitempty"`
	Language           string  `json:"language,omitempty"`
	SpeechSpeed        float64 `json:"speech_speed,omitempty"`
	SilenceDurationMs  int     `json:"silence_duration_ms,omitempty"`
	LLMProvider        string  `json:"llm_provider,omitempty"`
	Verbosity          string  `json:"verbosity,omitempty"`
	CallDirection      string  `json:"call_direction,omitempty"`
}

// DocumentContext is the synthesized summary of a session's uploaded
// files (§4.9). Chunks are stripped before this is persisted.
type DocumentContext struct {
	Summary           string             `json:"summary"`
	KeyFacts          []string           `json:"key_facts"`
	ServicesMentioned []string           `json:"services_mentioned"`
	AllContacts       []string           `json:"all_contacts"`
	Documents         []DocumentDigest   `json:"documents"`
}

// DocumentDigest is a per-file summary retained in DocumentContext after
// its parsed chunks are discarded.
type DocumentDigest struct {
	Filename string `json:"filename"`
	Digest   string `json:"digest"`
}

// Session is the central entity (§3): a single consultation's complete
// persisted state.
type Session struct {
	SessionID        string           `json:"session_id"`
	RoomName         string           `json:"room_name"`
	UniqueLink       string           `json:"unique_link"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DialogueHistory  []DialogueTurn   `json:"dialogue_history"`
	AnketaData       map[string]any   `json:"anketa_data,omitempty"`
	AnketaMD         string           `json:"anketa_md,omitempty"`
	CompanyName      string           `json:"company_name,omitempty"`
	ContactName      string           `json:"contact_name,omitempty"`
	DurationSeconds  float64          `json:"duration_seconds"`
	OutputDir        string           `json:"output_dir,omitempty"`
	DocumentContext  *DocumentContext `json:"document_context,omitempty"`
	VoiceConfig      *VoiceConfig     `json:"voice_config,omitempty"`
}

// Summary is the lightweight projection returned by ListSessionsSummary
// (§4.1). It never carries DialogueHistory or AnketaData.
type Summary struct {
	SessionID     string    `json:"session_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CompanyName   string    `json:"company_name,omitempty"`
	ContactName   string    `json:"contact_name,omitempty"`
	HasDocuments  bool      `json:"has_documents"`
}
