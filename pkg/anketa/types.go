// Package anketa implements the Anketa Post-Processor (L4): robust JSON
// repair, dialogue-marker cleaning, role-aware extraction, and the
// typed questionnaire schema these operations populate. All operations
// here are pure and side-effect-free (§4.4); persistence is the
// caller's responsibility.
package anketa

import "time"

// Priority is the urgency/importance tier used by AgentFunction and
// EscalationRule.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Urgency is the response-time tier for EscalationRule.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyHour      Urgency = "hour"
	UrgencyDay       Urgency = "day"
)

// DialogueRole distinguishes the two sides of a rendered sample
// dialogue exchange (distinct from the session's own {user,assistant}
// dialogue roles).
type DialogueRole string

const (
	DialogueRoleBot    DialogueRole = "bot"
	DialogueRoleClient DialogueRole = "client"
)

// AgentFunction describes one capability of the voice agent.
type AgentFunction struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// Integration describes a third-party system the voice agent should
// connect to.
type Integration struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Required bool   `json:"required"`
}

// FAQItem is one frequently-asked-question pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ObjectionHandler pairs a customer objection with the agent's rebuttal.
type ObjectionHandler struct {
	Objection string `json:"objection"`
	Response  string `json:"response"`
}

// DialogueExample is one turn of a sample scripted exchange used to
// illustrate the agent's tone.
type DialogueExample struct {
	Role    DialogueRole `json:"role"`
	Message string       `json:"message"`
	Intent  string       `json:"intent,omitempty"`
}

// EscalationRule describes when and how the agent should hand off to a
// human.
type EscalationRule struct {
	Trigger string  `json:"trigger"`
	Urgency Urgency `json:"urgency"`
	Action  string  `json:"action"`
}

// AIRecommendation is one AI-generated improvement suggestion.
type AIRecommendation struct {
	Recommendation string   `json:"recommendation"`
	Impact         string   `json:"impact"`
	Priority       Priority `json:"priority"`
	Effort         string   `json:"effort"`
}

// Anketa is the canonical structured questionnaire (§3). It is the
// extraction coordinator's (L5) output type and the export renderer's
// (L10) input type.
type Anketa struct {
	// Identity
	CompanyName    string `json:"company_name"`
	Industry       string `json:"industry"`
	Specialization string `json:"specialization"`
	Website        string `json:"website,omitempty"`

	// Contacts
	ContactName  string `json:"contact_name"`
	ContactRole  string `json:"contact_role"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Country      string `json:"country,omitempty"`
	Currency     string `json:"currency,omitempty"`

	// Business description
	BusinessDescription string   `json:"business_description"`
	Services            []string `json:"services"`
	ClientTypes         []string `json:"client_types"`
	CurrentProblems     []string `json:"current_problems"`
	BusinessGoals       []string `json:"business_goals"`
	Constraints         []string `json:"constraints"`

	// Voice agent block
	AgentName         string          `json:"agent_name"`
	AgentPurpose      string          `json:"agent_purpose"`
	AgentFunctions    []AgentFunction `json:"agent_functions"`
	TypicalQuestions  []string        `json:"typical_questions"`
	MainFunction      *AgentFunction  `json:"main_function,omitempty"`
	AdditionalFunctions []AgentFunction `json:"additional_functions"`

	// Voice parameters (with schema defaults, see CompletionRate)
	VoiceGender   string `json:"voice_gender"`
	VoiceTone     string `json:"voice_tone"`
	Language      string `json:"language"`
	CallDirection string `json:"call_direction"`

	// Integrations
	Integrations []Integration `json:"integrations"`

	// AI-enriched sections
	FAQ                []FAQItem          `json:"faq"`
	ObjectionHandlers  []ObjectionHandler `json:"objection_handlers"`
	SampleDialogue     []DialogueExample  `json:"sample_dialogue"`
	FinancialMetrics   map[string]string  `json:"financial_metrics,omitempty"`
	Competitors        []string           `json:"competitors"`
	MarketInsights     []string           `json:"market_insights"`
	EscalationRules    []EscalationRule   `json:"escalation_rules"`
	KPIs               []string           `json:"kpis"`
	LaunchChecklist    []string           `json:"launch_checklist"`
	Recommendations    []AIRecommendation `json:"recommendations"`

	// Metadata
	CreatedAt                    time.Time `json:"created_at"`
	ConsultationDurationSeconds  float64   `json:"consultation_duration_seconds"`
}

// InterviewQA is one question/answer pair of an interview-type
// consultation (supplemented feature, original_source/src/interview).
type InterviewQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InterviewAnketa is the alternate shape produced when
// consultation_type == "interview" (§4.5 routing). It shares identity
// and metadata fields with Anketa but is centred on Q&A pairs rather
// than a voice-agent specification.
type InterviewAnketa struct {
	CompanyName string        `json:"company_name"`
	ContactName string        `json:"contact_name"`
	QAPairs     []InterviewQA `json:"qa_pairs"`
	Insights    []string      `json:"insights"`
	Summary     string        `json:"summary"`

	CreatedAt                   time.Time `json:"created_at"`
	ConsultationDurationSeconds float64   `json:"consultation_duration_seconds"`
}

// schemaDefaults are the voice-parameter values the extraction
// coordinator fills in when the LLM omits them (§4.5). Completion rate
// excludes fields that still hold these defaults (§3).
var schemaDefaults = map[string]string{
	"voice_gender":   "female",
	"voice_tone":     "professional",
	"call_direction": "inbound",
}

// ApplyDefaults fills VoiceGender/VoiceTone/CallDirection with their
// schema defaults when empty, matching the extraction coordinator's
// behaviour (§4.5).
func (a *Anketa) ApplyDefaults() {
	if a.VoiceGender == "" {
		a.VoiceGender = schemaDefaults["voice_gender"]
	}
	if a.VoiceTone == "" {
		a.VoiceTone = schemaDefaults["voice_tone"]
	}
	if a.CallDirection == "" {
		a.CallDirection = schemaDefaults["call_direction"]
	}
}
