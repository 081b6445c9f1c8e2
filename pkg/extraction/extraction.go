// Package extraction implements the L5 Extraction Coordinator: it
// prompts a chat LLM to turn a dialogue transcript into a canonical
// anketa and post-processes the response through pkg/anketa (§4.5).
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
	"github.com/codeready-toolchain/anketa/pkg/llm"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

const (
	// maxDialogueTurns is how much of the transcript is fed to the
	// extraction prompt, trimmed from the front to keep the most recent
	// context (§4.5).
	maxDialogueTurns = 50
	// extractionTemperature keeps the model close to deterministic so
	// repeated extractions on the same dialogue converge (§4.5).
	extractionTemperature = 0.1
	extractionMaxTokens   = 4096
)

// Coordinator extracts a canonical anketa from a consultation dialogue.
type Coordinator struct {
	llm llm.ChatLLM
	log *slog.Logger
}

// New builds a Coordinator around the given chat LLM collaborator.
func New(chat llm.ChatLLM) *Coordinator {
	return &Coordinator{llm: chat, log: slog.With("component", "extraction.coordinator")}
}

// Input bundles everything Extract needs beyond the dialogue itself.
type Input struct {
	Dialogue          []store.DialogueTurn
	DurationSeconds   float64
	DocumentContext   *store.DocumentContext
	ConsultationType  string
	PriorAnketa       *anketa.Anketa
}

// Result is the outcome of one extraction pass: exactly one of Anketa
// or Interview is populated, depending on ConsultationType routing.
type Result struct {
	Anketa    *anketa.Anketa
	Interview *anketa.InterviewAnketa
}

// Extract builds a prompt from the dialogue (and, when present, the
// document context and a detected phone number's country/currency
// hint), calls the LLM at low temperature, and maps its JSON response
// into the typed anketa schema. On any LLM or parse failure it returns
// a fallback anketa built from the prior anketa and the dialogue alone
// — extraction never returns an error to the caller (§4.5).
func (c *Coordinator) Extract(ctx context.Context, in Input) Result {
	if strings.EqualFold(in.ConsultationType, "interview") {
		return Result{Interview: c.extractInterview(ctx, in)}
	}

	if c.llm == nil {
		c.log.Warn("no extraction LLM configured, using fallback")
		return Result{Anketa: c.fallbackAnketa(in)}
	}

	turns := toTurns(in.Dialogue)
	prompt := c.buildPrompt(in, turns)

	response, err := c.llm.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, extractionTemperature, extractionMaxTokens)
	if err != nil {
		c.log.Warn("anketa extraction call failed, using fallback", "error", err)
		return Result{Anketa: c.fallbackAnketa(in)}
	}

	data, err := anketa.RepairJSON(response)
	if err != nil {
		c.log.Warn("anketa extraction response was not recoverable JSON, using fallback", "error", err)
		return Result{Anketa: c.fallbackAnketa(in)}
	}

	result := c.buildAnketa(data, in, turns)
	c.log.Info("anketa extracted", "company", result.CompanyName, "completion_rate", result.CompletionRate())
	return Result{Anketa: result}
}

// extractInterview handles the consultation_type=="interview" route: a
// distinct prompt centred on Q&A pairs rather than a voice-agent spec,
// skipping industry-knowledge enrichment and research entirely (§4.5,
// §4.6).
func (c *Coordinator) extractInterview(ctx context.Context, in Input) *anketa.InterviewAnketa {
	turns := toTurns(in.Dialogue)

	if c.llm == nil {
		c.log.Warn("no extraction LLM configured, using fallback")
		return c.fallbackInterview(in, turns)
	}

	prompt := c.buildInterviewPrompt(turns)

	response, err := c.llm.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, extractionTemperature, extractionMaxTokens)
	if err != nil {
		c.log.Warn("interview extraction call failed, using fallback", "error", err)
		return c.fallbackInterview(in, turns)
	}

	data, err := anketa.RepairJSON(response)
	if err != nil {
		c.log.Warn("interview extraction response was not recoverable JSON, using fallback", "error", err)
		return c.fallbackInterview(in, turns)
	}

	out := &anketa.InterviewAnketa{
		CompanyName:                 stringField(data, "company_name"),
		ContactName:                 anketa.CleanField(stringField(data, "contact_name")),
		Summary:                     stringField(data, "summary"),
		Insights:                    anketa.CleanStringList(stringListField(data, "insights")),
		QAPairs:                     qaPairList(data, "qa_pairs"),
		CreatedAt:                   time.Now(),
		ConsultationDurationSeconds: in.DurationSeconds,
	}
	if out.CompanyName == "" {
		if ext := anketa.ExtractCompanyName(turns); ext.Value != "" {
			out.CompanyName = ext.Value
		}
	}
	return out
}

func (c *Coordinator) buildInterviewPrompt(turns []anketa.Turn) string {
	var b strings.Builder
	b.WriteString("You are an expert at summarizing structured interviews.\n\n")
	b.WriteString("TASK: turn the dialogue below into question/answer pairs, a short list of\n")
	b.WriteString("insights, and a one-paragraph summary. Return ONLY valid JSON of the shape:\n\n")
	b.WriteString(`{"company_name": "string", "contact_name": "string", "qa_pairs": [{"question": "string", "answer": "string"}], "insights": ["string"], "summary": "string"}`)
	b.WriteString("\n\n---\n\nDIALOGUE:\n")

	start := 0
	if len(turns) > maxDialogueTurns {
		start = len(turns) - maxDialogueTurns
	}
	for _, t := range turns[start:] {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(t.Role), t.Content)
	}
	b.WriteString("\n---\n\nReturn ONLY the JSON:")
	return b.String()
}

func (c *Coordinator) fallbackInterview(in Input, turns []anketa.Turn) *anketa.InterviewAnketa {
	out := &anketa.InterviewAnketa{
		CreatedAt:                   time.Now(),
		ConsultationDurationSeconds: in.DurationSeconds,
	}
	if ext := anketa.ExtractCompanyName(turns); ext.Value != "" {
		out.CompanyName = ext.Value
	}
	return out
}

func qaPairList(data map[string]any, key string) []anketa.InterviewQA {
	v, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]anketa.InterviewQA, 0, len(v))
	for _, item := range v {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, anketa.InterviewQA{
			Question: stringField(m, "question"),
			Answer:   anketa.CleanField(stringField(m, "answer")),
		})
	}
	return out
}

func (c *Coordinator) buildPrompt(in Input, turns []anketa.Turn) string {
	var b strings.Builder
	b.WriteString("You are an expert at extracting structured data from consultation dialogues.\n\n")
	b.WriteString("TASK: extract all data from the consultation dialogue into a structured JSON object.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Extract CONCRETE values, do not copy whole dialogue phrases verbatim.\n")
	b.WriteString("2. Use short, clear bullet points for lists.\n")
	b.WriteString("3. Leave a field empty (string or list) if it is not explicitly mentioned.\n")
	b.WriteString("4. Field names must match the schema exactly.\n")
	b.WriteString("5. Return ONLY valid JSON, no commentary.\n\n---\n\nDIALOGUE:\n")

	start := 0
	if len(turns) > maxDialogueTurns {
		start = len(turns) - maxDialogueTurns
	}
	for _, t := range turns[start:] {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(t.Role), t.Content)
	}

	if in.DocumentContext != nil && in.DocumentContext.Summary != "" {
		b.WriteString("\n---\n\nUPLOADED DOCUMENT SUMMARY:\n")
		b.WriteString(in.DocumentContext.Summary)
		b.WriteString("\n")
	}

	if phone := anketa.ExtractPhone(turns); phone.Value != "" {
		if country, currency, ok := anketa.DetectCountryCurrency(phone.Value); ok {
			fmt.Fprintf(&b, "\n---\n\nDETECTED REGION HINT: phone number suggests %s (%s).\n", country, currency)
		}
	}

	b.WriteString("\n---\n\nJSON SCHEMA (fill every field):\n\n")
	b.WriteString(anketaSchemaDescription)
	b.WriteString("\nReturn ONLY the JSON:")
	return b.String()
}

func (c *Coordinator) buildAnketa(data map[string]any, in Input, turns []anketa.Turn) *anketa.Anketa {
	a := &anketa.Anketa{
		CompanyName:         stringField(data, "company_name"),
		Industry:            stringField(data, "industry"),
		Specialization:      stringField(data, "specialization"),
		Website:             stringField(data, "website"),
		ContactName:         stringField(data, "contact_name"),
		ContactRole:         stringField(data, "contact_role"),
		BusinessDescription: stringField(data, "business_description"),
		Services:            anketa.CleanStringList(stringListField(data, "services")),
		ClientTypes:         anketa.CleanStringList(stringListField(data, "client_types")),
		CurrentProblems:     anketa.CleanStringList(stringListField(data, "current_problems")),
		BusinessGoals:       anketa.CleanStringList(stringListField(data, "business_goals")),
		Constraints:         anketa.CleanStringList(stringListField(data, "constraints")),
		AgentName:           stringField(data, "agent_name"),
		AgentPurpose:        stringField(data, "agent_purpose"),
		AgentFunctions:      agentFunctionList(data, "agent_functions"),
		TypicalQuestions:    anketa.CleanStringList(stringListField(data, "typical_questions")),
		VoiceGender:         stringField(data, "voice_gender"),
		VoiceTone:           stringField(data, "voice_tone"),
		Language:            stringField(data, "language"),
		CallDirection:       stringField(data, "call_direction"),
		Integrations:        integrationList(data, "integrations"),
		MainFunction:        agentFunctionSingle(data, "main_function"),
		AdditionalFunctions: agentFunctionList(data, "additional_functions"),
		CreatedAt:                     time.Now(),
		ConsultationDurationSeconds:   in.DurationSeconds,
	}
	a.ContactName = anketa.CleanField(a.ContactName)
	a.CompanyName = anketa.CleanField(a.CompanyName)
	a.BusinessDescription = anketa.CleanField(a.BusinessDescription)

	if a.ContactPhone == "" {
		if ext := anketa.ExtractPhone(turns); ext.Value != "" {
			a.ContactPhone = ext.Value
		}
	}
	if a.CompanyName == "" {
		if ext := anketa.ExtractCompanyName(turns); ext.Value != "" {
			a.CompanyName = ext.Value
		}
	}
	if a.ContactPhone != "" {
		if country, currency, ok := anketa.DetectCountryCurrency(a.ContactPhone); ok {
			a.Country = country
			a.Currency = currency
		}
	}

	a.ApplyDefaults()
	return a
}

// fallbackAnketa builds a minimal but valid anketa from whatever is
// already known, used whenever the LLM call or its JSON response
// cannot be trusted (§4.5).
func (c *Coordinator) fallbackAnketa(in Input) *anketa.Anketa {
	a := &anketa.Anketa{
		CreatedAt:                   time.Now(),
		ConsultationDurationSeconds: in.DurationSeconds,
	}
	if in.PriorAnketa != nil {
		a.CompanyName = in.PriorAnketa.CompanyName
		a.Industry = in.PriorAnketa.Industry
		a.MainFunction = in.PriorAnketa.MainFunction
		a.AdditionalFunctions = in.PriorAnketa.AdditionalFunctions
	}
	turns := toTurns(in.Dialogue)
	if a.CompanyName == "" {
		if ext := anketa.ExtractCompanyName(turns); ext.Value != "" {
			a.CompanyName = ext.Value
		}
	}
	if ext := anketa.ExtractPhone(turns); ext.Value != "" {
		a.ContactPhone = ext.Value
	}
	a.ApplyDefaults()
	return a
}

func toTurns(dialogue []store.DialogueTurn) []anketa.Turn {
	turns := make([]anketa.Turn, len(dialogue))
	for i, d := range dialogue {
		turns[i] = anketa.Turn{Role: d.Role, Content: d.Content}
	}
	return turns
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringListField(data map[string]any, key string) []string {
	v, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func agentFunctionSingle(data map[string]any, key string) *anketa.AgentFunction {
	m, ok := data[key].(map[string]any)
	if !ok {
		return nil
	}
	return &anketa.AgentFunction{
		Name:        stringField(m, "name"),
		Description: stringField(m, "description"),
		Priority:    anketa.Priority(orDefault(stringField(m, "priority"), "high")),
	}
}

func agentFunctionList(data map[string]any, key string) []anketa.AgentFunction {
	v, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]anketa.AgentFunction, 0, len(v))
	for _, item := range v {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, anketa.AgentFunction{
			Name:        stringField(m, "name"),
			Description: stringField(m, "description"),
			Priority:    anketa.Priority(orDefault(stringField(m, "priority"), "medium")),
		})
	}
	return out
}

func integrationList(data map[string]any, key string) []anketa.Integration {
	v, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]anketa.Integration, 0, len(v))
	for _, item := range v {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		required := true
		if r, ok := m["required"].(bool); ok {
			required = r
		}
		out = append(out, anketa.Integration{
			Name:     stringField(m, "name"),
			Purpose:  stringField(m, "purpose"),
			Required: required,
		})
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// anketaSchemaDescription is embedded verbatim in every extraction
// prompt so the model always sees the exact field names it must use.
const anketaSchemaDescription = `{
  "company_name": "string",
  "industry": "string",
  "specialization": "string",
  "website": "string or empty",
  "contact_name": "string",
  "contact_role": "string",
  "business_description": "1-2 sentence summary",
  "services": ["string"],
  "client_types": ["string"],
  "current_problems": ["string"],
  "business_goals": ["string"],
  "constraints": ["string"],
  "agent_name": "string",
  "agent_purpose": "1-2 sentence summary",
  "agent_functions": [{"name": "string", "description": "string", "priority": "high|medium|low"}],
  "typical_questions": ["string"],
  "voice_gender": "female|male",
  "voice_tone": "professional|friendly|calm|...",
  "language": "ISO 639-1 code",
  "call_direction": "inbound|outbound|both",
  "integrations": [{"name": "string", "purpose": "string", "required": true}],
  "main_function": {"name": "string", "description": "string", "priority": "high"},
  "additional_functions": [{"name": "string", "description": "string", "priority": "medium"}]
}`
