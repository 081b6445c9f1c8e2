package anketa

import "encoding/json"

// FromMap round-trips the opaque anketa_data shape persisted by the
// store back into a typed Anketa, the inverse of the extraction
// coordinator's marshal step. Used wherever a caller (e.g. the HTTP
// surface) needs CompletionRate() over a persisted record without
// re-running extraction.
func FromMap(data map[string]any) (*Anketa, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var a Anketa
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// requiredFields is the fixed 15-field required set completion rate is
// computed over (§3). Three of them (voice_gender, voice_tone,
// call_direction) carry schema defaults and are excluded from both
// numerator and denominator while they remain at their default value.
var requiredFields = []string{
	"company_name",
	"industry",
	"business_description",
	"contact_name",
	"contact_phone",
	"website",
	"services",
	"agent_name",
	"agent_purpose",
	"language",
	"main_function",
	"integrations",
	"voice_gender",
	"voice_tone",
	"call_direction",
}

func (a *Anketa) fieldValue(name string) (value string, isDefaultable bool) {
	switch name {
	case "company_name":
		return a.CompanyName, false
	case "industry":
		return a.Industry, false
	case "business_description":
		return a.BusinessDescription, false
	case "contact_name":
		return a.ContactName, false
	case "contact_phone":
		return a.ContactPhone, false
	case "website":
		return a.Website, false
	case "services":
		return nonEmptyListMarker(len(a.Services) > 0), false
	case "agent_name":
		return a.AgentName, false
	case "agent_purpose":
		return a.AgentPurpose, false
	case "language":
		return a.Language, false
	case "main_function":
		return nonEmptyListMarker(a.MainFunction != nil && a.MainFunction.Name != ""), false
	case "integrations":
		return nonEmptyListMarker(len(a.Integrations) > 0), false
	case "voice_gender":
		return a.VoiceGender, true
	case "voice_tone":
		return a.VoiceTone, true
	case "call_direction":
		return a.CallDirection, true
	default:
		return "", false
	}
}

func nonEmptyListMarker(nonEmpty bool) string {
	if nonEmpty {
		return "x"
	}
	return ""
}

// CompletionRate computes the fraction of requiredFields that are
// "filled": non-empty and, for the three defaultable fields, not equal
// to their schema default. Defaulted fields are excluded from both
// numerator and denominator (§3, §8 property 5, §8 scenario S6).
func (a *Anketa) CompletionRate() float64 {
	filled := 0
	defaultedCount := 0

	for _, name := range requiredFields {
		value, isDefaultable := a.fieldValue(name)
		if isDefaultable && value == schemaDefaults[name] {
			defaultedCount++
			continue
		}
		if value != "" {
			filled++
		}
	}

	denom := len(requiredFields) - defaultedCount
	if denom <= 0 {
		return 1.0
	}
	return float64(filled) / float64(denom)
}
