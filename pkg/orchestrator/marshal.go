package orchestrator

import (
	"encoding/json"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
)

// anketaToMap round-trips a typed Anketa through JSON into the
// map[string]any shape pkg/store persists as anketa_data (§6 schema).
func anketaToMap(a *anketa.Anketa) (map[string]any, error) {
	return toMap(a)
}

func interviewToMap(ia *anketa.InterviewAnketa) (map[string]any, error) {
	return toMap(ia)
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
