package services

import "encoding/json"

func jsonBytes(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeAnswers(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
