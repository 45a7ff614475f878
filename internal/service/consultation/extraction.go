package consultation

import (
	"encoding/json"
	"strings"
)

// Extraction is the tagged result of reading structured fields out of free
// model text. Degraded is set when no JSON object could be decoded; Fields
// then holds the fallback shape.
type Extraction struct {
	Fields   map[string]interface{}
	Degraded bool
	Raw      string
}

// ParseExtraction decodes the span from the first '{' to the last '}' of raw.
// It never fails.
func ParseExtraction(raw string) Extraction {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err == nil && fields != nil {
			return Extraction{Fields: fields, Raw: raw}
		}
	}
	return Extraction{Fields: degradedFields(raw), Degraded: true, Raw: raw}
}

func degradedFields(raw string) map[string]interface{} {
	return map[string]interface{}{
		"summary_text": raw,
		"symptoms":     []interface{}{},
		"notes":        "unparsed",
	}
}

// SummaryText prefers the extracted summary_text and falls back to the raw output.
func (e Extraction) SummaryText() string {
	if v, ok := e.Fields["summary_text"].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return e.Raw
}
