package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scopeworks/intake/internal/model"
)

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or surrounding prose. Analyzer responses are
// untrusted free text expected to contain JSON somewhere.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// firstJSONObject scans for the first balanced JSON object substring. Used
// as a second recovery attempt when cleanJSON's first-to-last-brace slice
// still fails to parse (e.g. prose containing stray braces after the JSON).
func firstJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// parseFindings decodes analyzer response text into Findings, accepting both
// camelCase and snake_case keys and tolerating wrong value shapes. Returns a
// ParseError if no JSON object can be recovered from the text.
func parseFindings(text string) (model.Findings, error) {
	raw := map[string]any{}
	cleaned := cleanJSON(text)

	err := json.Unmarshal([]byte(cleaned), &raw)
	if err != nil {
		if obj := firstJSONObject(text); obj != "" {
			err = json.Unmarshal([]byte(obj), &raw)
		}
	}
	if err != nil {
		return model.Findings{}, model.NewParseError(text, err)
	}

	f := model.Findings{
		ProjectType:           strings.ToLower(pickString(raw, "projectType", "project_type", "type")),
		ProjectSubtype:        strings.ToLower(pickString(raw, "projectSubtype", "project_subtype", "subtype")),
		Dimensions:            pickDimensions(raw, "dimensions"),
		Materials:             pickStrings(raw, "materials"),
		Conditions:            pickStrings(raw, "conditions"),
		SpecialConsiderations: pickStrings(raw, "specialConsiderations", "special_considerations"),
	}
	if v, ok := raw["demolitionNeeded"].(bool); ok {
		f.DemolitionNeeded = v
	} else if v, ok := raw["demolition_needed"].(bool); ok {
		f.DemolitionNeeded = v
	}
	return f, nil
}

func pickString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pickStrings(raw map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if strings.TrimSpace(v) != "" {
				return []string{strings.TrimSpace(v)}
			}
		}
	}
	return nil
}

func pickDimensions(raw map[string]any, key string) map[string]string {
	obj, ok := raw[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[strings.ToLower(k)] = val
		case float64:
			out[strings.ToLower(k)] = trimFloat(val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
