package detect

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TechStack is the normalized array-of-strings representation of a
// repository's technology stack. Older detector payloads delivered a
// single string where newer ones deliver a list; this type absorbs both
// shapes at the boundary so consumers never re-check.
type TechStack []string

// UnmarshalJSON accepts either a JSON string or a JSON array of strings.
func (t *TechStack) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = normalizeStack(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			*t = TechStack{}
			return nil
		}
		*t = normalizeStack([]string{single})
		return nil
	}
	return fmt.Errorf("tech stack must be a string or an array of strings")
}

// MarshalJSON always emits the array form.
func (t TechStack) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// Contains reports whether the stack lists name, case-insensitively.
func (t TechStack) Contains(name string) bool {
	for _, s := range t {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// NormalizeTechStack converts a raw detector value (string or []string) to
// the canonical array form, dropping blanks and duplicates.
func NormalizeTechStack(raw any) TechStack {
	switch v := raw.(type) {
	case nil:
		return TechStack{}
	case string:
		if strings.TrimSpace(v) == "" {
			return TechStack{}
		}
		return normalizeStack([]string{v})
	case []string:
		return normalizeStack(v)
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return normalizeStack(list)
	default:
		return TechStack{}
	}
}

func normalizeStack(list []string) TechStack {
	seen := make(map[string]struct{}, len(list))
	out := make(TechStack, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
