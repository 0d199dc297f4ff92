package store

import (
	"encoding/json"
	"strconv"

	"github.com/yourorg/timetrack/internal/domain"
)

// Match reports whether a JSON document satisfies an exact-match
// filter. Matching happens in-process so every backend applies
// identical semantics. Numbers and booleans are compared against the
// filter's string form.
func Match(doc []byte, filter domain.Filter) bool {
	if len(filter) == 0 {
		return true
	}

	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false
	}

	for field, want := range filter {
		got, ok := fields[field]
		if !ok {
			// Missing field only matches the zero forms
			if want == "" || want == "false" || want == "0" {
				continue
			}
			return false
		}
		if stringify(got) != want {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
