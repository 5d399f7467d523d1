package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Timestamp is a time value stored in an event field. Lookup parameters
// normalize it to a plain time.Time.
type Timestamp struct {
	time.Time
}

// MarshalJSON encodes the timestamp as RFC 3339 in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t Timestamp) String() string {
	return t.UTC().Format(time.RFC3339Nano)
}

var templateRef = regexp.MustCompile(`%\{([^}]+)\}`)

// IsTemplate reports whether s contains a %{...} field interpolation.
func IsTemplate(s string) bool {
	return templateRef.MatchString(s)
}

// Sprintf interpolates %{ref} placeholders with the event's field values.
// A placeholder whose field is missing or null is left as is.
func (e *Event) Sprintf(format string) string {
	return templateRef.ReplaceAllStringFunc(format, func(match string) string {
		ref := match[2 : len(match)-1]
		v, ok := e.Get(ref)
		if !ok || v == nil {
			return match
		}
		return formatValue(v)
	})
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case Timestamp:
		return val.String()
	case time.Time:
		return Timestamp{Time: val}.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// DeepCopy copies maps and slices recursively so the copy shares no mutable
// state with v. Scalars are returned as is.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = DeepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = DeepCopy(inner)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = DeepCopy(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}
