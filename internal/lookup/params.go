package lookup

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lookupcache/internal/event"
)

// valueSource produces one bind value from an event. It is either a
// template ("%{[host][ip]}") interpolated against the event, or a field
// reference ("[host][ip]") read verbatim.
type valueSource struct {
	raw      string
	template bool
}

func newValueSource(raw string) valueSource {
	return valueSource{raw: raw, template: event.IsTemplate(raw)}
}

// resolve returns the bind value, or an error describing why the event
// cannot supply one.
func (v valueSource) resolve(ev *event.Event) (any, error) {
	if v.template {
		out := ev.Sprintf(v.raw)
		if out == v.raw {
			return nil, fmt.Errorf("%s did not interpolate", v.raw)
		}
		return norm.NFC.String(out), nil
	}

	val, ok := ev.Get(v.raw)
	if !ok || val == nil {
		return nil, fmt.Errorf("%s is missing or null", v.raw)
	}
	switch x := val.(type) {
	case map[string]any:
		return nil, fmt.Errorf("%s is a hash", v.raw)
	case []any, []string:
		return nil, fmt.Errorf("%s is an array", v.raw)
	case event.Timestamp:
		return x.Time, nil
	default:
		return x, nil
	}
}

// convertColumn maps a store value to one an event can hold.
func convertColumn(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float32:
		return float64(x), true
	case []byte:
		return string(x), true
	case time.Time:
		return event.Timestamp{Time: x.UTC()}, true
	default:
		return nil, false
	}
}
