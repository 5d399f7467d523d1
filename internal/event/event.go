// Package event is the minimal record model enriched by lookups.
//
// An Event is a tree of JSON-like values. Fields are addressed with
// references of the form "[response][ip]" for nested fields or a bare name
// such as "ip" for a top-level field. Tags live in the "tags" field as an
// array of strings.
//
// Events are not safe for concurrent mutation; each in-flight event is owned
// by the goroutine enriching it.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TagsField holds the event's tags.
const TagsField = "tags"

// TimestampField holds the event's timestamp when present.
const TimestampField = "@timestamp"

// Event is a single record flowing through the enrichment pipeline.
type Event struct {
	fields map[string]any
}

// New creates an event from a field map. The map is deep copied.
func New(fields map[string]any) *Event {
	if fields == nil {
		return &Event{fields: map[string]any{}}
	}
	return &Event{fields: DeepCopy(fields).(map[string]any)}
}

// Get returns the value at ref and whether it exists.
func (e *Event) Get(ref string) (any, bool) {
	path := ParseRef(ref)
	if len(path) == 0 {
		return nil, false
	}
	var cur any = e.fields
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at ref, creating intermediate maps as needed. It fails if
// an intermediate segment exists and is not a map.
func (e *Event) Set(ref string, value any) error {
	path := ParseRef(ref)
	if len(path) == 0 {
		return fmt.Errorf("invalid field reference %q", ref)
	}
	cur := e.fields
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			child := map[string]any{}
			cur[key] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("field reference %q: %q is not an object", ref, key)
		}
		cur = child
	}
	cur[path[len(path)-1]] = value
	return nil
}

// Remove deletes the value at ref, if present.
func (e *Event) Remove(ref string) {
	path := ParseRef(ref)
	if len(path) == 0 {
		return
	}
	cur := e.fields
	for _, key := range path[:len(path)-1] {
		child, ok := cur[key].(map[string]any)
		if !ok {
			return
		}
		cur = child
	}
	delete(cur, path[len(path)-1])
}

// Tag appends tag to the event's tags unless already present.
func (e *Event) Tag(tag string) {
	for _, t := range e.Tags() {
		if t == tag {
			return
		}
	}
	var tags []any
	switch v := e.fields[TagsField].(type) {
	case []any:
		tags = v
	case []string:
		for _, s := range v {
			tags = append(tags, s)
		}
	case string:
		tags = []any{v}
	}
	e.fields[TagsField] = append(tags, tag)
}

// Tags returns the event's tags in insertion order.
func (e *Event) Tags() []string {
	var out []string
	switch v := e.fields[TagsField].(type) {
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		out = append(out, v)
	}
	return out
}

// HasTag reports whether the event carries tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

// Fields returns a deep copy of the event's fields.
func (e *Event) Fields() map[string]any {
	return DeepCopy(e.fields).(map[string]any)
}

// MarshalJSON encodes the event's fields.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields)
}

// UnmarshalJSON decodes an object into the event. Numbers keep their
// integer form where possible and "@timestamp" strings become Timestamps.
func (e *Event) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	normalized := normalizeNumbers(fields).(map[string]any)
	if s, ok := normalized[TimestampField].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			normalized[TimestampField] = Timestamp{Time: ts}
		}
	}
	e.fields = normalized
	return nil
}

// ParseRef splits a field reference into its path segments.
// "[a][b]" yields [a b]; a bare "a" yields [a].
func ParseRef(ref string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if !strings.HasPrefix(ref, "[") || !strings.HasSuffix(ref, "]") {
		return []string{ref}
	}
	inner := ref[1 : len(ref)-1]
	parts := strings.Split(inner, "][")
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	return parts
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeNumbers(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalizeNumbers(inner)
		}
		return val
	default:
		return v
	}
}
