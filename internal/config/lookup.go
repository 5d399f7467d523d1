package config

import (
	"fmt"
	"sort"
)

// Globals carries plugin-wide lookup defaults applied when a lookup omits its
// own tag lists.
type Globals struct {
	TagOnFailure    []string
	TagOnDefaultUse []string
}

// Lookup describes one enrichment query. It is built once and shared
// read-only across every event.
type Lookup struct {
	ID     string `json:"id"`
	Target string `json:"target"`
	Query  string `json:"query"`
	// Parameters maps a bind name in Query (":name") to a value source: a
	// field reference such as "[ip]" or a template such as "%{[ip]}".
	Parameters map[string]string `json:"parameters,omitempty"`
	// DefaultHash, when set, is written (as a one element array) to Target
	// when the lookup fails or finds nothing.
	DefaultHash     map[string]any `json:"default_hash,omitempty"`
	TagOnFailure    []string       `json:"tag_on_failure,omitempty"`
	TagOnDefaultUse []string       `json:"tag_on_default_use,omitempty"`
	// FailOnEmpty tags a successful query that returns no rows as a failure.
	FailOnEmpty bool `json:"fail_on_empty,omitempty"`
}

// UseDefault reports whether a default value is configured. An empty
// default_hash still counts.
func (l Lookup) UseDefault() bool {
	return l.DefaultHash != nil
}

// ParameterNames returns the bind names in sorted order.
func (l Lookup) ParameterNames() []string {
	names := make([]string, 0, len(l.Parameters))
	for k := range l.Parameters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultLookupID names the n-th (zero based) lookup when it has no id.
func DefaultLookupID(n int) string {
	return fmt.Sprintf("lookup-%d", n+1)
}

// ParseLookup parses a lookup descriptor:
//
//	{id: server, query: "select * from servers where ip = :ip", parameters: {ip: "[ip]"}}
//
// The target defaults to the id, which defaults to defaultID. Tag lists
// default to globals. All problems are accumulated.
func ParseLookup(raw any, globals Globals, defaultID string) (Lookup, []error) {
	opts, ok := raw.(map[string]any)
	if !ok {
		return Lookup{}, []error{newError(ErrNotAMap, "lookup", "The lookup options must be a map")}
	}

	var errs []error
	l := Lookup{ID: defaultID}

	if raw, present := opts["id"]; present {
		if s, ok := raw.(string); ok && s != "" {
			l.ID = s
		} else {
			errs = append(errs, newError(ErrWrongType, "id", "The 'id' option for '%s' must be a string", defaultID))
		}
	}

	l.Target = l.ID
	if raw, present := opts["target"]; present {
		if s, ok := raw.(string); ok && s != "" {
			l.Target = s
		} else {
			errs = append(errs, newError(ErrWrongType, "target", "The 'target' option for '%s' must be a string", l.ID))
		}
	}

	query, ok := opts["query"].(string)
	if !ok || query == "" {
		errs = append(errs, newError(ErrMissingField, "query", "The options for '%s' must include a 'query' string", l.Target))
	}
	l.Query = query

	if raw, present := opts["parameters"]; present && raw != nil {
		params, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, newError(ErrWrongType, "parameters", "The 'parameters' option for '%s' must be a Hash", l.Target))
		} else {
			l.Parameters = make(map[string]string, len(params))
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				s, ok := params[k].(string)
				if !ok || s == "" {
					errs = append(errs, newError(ErrWrongType, "parameters", "The parameter '%s' for '%s' must be a field reference or template string", k, l.Target))
					continue
				}
				l.Parameters[k] = s
			}
		}
	}

	if raw, present := opts["default_hash"]; present && raw != nil {
		hash, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, newError(ErrWrongType, "default_hash", "The 'default_hash' option for '%s' must be a Hash", l.Target))
		} else {
			l.DefaultHash = hash
		}
	}

	var tagErrs []error
	l.TagOnFailure, tagErrs = parseTags(opts, "tag_on_failure", l.Target, globals.TagOnFailure)
	errs = append(errs, tagErrs...)
	l.TagOnDefaultUse, tagErrs = parseTags(opts, "tag_on_default_use", l.Target, globals.TagOnDefaultUse)
	errs = append(errs, tagErrs...)

	if raw, present := opts["fail_on_empty"]; present {
		b, ok := raw.(bool)
		if !ok {
			errs = append(errs, newError(ErrWrongType, "fail_on_empty", "The 'fail_on_empty' option for '%s' must be a boolean", l.Target))
		}
		l.FailOnEmpty = b
	}

	if len(errs) > 0 {
		return Lookup{}, errs
	}
	return l, nil
}

func parseTags(opts map[string]any, key, target string, fallback []string) ([]string, []error) {
	raw, present := opts[key]
	if !present || raw == nil {
		return append([]string(nil), fallback...), nil
	}
	tags, ok := toStrings(raw)
	if !ok {
		return nil, []error{newError(ErrWrongType, key, "The '%s' option for '%s' must be an array of strings", key, target)}
	}
	return tags, nil
}

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
