// Package config parses the lookup cache configuration document.
//
// A document is decoded from YAML or CUE into plain Go values and then
// parsed into typed descriptors. Parsing never fails fast: every problem in
// every descriptor is collected so the whole document can be fixed in one
// pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lookupcache/internal/schema"
)

// Default values for optional top level settings.
const (
	DefaultLocalDSN        = "file:lookupcache?mode=memory&cache=shared"
	DefaultTagOnFailure    = "_lookupfailure"
	DefaultTagOnDefaultUse = "_lookupdefaultsused"
)

// Config is a fully parsed configuration document.
type Config struct {
	// Remote is the default remote connection for loaders.
	Remote Connection
	// LocalDSN is the sqlite data source of the local lookup store.
	LocalDSN string
	// Schedule is a cron expression; empty means load once.
	Schedule string
	Globals  Globals

	Objects         []schema.Object
	PostLoadObjects []schema.Object
	Loaders         []Loader
	Lookups         []Lookup
}

// Repeating reports whether loaders are re-run on a schedule.
func (c *Config) Repeating() bool {
	return c.Schedule != ""
}

var knownKeys = map[string]bool{
	"jdbc_driver":              true,
	"jdbc_connection_string":   true,
	"query_timeout":            true,
	"lookup_connection_string": true,
	"schedule":                 true,
	"tag_on_failure":           true,
	"tag_on_default_use":       true,
	"local_db_objects":         true,
	"post_load_db_objects":     true,
	"loaders":                  true,
	"lookups":                  true,
}

// Parse validates a decoded document. The returned errors are
// *DescriptorError values in a stable order: settings, local_db_objects,
// post_load_db_objects, loaders, lookups. The Config is nil when any error
// is returned.
func Parse(raw map[string]any) (*Config, []error) {
	var errs []error
	section := func(name string, index int, e ...error) {
		if len(e) > 0 {
			errs = append(errs, &DescriptorError{Section: name, Index: index, Errs: e})
		}
	}

	cfg := &Config{
		Remote:   Connection{Driver: DefaultRemoteDriver},
		LocalDSN: DefaultLocalDSN,
		Globals: Globals{
			TagOnFailure:    []string{DefaultTagOnFailure},
			TagOnDefaultUse: []string{DefaultTagOnDefaultUse},
		},
	}

	var settingErrs []error
	for _, key := range sortedKeys(raw) {
		if !knownKeys[key] {
			settingErrs = append(settingErrs, newError(ErrUnknownSection, key, "Unrecognized option '%s'", key))
		}
	}
	stringSetting := func(key string, dst *string) {
		v, present := raw[key]
		if !present || v == nil {
			return
		}
		s, ok := v.(string)
		if !ok {
			settingErrs = append(settingErrs, newError(ErrWrongType, key, "The '%s' option must be a string", key))
			return
		}
		*dst = s
	}
	stringSetting("jdbc_driver", &cfg.Remote.Driver)
	stringSetting("jdbc_connection_string", &cfg.Remote.DSN)
	stringSetting("lookup_connection_string", &cfg.LocalDSN)
	stringSetting("schedule", &cfg.Schedule)

	if v, present := raw["query_timeout"]; present {
		d, err := toDuration(v)
		if err != nil {
			settingErrs = append(settingErrs, newError(ErrWrongType, "query_timeout", "The 'query_timeout' option must be a duration: %v", err))
		}
		cfg.Remote.QueryTimeout = d
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			settingErrs = append(settingErrs, newError(ErrInvalidCron, "schedule", "The schedule option is invalid: %v", err))
		}
	}

	for _, key := range []string{"tag_on_failure", "tag_on_default_use"} {
		v, present := raw[key]
		if !present || v == nil {
			continue
		}
		tags, ok := toStrings(v)
		if !ok {
			settingErrs = append(settingErrs, newError(ErrWrongType, key, "The '%s' option must be an array of strings", key))
			continue
		}
		if len(tags) == 0 {
			continue
		}
		if key == "tag_on_failure" {
			cfg.Globals.TagOnFailure = tags
		} else {
			cfg.Globals.TagOnDefaultUse = tags
		}
	}
	section("settings", -1, settingErrs...)

	cfg.Objects = parseObjectSection(raw["local_db_objects"], "local_db_objects", section)
	cfg.PostLoadObjects = parseObjectSection(raw["post_load_db_objects"], "post_load_db_objects", section)
	section("local_db_objects", -1, schema.CrossValidate(cfg.Objects)...)
	section("post_load_db_objects", -1, schema.CrossValidate(cfg.PostLoadObjects, cfg.Objects...)...)

	loaders, present := raw["loaders"]
	switch arr, ok := loaders.([]any); {
	case !present || loaders == nil:
		section("loaders", -1, newError(ErrMissingField, "loaders", "The 'loaders' option is required"))
	case !ok:
		section("loaders", -1, newError(ErrNotAnArray, "loaders", "The options must be an Array"))
	default:
		tables := make(map[string]bool)
		for i, elem := range arr {
			l, lerrs := ParseLoader(elem, cfg.Remote)
			if len(lerrs) == 0 && tables[l.LocalTable] {
				lerrs = append(lerrs, newError(ErrDuplicateID, "local_table", "The local_table '%s' is loaded by more than one loader", l.LocalTable))
			}
			if len(lerrs) > 0 {
				section("loaders", i, lerrs...)
				continue
			}
			tables[l.LocalTable] = true
			cfg.Loaders = append(cfg.Loaders, l)
		}
	}

	lookups, present := raw["lookups"]
	switch arr, ok := lookups.([]any); {
	case !present || lookups == nil:
		section("lookups", -1, newError(ErrMissingField, "lookups", "The 'lookups' option is required"))
	case !ok:
		section("lookups", -1, newError(ErrNotAnArray, "lookups", "The options must be an Array"))
	default:
		ids := make(map[string]bool)
		for i, elem := range arr {
			l, lerrs := ParseLookup(elem, cfg.Globals, DefaultLookupID(i))
			if len(lerrs) == 0 && ids[l.ID] {
				lerrs = append(lerrs, newError(ErrDuplicateID, "id", "The lookup id '%s' is used more than once", l.ID))
			}
			if len(lerrs) > 0 {
				section("lookups", i, lerrs...)
				continue
			}
			ids[l.ID] = true
			cfg.Lookups = append(cfg.Lookups, l)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

func parseObjectSection(raw any, name string, section func(string, int, ...error)) []schema.Object {
	objs, errs := schema.ParseObjects(raw)
	for _, err := range errs {
		if objErr, ok := err.(*schema.ObjectError); ok {
			section(name, objErr.Index, objErr.Errs...)
			continue
		}
		section(name, -1, err)
	}
	return objs
}

// Decode reads a configuration file into plain Go values. Files ending in
// .cue are evaluated with CUE; anything else is read as YAML.
func Decode(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		ctx := cuecontext.New()
		value := ctx.CompileBytes(data, cue.Filename(path))
		if err := value.Err(); err != nil {
			return nil, fmt.Errorf("compile cue config: %w", err)
		}
		if err := value.Validate(cue.Concrete(true)); err != nil {
			return nil, fmt.Errorf("validate cue config: %w", err)
		}
		if err := value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode cue config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
	}

	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// Load decodes and parses a configuration file.
func Load(path string) (*Config, []error) {
	raw, err := Decode(path)
	if err != nil {
		return nil, []error{&DescriptorError{
			Section: "file",
			Index:   -1,
			Errs:    []error{newError(ErrLoadFailed, "file", "%v", err)},
		}}
	}
	return Parse(raw)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
