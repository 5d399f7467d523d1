package schema

import (
	"fmt"
	"strings"
)

// TempPrefix names the staging twin of every local table.
const TempPrefix = "temp_"

// Kind distinguishes table and index descriptors.
type Kind string

const (
	KindTable Kind = "table"
	KindIndex Kind = "index"
)

// Object is a buildable schema descriptor: a TableDef or an IndexDef.
type Object interface {
	ObjectName() string
	Kind() Kind
	// CreateSQL returns the DDL statement that creates the object.
	CreateSQL() string
	// StagingTwin returns the object that shadows this one on the staging table.
	StagingTwin() Object
	// Preserving returns a copy that is created only if absent.
	Preserving() Object
}

// TableDef describes a local table.
type TableDef struct {
	Name             string   `json:"name"`
	Columns          []Column `json:"columns"`
	PreserveExisting bool     `json:"preserve_existing,omitempty"`
}

// IndexDef describes an index on a local table.
type IndexDef struct {
	Name             string   `json:"name"`
	Table            string   `json:"table"`
	Columns          []string `json:"columns"`
	PreserveExisting bool     `json:"preserve_existing,omitempty"`
}

func (t TableDef) ObjectName() string { return t.Name }
func (t TableDef) Kind() Kind         { return KindTable }

func (i IndexDef) ObjectName() string { return i.Name }
func (i IndexDef) Kind() Kind         { return KindIndex }

// CreateSQL returns CREATE TABLE [IF NOT EXISTS].
func (t TableDef) CreateSQL() string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = QuoteIdent(c.Name) + " " + c.Datatype
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s)", ifNotExists(t.PreserveExisting), QuoteIdent(t.Name), strings.Join(cols, ", "))
}

// CreateSQL returns CREATE INDEX [IF NOT EXISTS].
func (i IndexDef) CreateSQL() string {
	cols := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		cols[n] = QuoteIdent(c)
	}
	return fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)", ifNotExists(i.PreserveExisting), QuoteIdent(i.Name), QuoteIdent(i.Table), strings.Join(cols, ", "))
}

func (t TableDef) StagingTwin() Object {
	twin := t
	twin.Name = TempPrefix + t.Name
	twin.Columns = append([]Column(nil), t.Columns...)
	return twin
}

func (i IndexDef) StagingTwin() Object {
	twin := i
	twin.Name = TempPrefix + i.Name
	twin.Table = TempPrefix + i.Table
	twin.Columns = append([]string(nil), i.Columns...)
	return twin
}

func (t TableDef) Preserving() Object {
	t.PreserveExisting = true
	return t
}

func (i IndexDef) Preserving() Object {
	i.PreserveExisting = true
	return i
}

// ColumnNames returns the table's column names in declaration order.
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func ifNotExists(preserve bool) string {
	if preserve {
		return "IF NOT EXISTS "
	}
	return ""
}

// QuoteIdent quotes an SQL identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParseObject parses a table or index descriptor of the form
//
//	{type: table, name: servers, columns: [[ip, text], [name, text]]}
//	{type: index, name: servers_idx, table: servers, columns: [ip]}
//
// All problems are accumulated; the returned Object is nil when any exist.
func ParseObject(raw any) (Object, []error) {
	opts, ok := raw.(map[string]any)
	if !ok {
		return nil, []error{newError(ErrNotAMap, "object", "Schema object options must be a map")}
	}

	var errs []error

	name, ok := opts["name"].(string)
	if !ok || name == "" {
		errs = append(errs, newError(ErrMissingName, "name", "The options must include a 'name' string"))
	}

	table, tableGiven := opts["table"]
	tableName, tableIsString := table.(string)
	if tableGiven && !tableIsString {
		errs = append(errs, newError(ErrMissingTable, "table", "The table option for '%s' must be a string", name))
	}

	kindRaw, kindGiven := opts["type"]
	kindStr, kindIsString := kindRaw.(string)
	kind := Kind(kindStr)
	switch {
	case !kindGiven || !kindIsString:
		errs = append(errs, newError(ErrMissingType, "type", "The options for '%s' must include a 'type' string", name))
	case kind != KindTable && kind != KindIndex:
		errs = append(errs, newError(ErrInvalidType, "type", "The type option for '%s' must be 'table' or 'index', found: '%s'", name, kindStr))
	}

	if kind == KindIndex && (!tableGiven || (tableIsString && tableName == "")) {
		errs = append(errs, newError(ErrMissingTable, "table", "The options for index '%s' must include a 'table' string", name))
	}

	preserve, perr := parsePreserve(opts["preserve_existing"], name)
	if perr != nil {
		errs = append(errs, perr)
	}

	columns, colErrs := parseColumns(opts["columns"], name, kind)
	errs = append(errs, colErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	switch kind {
	case KindTable:
		return TableDef{Name: name, Columns: columns.pairs, PreserveExisting: preserve}, nil
	default:
		return IndexDef{Name: name, Table: tableName, Columns: columns.names, PreserveExisting: preserve}, nil
	}
}

type parsedColumns struct {
	pairs []Column
	names []string
}

// parseColumns checks the columns array. A table takes uniform [name, type]
// pairs, an index takes column name strings.
func parseColumns(raw any, name string, kind Kind) (parsedColumns, []error) {
	var out parsedColumns

	arr, ok := raw.([]any)
	if !ok {
		return out, []error{newError(ErrMissingColumns, "columns", "The options for '%s' must include a 'columns' array", name)}
	}
	if len(arr) == 0 {
		return out, []error{newError(ErrMissingColumns, "columns", "The columns array for '%s' must not be empty", name)}
	}

	sizes := make(map[int]bool)
	for _, elem := range arr {
		if inner, ok := elem.([]any); ok {
			sizes[len(inner)] = true
		} else {
			sizes[-1] = true
		}
	}

	var errs []error
	switch {
	case len(sizes) == 1 && sizes[2]:
		if kind == KindIndex {
			return out, []error{newError(ErrColumnsShape, "columns", "The column name for an 'index' type with name: '%s' must be a string", name)}
		}
		seen := make(map[string]bool)
		for _, elem := range arr {
			col, colErrs := ParseColumn(elem)
			if len(colErrs) > 0 {
				errs = append(errs, newError(ErrInvalidColumn, "columns", "%s", FormatErrors(colErrs)))
				continue
			}
			if seen[col.Name] {
				errs = append(errs, newError(ErrDuplicateColumn, "columns", "The columns array for '%s' contains a duplicate column name: '%s'", name, col.Name))
				continue
			}
			seen[col.Name] = true
			out.pairs = append(out.pairs, col)
		}
	case len(sizes) == 1 && sizes[-1]:
		if kind == KindTable {
			return out, []error{newError(ErrColumnsShape, "columns", "The columns array for table '%s' must contain arrays of two strings", name)}
		}
		for _, elem := range arr {
			s, ok := elem.(string)
			if !ok || s == "" {
				errs = append(errs, newError(ErrColumnsShape, "columns", "The column name for an 'index' type with name: '%s' must be a string", name))
				continue
			}
			out.names = append(out.names, s)
		}
	default:
		errs = append(errs, newError(ErrColumnsShape, "columns", "The columns array for '%s' is not uniform, it should contain either arrays of two strings or only strings", name))
	}

	return out, errs
}

func parsePreserve(raw any, name string) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, newError(ErrInvalidPreserve, "preserve_existing", "The preserve_existing option for '%s' must be a boolean", name)
}
