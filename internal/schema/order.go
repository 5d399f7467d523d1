package schema

import "fmt"

// ParseObjects parses a list of schema object descriptors.
//
// The returned errors are one per invalid descriptor, each an *ObjectError
// holding every problem found in it, in declaration order. Valid objects are
// returned even when others are invalid.
func ParseObjects(raw any) ([]Object, []error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, []error{newError(ErrNotAnArray, "objects", "The options must be an Array")}
	}

	var objs []Object
	var errs []error
	for i, elem := range arr {
		obj, objErrs := ParseObject(elem)
		if len(objErrs) > 0 {
			errs = append(errs, &ObjectError{Index: i, Errs: objErrs})
			continue
		}
		objs = append(objs, obj)
	}
	return objs, errs
}

// ObjectError groups the problems of one descriptor in a list.
type ObjectError struct {
	Index int
	Errs  []error
}

func (e *ObjectError) Error() string {
	return FormatErrors(e.Errs)
}

func (e *ObjectError) Unwrap() []error {
	return e.Errs
}

// Order returns the tables followed by the indexes, each group in
// declaration order. Building in this order guarantees an index's table
// exists before the index is created.
func Order(objs []Object) []Object {
	ordered := make([]Object, 0, len(objs))
	for _, o := range objs {
		if o.Kind() == KindTable {
			ordered = append(ordered, o)
		}
	}
	for _, o := range objs {
		if o.Kind() == KindIndex {
			ordered = append(ordered, o)
		}
	}
	return ordered
}

// CrossValidate checks references between objects: object names are unique,
// every index names a table defined in known (or objs), and every index
// column exists on that table.
func CrossValidate(objs []Object, known ...Object) []error {
	tables := make(map[string]TableDef)
	for _, o := range append(append([]Object(nil), known...), objs...) {
		if t, ok := o.(TableDef); ok {
			if _, dup := tables[t.Name]; !dup {
				tables[t.Name] = t
			}
		}
	}

	var errs []error
	seen := make(map[string]bool)
	for _, o := range objs {
		if seen[o.ObjectName()] {
			errs = append(errs, newError(ErrDuplicateObject, "name", "The object name '%s' is defined more than once", o.ObjectName()))
		}
		seen[o.ObjectName()] = true

		idx, ok := o.(IndexDef)
		if !ok {
			continue
		}
		table, ok := tables[idx.Table]
		if !ok {
			errs = append(errs, newError(ErrUnknownTable, "table", "The index '%s' references table '%s' which is not defined", idx.Name, idx.Table))
			continue
		}
		cols := make(map[string]bool, len(table.Columns))
		for _, c := range table.Columns {
			cols[c.Name] = true
		}
		for _, c := range idx.Columns {
			if !cols[c] {
				errs = append(errs, newError(ErrUnknownColumn, "columns", "The index '%s' column '%s' is not a column of table '%s'", idx.Name, c, idx.Table))
			}
		}
	}
	return errs
}

// Describe renders an object for logs.
func Describe(o Object) string {
	return fmt.Sprintf("%s %s", o.Kind(), o.ObjectName())
}
