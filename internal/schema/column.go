package schema

// Column is a named, typed column of a local table.
// The datatype is passed through to the store verbatim.
type Column struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
}

// ParseColumn parses a column from a two element array of strings:
// [name, datatype]. It never panics; all problems are returned.
func ParseColumn(raw any) (Column, []error) {
	var errs []error

	arr, ok := raw.([]any)
	if !ok {
		errs = append(errs, newError(ErrInvalidColumn, "column", "The column options must be an array"))
	}

	var name, datatype any
	if len(arr) > 0 {
		name = arr[0]
	}
	if len(arr) > 1 {
		datatype = arr[1]
	}

	col := Column{}
	if s, ok := name.(string); ok && s != "" {
		col.Name = s
	} else {
		errs = append(errs, newError(ErrInvalidColumn, "column.name", "The first column option is the name and must be a string"))
	}

	if s, ok := datatype.(string); ok && s != "" {
		col.Datatype = s
	} else {
		errs = append(errs, newError(ErrInvalidColumn, "column.datatype", "The second column option is the datatype and must be a string"))
	}

	if len(arr) > 2 {
		errs = append(errs, newError(ErrInvalidColumn, "column", "The column options must have exactly two elements, found %d", len(arr)))
	}

	if len(errs) > 0 {
		return Column{}, errs
	}
	return col, nil
}

// ToArray returns the column in its configuration form.
func (c Column) ToArray() []string {
	return []string{c.Name, c.Datatype}
}
