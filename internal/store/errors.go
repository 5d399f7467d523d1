package store

import (
	"errors"
	"fmt"
)

// SchemaError reports a failed CREATE TABLE or CREATE INDEX.
type SchemaError struct {
	Object string
	SQL    string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Object, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// RefreshStage names the step of AtomicRefresh that failed.
type RefreshStage string

const (
	// StageFetch means the remote snapshot could not be fetched. The live
	// table is untouched.
	StageFetch RefreshStage = "fetch"

	// StageInsert means the bulk insert into the staging table failed. The
	// live table is untouched.
	StageInsert RefreshStage = "insert"

	// StageSwap means the rename or truncate step failed. The store may be
	// inconsistent and the refresh cycle must stop.
	StageSwap RefreshStage = "swap"
)

// RefreshError reports a failed refresh of one loader's table.
type RefreshError struct {
	Loader string
	Table  string
	Stage  RefreshStage
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s (table %s): %s: %v", e.Loader, e.Table, e.Stage, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the failure may have left the table namespace
// inconsistent.
func (e *RefreshError) IsFatal() bool {
	return e.Stage == StageSwap
}

// IsFatalRefresh reports whether err contains a fatal RefreshError anywhere
// in its tree, including every branch of a joined error.
func IsFatalRefresh(err error) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *RefreshError:
		if e.IsFatal() {
			return true
		}
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsFatalRefresh(inner) {
				return true
			}
		}
		return false
	}
	return IsFatalRefresh(errors.Unwrap(err))
}
