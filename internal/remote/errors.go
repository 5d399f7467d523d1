package remote

import (
	"errors"
	"fmt"
)

// ConnectionError reports that the remote database could not be reached.
type ConnectionError struct {
	// Loader is the id of the loader that was connecting.
	Loader string

	// Err is the driver error.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("loader %s: connect: %v", e.Loader, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Stage names the remote statement that failed.
type Stage string

const (
	StageCount Stage = "count"
	StageFetch Stage = "fetch"
)

// QueryError reports a failed remote statement. No snapshot is produced, so
// the local table keeps its previous contents.
type QueryError struct {
	Loader string
	Stage  Stage
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("loader %s: %s: %v", e.Loader, e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a failure to reach the remote
// database. Uses errors.As to handle wrapped errors.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
