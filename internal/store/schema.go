package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lookupcache/internal/schema"
)

// BuildSchema creates obj and its staging twin under the write lock.
//
// Without PreserveExisting a name collision fails with *SchemaError; with it
// the statement is CREATE ... IF NOT EXISTS and repeated builds are no-ops.
func (s *Store) BuildSchema(ctx context.Context, obj schema.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return &SchemaError{Object: obj.ObjectName(), Err: fmt.Errorf("store is closed")}
	}

	for _, o := range []schema.Object{obj, obj.StagingTwin()} {
		stmt := o.CreateSQL()
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Object: o.ObjectName(), SQL: stmt, Err: err}
		}
		slog.Debug("schema object built", "object", schema.Describe(o))
	}
	return nil
}

// BuildAll builds objects in two phases, every table and then every index,
// each phase in declared order. It stops at the first failure.
func (s *Store) BuildAll(ctx context.Context, objs []schema.Object) error {
	for _, obj := range schema.Order(objs) {
		if err := s.BuildSchema(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}
