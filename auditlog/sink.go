package auditlog

import (
	"context"
	"errors"
	"fmt"
)

// Sink receives one record per decision. Emit is called synchronously on the
// decision path; a returned error is logged by the caller and never changes
// the decision.
type Sink interface {
	Emit(ctx context.Context, r *Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, r *Record) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, r *Record) error { return f(ctx, r) }

// StoreSink writes records to an audit Store.
type StoreSink struct {
	store Store
}

// NewStoreSink returns a sink that appends to s.
func NewStoreSink(s Store) *StoreSink { return &StoreSink{store: s} }

// Emit appends r to the store.
func (s *StoreSink) Emit(ctx context.Context, r *Record) error {
	if err := s.store.AppendAuditRecord(ctx, r); err != nil {
		return fmt.Errorf("auditlog: append: %w", err)
	}
	return nil
}

// Fanout emits to every sink and joins their errors. A failing sink does not
// stop the others.
type Fanout []Sink

// Emit delivers r to each sink in order.
func (f Fanout) Emit(ctx context.Context, r *Record) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
