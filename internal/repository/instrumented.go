package repository

import (
	"context"
	"errors"
	"time"

	"fsm-intake/internal/metrics"
	"fsm-intake/internal/model"
)

// Instrumented records the latency and outcome of every store call.
type Instrumented struct {
	next    EmailRepository
	backend string
}

func NewInstrumented(next EmailRepository, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (r *Instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrEmailNotFound) {
		err = nil
	}
	metrics.RecordStoreOperation(r.backend, op, err, time.Since(start))
}

func (r *Instrumented) List(ctx context.Context) ([]*model.Email, error) {
	start := time.Now()
	emails, err := r.next.List(ctx)
	r.observe("list", start, err)
	return emails, err
}

func (r *Instrumented) FindByID(ctx context.Context, id string) (*model.Email, error) {
	start := time.Now()
	email, err := r.next.FindByID(ctx, id)
	r.observe("find", start, err)
	return email, err
}

func (r *Instrumented) Upsert(ctx context.Context, email *model.Email) (bool, error) {
	start := time.Now()
	created, err := r.next.Upsert(ctx, email)
	r.observe("upsert", start, err)
	return created, err
}

func (r *Instrumented) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	removed, err := r.next.Delete(ctx, id)
	r.observe("delete", start, err)
	return removed, err
}

func (r *Instrumented) Clear(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.next.Clear(ctx)
	r.observe("clear", start, err)
	return n, err
}

func (r *Instrumented) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.next.Count(ctx)
	r.observe("count", start, err)
	return n, err
}
