package repository

import (
	"context"
	"errors"

	"fsm-intake/internal/model"
)

// DefaultMaxEmails is how many records a store retains before evicting the oldest.
const DefaultMaxEmails = 100

var ErrEmailNotFound = errors.New("email not found")

// EmailRepository is the record store. Implementations keep records ordered
// newest first by insertion, replace records in place on upsert, and evict
// from the tail once the cap is exceeded. A failed mutation leaves the
// previous contents untouched.
type EmailRepository interface {
	List(ctx context.Context) ([]*model.Email, error)
	FindByID(ctx context.Context, id string) (*model.Email, error)
	// Upsert reports created=true when the id was not present before.
	Upsert(ctx context.Context, email *model.Email) (created bool, err error)
	Delete(ctx context.Context, id string) (removed bool, err error)
	Clear(ctx context.Context) (cleared int, err error)
	Count(ctx context.Context) (int, error)
}
