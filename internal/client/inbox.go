package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"fsm-intake/internal/model"
)

const refreshKey = "refresh"

// Inbox keeps the operator's copy of the record list. Concurrent refreshes
// share one request; a response from a refresh that was overtaken by a newer
// one is dropped. Mutations finish before their follow-up refresh starts.
type Inbox struct {
	api   *Client
	group singleflight.Group

	mu      sync.Mutex
	started uint64
	applied uint64
	emails  []*model.Email
}

func NewInbox(api *Client) *Inbox {
	return &Inbox{api: api, emails: []*model.Email{}}
}

// Emails returns the current snapshot.
func (i *Inbox) Emails() []*model.Email {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*model.Email, len(i.emails))
	copy(out, i.emails)
	return out
}

// Refresh reloads the list, joining a refresh already in flight.
func (i *Inbox) Refresh(ctx context.Context) ([]*model.Email, error) {
	_, err, _ := i.group.Do(refreshKey, func() (interface{}, error) {
		return nil, i.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return i.Emails(), nil
}

// refreshAfterMutation starts a new refresh rather than joining one that
// began before the mutation.
func (i *Inbox) refreshAfterMutation(ctx context.Context) ([]*model.Email, error) {
	i.group.Forget(refreshKey)
	return i.Refresh(ctx)
}

func (i *Inbox) fetch(ctx context.Context) error {
	i.mu.Lock()
	i.started++
	gen := i.started
	i.mu.Unlock()

	emails, err := i.api.List(ctx)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if gen < i.applied {
		return nil
	}
	i.applied = gen
	i.emails = emails
	return nil
}

// DeleteAndRefresh deletes one record, then reloads the list. An unknown id
// still triggers the refresh.
func (i *Inbox) DeleteAndRefresh(ctx context.Context, id string) (*DeleteResult, []*model.Email, error) {
	result, err := i.api.Delete(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if result.Deleted {
		i.dropLocal(id)
	}
	emails, err := i.refreshAfterMutation(ctx)
	return result, emails, err
}

// ClearAndRefresh empties the store, then reloads the list.
func (i *Inbox) ClearAndRefresh(ctx context.Context) (int, []*model.Email, error) {
	cleared, err := i.api.Clear(ctx)
	if err != nil {
		return 0, nil, err
	}
	i.mu.Lock()
	i.emails = []*model.Email{}
	i.mu.Unlock()

	emails, err := i.refreshAfterMutation(ctx)
	return cleared, emails, err
}

func (i *Inbox) dropLocal(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.emails[:0:0]
	for _, e := range i.emails {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	i.emails = kept
}
