package memory

import (
	"context"
	"sync"

	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

// InMemoryEmailRepository keeps records in process memory. Contents are lost
// on restart.
type InMemoryEmailRepository struct {
	emails map[string]*model.Email
	// order holds ids newest first
	order []string
	max   int
	mutex sync.RWMutex
}

func NewInMemoryEmailRepository() *InMemoryEmailRepository {
	return NewInMemoryEmailRepositoryWithCap(repository.DefaultMaxEmails)
}

func NewInMemoryEmailRepositoryWithCap(max int) *InMemoryEmailRepository {
	if max <= 0 {
		max = repository.DefaultMaxEmails
	}
	return &InMemoryEmailRepository{
		emails: make(map[string]*model.Email),
		max:    max,
	}
}

func (r *InMemoryEmailRepository) List(ctx context.Context) ([]*model.Email, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*model.Email, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.emails[id].Clone())
	}
	return result, nil
}

func (r *InMemoryEmailRepository) FindByID(ctx context.Context, id string) (*model.Email, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	email, exists := r.emails[id]
	if !exists {
		return nil, repository.ErrEmailNotFound
	}
	return email.Clone(), nil
}

func (r *InMemoryEmailRepository) Upsert(ctx context.Context, email *model.Email) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.emails[email.ID]; exists {
		r.emails[email.ID] = email.Clone()
		return false, nil
	}

	r.emails[email.ID] = email.Clone()
	r.order = append([]string{email.ID}, r.order...)

	for len(r.order) > r.max {
		oldest := r.order[len(r.order)-1]
		r.order = r.order[:len(r.order)-1]
		delete(r.emails, oldest)
	}
	return true, nil
}

func (r *InMemoryEmailRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.emails[id]; !exists {
		return false, nil
	}
	delete(r.emails, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (r *InMemoryEmailRepository) Clear(ctx context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := len(r.order)
	r.emails = make(map[string]*model.Email)
	r.order = nil
	return count, nil
}

func (r *InMemoryEmailRepository) Count(ctx context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.order), nil
}
