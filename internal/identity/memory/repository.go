// Package memory provides an in-memory account repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/bissquit/identity-garden/internal/identity"
)

// Repository is an in-memory account store. Every operation holds a single
// mutex, so the find-then-write sequences of the service cannot interleave
// destructively. Ids come from a monotonically increasing counter and are
// never reused within the process lifetime, even when an allocated account
// is never saved or a saved one is deleted.
type Repository struct {
	mu       sync.Mutex
	accounts []domain.Account // creation order
	nextID   int64
}

var _ identity.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{nextID: 1}
}

// Find implements identity.Repository.
func (r *Repository) Find(_ context.Context, filter identity.Filter) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if matches(&r.accounts[i], filter) {
			account := r.accounts[i]
			return &account, nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

// List implements identity.Repository.
func (r *Repository) List(_ context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]domain.Account, len(r.accounts))
	copy(accounts, r.accounts)
	return accounts, nil
}

// Allocate implements identity.Repository.
func (r *Repository) Allocate(_ context.Context, account domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account.ID = r.nextID
	r.nextID++

	if account.Role == "" {
		account.Role = domain.DefaultRole
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	return &account, nil
}

// Save implements identity.Repository. The uniqueness check and the write
// happen under the same lock, which closes the register/register race even
// for callers that skipped their own existence check.
func (r *Repository) Save(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].Email == account.Email && r.accounts[i].ID != account.ID {
			return identity.ErrEmailExists
		}
	}

	for i := range r.accounts {
		if r.accounts[i].ID == account.ID {
			r.accounts[i] = *account
			return nil
		}
	}

	r.accounts = append(r.accounts, *account)
	return nil
}

// Update implements identity.Repository.
func (r *Repository) Update(_ context.Context, id int64, patch identity.Patch) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, identity.ErrAccountNotFound
	}

	if patch.Email != nil {
		for i := range r.accounts {
			if r.accounts[i].Email == *patch.Email && r.accounts[i].ID != id {
				return nil, identity.ErrEmailExists
			}
		}
		r.accounts[idx].Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		r.accounts[idx].PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		r.accounts[idx].Role = *patch.Role
	}
	r.accounts[idx].UpdatedAt = time.Now().UTC()

	account := r.accounts[idx]
	return &account, nil
}

// Delete implements identity.Repository.
func (r *Repository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return identity.ErrAccountNotFound
}

func matches(account *domain.Account, filter identity.Filter) bool {
	if filter.ID == nil && filter.Email == nil {
		return false
	}
	if filter.ID != nil && account.ID != *filter.ID {
		return false
	}
	if filter.Email != nil && account.Email != *filter.Email {
		return false
	}
	return true
}
