package identity

import (
	"context"

	"github.com/bissquit/identity-garden/internal/domain"
)

// Filter selects a single account by conjunctive equality on the set fields.
// Callers must set at least one uniquely identifying field (ID or Email).
type Filter struct {
	ID    *int64
	Email *string
}

// Patch carries a partial account update. Nil fields are left untouched.
// PasswordHash must already be hashed; the repository never sees plaintext.
type Patch struct {
	Email        *string
	PasswordHash *string
	Role         *domain.Role
}

// Repository defines the interface for account storage.
//
// Implementations must serialize all operations with respect to each other
// and must enforce email uniqueness inside Save itself, so that two
// concurrent registrations for the same email cannot both succeed even if
// both passed an earlier Find check.
type Repository interface {
	// Find returns the single account matching all set filter fields,
	// or ErrAccountNotFound.
	Find(ctx context.Context, filter Filter) (*domain.Account, error)

	// List returns all accounts in creation order.
	List(ctx context.Context) ([]domain.Account, error)

	// Allocate assigns the next unused id to the account and fills defaults
	// (role, timestamps) without persisting it. Assigned ids are strictly
	// increasing and never reused, even if the account is never saved.
	Allocate(ctx context.Context, account domain.Account) (*domain.Account, error)

	// Save inserts the account, or overwrites an existing record with the
	// same id. Returns ErrEmailExists if another account holds the email.
	Save(ctx context.Context, account *domain.Account) error

	// Update merges the patch into the stored record.
	// Returns ErrAccountNotFound if id does not exist and ErrEmailExists
	// if the patched email belongs to another account.
	Update(ctx context.Context, id int64, patch Patch) (*domain.Account, error)

	// Delete removes the record. Returns ErrAccountNotFound if id does not exist.
	Delete(ctx context.Context, id int64) error
}
