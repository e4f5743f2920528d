package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/bissquit/identity-garden/internal/pkg/ctxlog"
)

// TokenIssuer mints signed access tokens for authenticated accounts.
// The service depends only on this narrow interface so the signing scheme
// can change without touching business logic. Token verification is a
// transport concern and deliberately not part of it.
type TokenIssuer interface {
	Issue(ctx context.Context, account *domain.Account) (string, error)
}

// Service implements account and authentication business logic.
type Service struct {
	repo   Repository
	hasher Hasher
	issuer TokenIssuer

	// dummyDigest is verified against on the "account not found" login path
	// so a login attempt takes the same time whether or not the email exists.
	dummyDigest string
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher Hasher, issuer TokenIssuer) *Service {
	dummy, _ := hasher.Hash("identity-garden.timing-equalizer")
	return &Service{
		repo:        repo,
		hasher:      hasher,
		issuer:      issuer,
		dummyDigest: dummy,
	}
}

// RegisterInput holds data for creating an account. Role is optional and
// defaults to viewer.
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.Role
}

// UpdateInput holds a partial account update. Nil fields are left unchanged.
type UpdateInput struct {
	Email    *string
	Password *string
	Role     *domain.Role
}

// TokenResult wraps an issued access token.
type TokenResult struct {
	AccessToken string `json:"access_token"`
}

// Register creates a new account. Returns ErrEmailExists if the email is
// already taken; in that case nothing is created or mutated.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.PublicAccount, error) {
	return s.createAccount(ctx, input)
}

// Create is the administrative entry point for account creation. It shares
// the uniqueness and hashing rules of Register; authorization is enforced
// by the caller.
func (s *Service) Create(ctx context.Context, input RegisterInput) (*domain.PublicAccount, error) {
	return s.createAccount(ctx, input)
}

func (s *Service) createAccount(ctx context.Context, input RegisterInput) (*domain.PublicAccount, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}
	if input.Role != "" && !input.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}

	_, err := s.repo.Find(ctx, Filter{Email: &input.Email})
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, ErrAccountNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Allocate(ctx, domain.Account{
		Email:        input.Email,
		PasswordHash: digest,
		Role:         input.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("allocate account: %w", err)
	}

	if err := s.repo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	ctxlog.FromContext(ctx).Info("account created",
		"account_id", account.ID,
		"role", account.Role,
	)

	public := account.Public()
	return &public, nil
}

// Validate checks credentials without issuing a token. Both an unknown email
// and a wrong password yield (nil, nil) rather than distinct errors, so
// callers cannot enumerate accounts by error kind.
func (s *Service) Validate(ctx context.Context, email, password string) (*domain.PublicAccount, error) {
	account, err := s.repo.Find(ctx, Filter{Email: &email})
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, nil
	}

	public := account.Public()
	return &public, nil
}

// Login verifies credentials and mints an access token. An unknown email and
// a wrong password both fail with ErrInvalidCredentials; the dummy verify on
// the not-found path keeps the two failures indistinguishable by timing.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenResult, error) {
	account, err := s.repo.Find(ctx, Filter{Email: &email})
	if errors.Is(err, ErrAccountNotFound) {
		s.hasher.Verify(password, s.dummyDigest)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &TokenResult{AccessToken: token}, nil
}

// GetByID returns a single account. Returns ErrAccountNotFound if id does
// not exist.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.PublicAccount, error) {
	account, err := s.repo.Find(ctx, Filter{ID: &id})
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

// List returns all accounts in creation order.
func (s *Service) List(ctx context.Context) ([]domain.PublicAccount, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	public := make([]domain.PublicAccount, 0, len(accounts))
	for _, a := range accounts {
		public = append(public, a.Public())
	}
	return public, nil
}

// Update applies a partial update. An email change re-checks uniqueness and
// fails with ErrEmailExists if the new email is taken; a supplied password
// is re-hashed before it reaches the store.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*domain.PublicAccount, error) {
	account, err := s.repo.Find(ctx, Filter{ID: &id})
	if err != nil {
		return nil, err
	}

	var patch Patch

	if input.Email != nil && *input.Email != account.Email {
		if *input.Email == "" {
			return nil, ErrInvalidInput
		}
		_, err := s.repo.Find(ctx, Filter{Email: input.Email})
		switch {
		case err == nil:
			return nil, ErrEmailExists
		case !errors.Is(err, ErrAccountNotFound):
			return nil, fmt.Errorf("check email: %w", err)
		}
		patch.Email = input.Email
	}

	if input.Password != nil {
		if *input.Password == "" {
			return nil, ErrInvalidInput
		}
		digest, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &digest
	}

	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *input.Role)
		}
		patch.Role = input.Role
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	public := updated.Public()
	return &public, nil
}

// Remove deletes an account. Returns ErrAccountNotFound if id does not exist.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("account removed", "account_id", id)
	return nil
}
