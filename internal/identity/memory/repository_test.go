package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/bissquit/identity-garden/internal/identity"
	"github.com/bissquit/identity-garden/internal/identity/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func create(t *testing.T, repo *memory.Repository, email string, role domain.Role) *domain.Account {
	t.Helper()
	account, err := repo.Allocate(context.Background(), domain.Account{
		Email:        email,
		PasswordHash: "digest",
		Role:         role,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), account))
	return account
}

func TestAllocate_IdsAreMonotonic(t *testing.T) {
	repo := memory.NewRepository()

	first := create(t, repo, "a@x.com", "")
	second := create(t, repo, "b@x.com", "")

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestAllocate_IdsAreNeverReused(t *testing.T) {
	repo := memory.NewRepository()

	first := create(t, repo, "a@x.com", "")
	require.NoError(t, repo.Delete(context.Background(), first.ID))

	second := create(t, repo, "b@x.com", "")

	assert.Equal(t, int64(2), second.ID, "id of a deleted account must not come back")
}

func TestAllocate_UnsavedAllocationStillConsumesId(t *testing.T) {
	repo := memory.NewRepository()

	_, err := repo.Allocate(context.Background(), domain.Account{Email: "ghost@x.com"})
	require.NoError(t, err)

	saved := create(t, repo, "a@x.com", "")
	assert.Equal(t, int64(2), saved.ID)
}

func TestAllocate_AppliesDefaults(t *testing.T) {
	repo := memory.NewRepository()

	account, err := repo.Allocate(context.Background(), domain.Account{Email: "a@x.com"})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, account.Role)
	assert.False(t, account.CreatedAt.IsZero())
	assert.Equal(t, account.CreatedAt, account.UpdatedAt)
}

func TestSave_RejectsDuplicateEmail(t *testing.T) {
	repo := memory.NewRepository()
	create(t, repo, "a@x.com", "")

	duplicate, err := repo.Allocate(context.Background(), domain.Account{
		Email:        "a@x.com",
		PasswordHash: "other",
	})
	require.NoError(t, err)

	err = repo.Save(context.Background(), duplicate)

	assert.ErrorIs(t, err, identity.ErrEmailExists)
	accounts, listErr := repo.List(context.Background())
	require.NoError(t, listErr)
	assert.Len(t, accounts, 1)
}

func TestSave_EmailIsCaseSensitive(t *testing.T) {
	repo := memory.NewRepository()
	create(t, repo, "a@x.com", "")

	upper := create(t, repo, "A@X.COM", "")

	assert.Equal(t, int64(2), upper.ID)
}

func TestSave_UpsertsByID(t *testing.T) {
	repo := memory.NewRepository()
	account := create(t, repo, "a@x.com", "")

	account.PasswordHash = "newdigest"
	require.NoError(t, repo.Save(context.Background(), account))

	found, err := repo.Find(context.Background(), identity.Filter{ID: &account.ID})
	require.NoError(t, err)
	assert.Equal(t, "newdigest", found.PasswordHash)

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSave_ConcurrentSameEmailAdmitsExactlyOne(t *testing.T) {
	repo := memory.NewRepository()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := repo.Allocate(context.Background(), domain.Account{
				Email:        "contested@x.com",
				PasswordHash: "digest",
			})
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = repo.Save(context.Background(), account)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, identity.ErrEmailExists)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestFind_ByIDAndEmail(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", "")
	create(t, repo, "b@x.com", "")

	byID, err := repo.Find(context.Background(), identity.Filter{ID: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)

	email := "b@x.com"
	byEmail, err := repo.Find(context.Background(), identity.Filter{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byEmail.ID)
}

func TestFind_FilterFieldsAreConjunctive(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", "")
	create(t, repo, "b@x.com", "")

	otherEmail := "b@x.com"
	_, err := repo.Find(context.Background(), identity.Filter{ID: &a.ID, Email: &otherEmail})

	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestFind_EmptyFilterMatchesNothing(t *testing.T) {
	repo := memory.NewRepository()
	create(t, repo, "a@x.com", "")

	_, err := repo.Find(context.Background(), identity.Filter{})

	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestFind_ReturnsACopy(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", "")

	found, err := repo.Find(context.Background(), identity.Filter{ID: &a.ID})
	require.NoError(t, err)
	found.Email = "mutated@x.com"

	again, err := repo.Find(context.Background(), identity.Filter{ID: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", again.Email)
}

func TestList_PreservesCreationOrder(t *testing.T) {
	repo := memory.NewRepository()
	create(t, repo, "first@x.com", "")
	create(t, repo, "second@x.com", "")
	create(t, repo, "third@x.com", "")

	accounts, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "first@x.com", accounts[0].Email)
	assert.Equal(t, "second@x.com", accounts[1].Email)
	assert.Equal(t, "third@x.com", accounts[2].Email)
}

func TestUpdate_MergesPatchFields(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", domain.RoleViewer)

	role := domain.RoleEditor
	updated, err := repo.Update(context.Background(), a.ID, identity.Patch{Role: &role})

	require.NoError(t, err)
	assert.Equal(t, "a@x.com", updated.Email, "unpatched field must survive")
	assert.Equal(t, domain.RoleEditor, updated.Role)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
}

func TestUpdate_RejectsTakenEmail(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", "")
	create(t, repo, "b@x.com", "")

	taken := "b@x.com"
	_, err := repo.Update(context.Background(), a.ID, identity.Patch{Email: &taken})

	assert.ErrorIs(t, err, identity.ErrEmailExists)
}

func TestUpdate_NotFound(t *testing.T) {
	repo := memory.NewRepository()

	email := "a@x.com"
	_, err := repo.Update(context.Background(), 42, identity.Patch{Email: &email})

	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestDelete_RemovesAccount(t *testing.T) {
	repo := memory.NewRepository()
	a := create(t, repo, "a@x.com", "")

	require.NoError(t, repo.Delete(context.Background(), a.ID))

	_, err := repo.Find(context.Background(), identity.Filter{ID: &a.ID})
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	repo := memory.NewRepository()

	err := repo.Delete(context.Background(), 7)

	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}
