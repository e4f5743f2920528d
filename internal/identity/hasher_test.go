package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("correct horse")

	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", digest)
	assert.True(t, hasher.Verify("correct horse", digest))
	assert.False(t, hasher.Verify("wrong horse", digest))
}

func TestBcryptHasher_SaltsEveryDigest(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("same password", first))
	assert.True(t, hasher.Verify("same password", second))
}

func TestBcryptHasher_RejectsMalformedDigest(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	assert.False(t, hasher.Verify("anything", "not a bcrypt digest"))
	assert.False(t, hasher.Verify("anything", ""))
}

func TestNewBcryptHasher_ClampsInvalidCost(t *testing.T) {
	for _, cost := range []int{-1, 0, bcrypt.MaxCost + 1} {
		hasher := NewBcryptHasher(cost)
		assert.Equal(t, bcrypt.DefaultCost, hasher.cost, "cost %d", cost)
	}
}
