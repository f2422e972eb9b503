package security_test

import (
	"testing"

	"github.com/routecore/platform/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndCompareRoundTrip(t *testing.T) {
	h := security.NewBcryptHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, h.Compare(hash, "correct horse battery staple"))
	assert.Error(t, h.Compare(hash, "wrong password"))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, security.ConstantTimeEqual("abc", "abc"))
	assert.False(t, security.ConstantTimeEqual("abc", "abd"))
	assert.False(t, security.ConstantTimeEqual("abc", "abcd"))
}

func TestNewBcryptHasherWithCost_ClampsOutOfRangeToDefault(t *testing.T) {
	for _, cost := range []int{0, 1, 32, -5} {
		h := security.NewBcryptHasherWithCost(cost)
		hash, err := h.Hash("whatever")
		require.NoError(t, err, "cost=%d", cost)
		assert.NoError(t, h.Compare(hash, "whatever"), "cost=%d", cost)
	}
}

func TestNewBcryptHasherWithCost_HonorsInRangeValue(t *testing.T) {
	h := security.NewBcryptHasherWithCost(4)
	hash, err := h.Hash("whatever")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "whatever"))
}
