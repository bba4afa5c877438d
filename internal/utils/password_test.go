package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, err := HashPassword("Str0ng!Pass99", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("Str0ng!Pass99", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "Str0ng!Pass99", a)
	assert.NotEqual(t, a, b, "two hashes of the same password must differ")
	assert.True(t, VerifyPassword(a, "Str0ng!Pass99"))
	assert.True(t, VerifyPassword(b, "Str0ng!Pass99"))
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := CheckPassword(hash, "secret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "other-pass")
	require.NoError(t, err, "a mismatch is not an error")
	assert.False(t, ok)

	_, err = CheckPassword("not-a-bcrypt-hash", "secret-pass")
	assert.Error(t, err)
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "fluffy", NormalizeAnswer("  Fluffy "))
	assert.Equal(t, "", NormalizeAnswer("   "))
}
