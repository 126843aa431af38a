package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw12345")
	require.NoError(t, err)

	assert.NotEqual(t, "pw12345", hash)
	assert.True(t, CheckPassword(hash, "pw12345"))
	assert.False(t, CheckPassword(hash, "wrongpass"))
}

func TestHashPasswordSalted(t *testing.T) {
	hash1, err := HashPassword("pw12345")
	require.NoError(t, err)
	hash2, err := HashPassword("pw12345")
	require.NoError(t, err)

	// bcrypt salts every hash
	assert.NotEqual(t, hash1, hash2)
}

func TestCheckPasswordBadHash(t *testing.T) {
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "pw12345"))
}
