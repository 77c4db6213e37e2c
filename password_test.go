package accounts_test

import (
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := accounts.HashPassword("Sup3r!Secret")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "Sup3r!Secret", hash)

	// salted per call
	again, err := accounts.HashPassword("Sup3r!Secret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := accounts.HashPassword("")
	assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := accounts.HashPassword("Sup3r!Secret")
	require.NoError(t, err)

	assert.NoError(t, accounts.ComparePasswordAndHash("Sup3r!Secret", hash))
	assert.ErrorIs(t,
		accounts.ComparePasswordAndHash("wrong-password", hash),
		accounts.ErrMismatchedHashAndPassword,
	)
}

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		strong   bool
	}{
		{"all four classes", "Str0ng!Pass", true},
		{"long mixed", "Tr1cky#Passphrase", true},
		{"too short", "S0!a", false},
		{"seven chars", "Ab1!Ab1", false},
		{"no uppercase", "str0ng!pass", false},
		{"no lowercase", "STR0NG!PASS", false},
		{"no digit", "Strong!Pass", false},
		{"no punctuation", "Str0ngPass1", false},
		{"common password", "password", false},
		{"common password long", "123456789", false},
		{"common password denylisted", "admin123", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.strong, accounts.IsStrongPassword(tc.password))
		})
	}
}

func TestRandomPasswordHash(t *testing.T) {
	hash := accounts.RandomPasswordHash()
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, hash, accounts.RandomPasswordHash())
}
