package security

import (
	"testing"

	"github.com/sobacalgary/backoffice/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() config.PasswordConfig {
	// Small parameters keep the test fast; production values come from config.
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Abcdef12", testParams())
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("Abcdef12", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("Abcdef12", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Abcdef12", true},
		{"Str0ngEnough", true},
		{"short1A", false},
		{"alllowercase1", false},
		{"ALLUPPERCASE1", false},
		{"NoDigitsHere", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidatePasswordStrength(tc.password)
		if tc.ok {
			assert.NoError(t, err, tc.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tc.password)
		}
	}
}
