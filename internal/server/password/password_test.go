package password

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Corr3ct-Horse")
	require.NoError(t, err)
	assert.NotEqual(t, "Corr3ct-Horse", digest)

	ok, err := h.Verify(ctx, digest, "Corr3ct-Horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, digest, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_InvalidDigest(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	_, err := h.Verify(context.Background(), "not-a-digest", "x")
	assert.Error(t, err)
}

func TestBcryptHasher_CancelledContext(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "whatever1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		attrs    []string
		wantErr  string
	}{
		{"strong", "v9!Kestrel-lamp", []string{"alice", "alice@example.com"}, ""},
		{"short", "a1!b", nil, "at least 8 characters"},
		{"numeric", "1234509876", nil, "entirely numeric"},
		{"common", "Password123", nil, "too common"},
		{"contains username", "alice2026!", []string{"alice"}, "too similar"},
		{"contains email local part", "xx-jsmith-xx", []string{"jsmith@clinic.org"}, "too similar"},
		{"short attributes ignored", "zz-al-zz-99", []string{"al"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStrength(tt.password, tt.attrs...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrValidation))

			var ve *common.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Fields["password"], tt.wantErr)
		})
	}
}

func TestLongestCommonSubstring(t *testing.T) {
	assert.Equal(t, 0, longestCommonSubstring("", "abc"))
	assert.Equal(t, 3, longestCommonSubstring("xxabcyy", "zabcz"))
	assert.Equal(t, 5, longestCommonSubstring("hello", "hello"))
}
