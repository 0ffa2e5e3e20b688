package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("register: %w", NewValidationError("email", "must be a valid email address"))

	require.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be a valid email address", ve.Fields["email"])
}

func TestValidationError_MessageIsSortedByField(t *testing.T) {
	ve := &ValidationError{Fields: map[string]string{
		"username": "cannot be blank",
		"email":    "cannot be blank",
	}}

	assert.Equal(t, "validation error: email: cannot be blank; username: cannot be blank", ve.Error())
}

func TestValidationError_EmptyFields(t *testing.T) {
	ve := &ValidationError{}
	assert.Equal(t, ErrValidation.Error(), ve.Error())
}

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	_, err = hex.DecodeString(s)
	assert.NoError(t, err)

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("secret")
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}

	WipeByteArray(nil)
}
