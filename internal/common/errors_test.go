package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserErrorFormatting(t *testing.T) {
	bare := NewUserError("configuration is broken", nil)
	assert.Equal(t, "configuration is broken", bare.Error())

	wrapped := NewUserError("failed to open ledger", errors.New("permission denied"))
	assert.Equal(t, "failed to open ledger: permission denied", wrapped.Error())
}

func TestUserErrorUnwrap(t *testing.T) {
	err := NewUserError("invalid configuration", fmt.Errorf("ledger.file: %w", ErrMissingConfig))

	var userErr *UserError
	assert.ErrorAs(t, err, &userErr)
	assert.Equal(t, "invalid configuration", userErr.UserMessage)
	assert.ErrorIs(t, err, ErrMissingConfig)
}
