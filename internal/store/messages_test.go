package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfactory/designcore/internal/types"
)

func TestMessageForValidationError(t *testing.T) {
	err := types.NewValidationError("name", "project name must not be empty")
	assert.Equal(t, "project name must not be empty", MessageFor(err))
}

func TestMessageForTransactionError(t *testing.T) {
	// A mapped cause keeps its specific presentation string.
	err := &types.TransactionError{
		Operation: "saveProject",
		Cause:     errors.New("ERROR: duplicate key value violates unique constraint \"projects_pkey\""),
	}
	assert.Equal(t, "This record already exists", MessageFor(err))

	// Unmapped causes fall back to the retry-exhausted message.
	err = &types.TransactionError{Operation: "saveProject", Cause: errors.New("connection reset")}
	assert.Equal(t, "The operation failed after several attempts, please try again", MessageFor(err))
}

func TestMessageForKnownSignatures(t *testing.T) {
	assert.Equal(t, "Incorrect email or password, please try again",
		MessageFor(errors.New("Invalid login credentials")))
	assert.Equal(t, "Your session has expired, please sign in again",
		MessageFor(errors.New("invalid token: signature mismatch")))
	assert.Equal(t, "No account found for this email, please register first",
		MessageFor(errors.New("user not found")))
}

func TestMessageForUnknownError(t *testing.T) {
	assert.Equal(t, "Something went wrong, please try again", MessageFor(errors.New("kaboom")))
	assert.Equal(t, "", MessageFor(nil))
}
