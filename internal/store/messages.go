package store

import (
	"errors"
	"strings"

	"github.com/openfactory/designcore/internal/types"
)

// Finite mapping of known backend error signatures to presentation strings.
// Anything unmapped falls back to a generic retry prompt so the UI never has
// to render a raw driver error.
var knownMessages = map[string]string{
	"invalid login credentials":                  "Incorrect email or password, please try again",
	"user already registered":                    "This email is already registered, please sign in",
	"email not confirmed":                        "Please confirm your email address before signing in",
	"too many requests":                          "Too many requests, please try again later",
	"password should be at least 6 characters":   "Password must be at least 6 characters",
	"invalid email":                              "Please enter a valid email address",
	"signup requires a valid password":           "Please enter a password",
	"user not found":                             "No account found for this email, please register first",
	"invalid token":                              "Your session has expired, please sign in again",
	"duplicate key value violates unique constraint": "This record already exists",
}

const genericFailure = "Something went wrong, please try again"

// MessageFor translates any error from the gateway into a human-readable
// string for the store's error field.
func MessageFor(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var txErr *types.TransactionError
	if errors.As(err, &txErr) {
		if txErr.Cause != nil {
			if msg := lookupKnown(txErr.Cause.Error()); msg != "" {
				return msg
			}
		}
		return "The operation failed after several attempts, please try again"
	}

	if msg := lookupKnown(err.Error()); msg != "" {
		return msg
	}
	return genericFailure
}

func lookupKnown(raw string) string {
	lowered := strings.ToLower(raw)
	for signature, message := range knownMessages {
		if strings.Contains(lowered, signature) {
			return message
		}
	}
	return ""
}
