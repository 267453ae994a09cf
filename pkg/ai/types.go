package ai

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured indicates no credential was supplied for the completion service.
	ErrNotConfigured = errors.New("ai completion service is not configured")
	// ErrQuotaExceeded indicates the provider rejected the call for quota or rate limits.
	ErrQuotaExceeded = errors.New("ai completion quota exceeded")
	// ErrInvalidCredential indicates the provider rejected the configured credential.
	ErrInvalidCredential = errors.New("ai completion credential rejected")
	// ErrCompletionTimeout indicates the call did not finish within the configured timeout.
	ErrCompletionTimeout = errors.New("ai completion timed out")
	// ErrCompletionFailed covers every other provider failure.
	ErrCompletionFailed = errors.New("ai completion failed")
)

// Completer turns a prompt into generated text using an external model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Probe performs a minimal call to check that the credential is accepted.
	Probe(ctx context.Context) error
}
