package generation

import (
	"errors"
	"fmt"

	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
)

var (
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrNoAssets          = errors.New("no images generated")
	ErrMissingAPIKey     = errors.New("missing fal.ai API key")
)

// InsufficientCreditsError is returned before any provider call when the
// balance does not cover the action.
type InsufficientCreditsError struct {
	Action    entitlements.Action
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits for %s: required %d, available %d", e.Action, e.Required, e.Available)
}

// ValidationError carries a message that can be shown to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProviderError is a failure reported by, or while talking to, an upstream
// generation provider.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) Unwrap() error { return e.Err }

func validationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
