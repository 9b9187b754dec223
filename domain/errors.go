package domain

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated means no owner identity could be resolved. Reads treat
// it as an empty result; writes surface it.
var ErrNotAuthenticated = errors.New("not authenticated")

// ValidationError is raised before any network call. A mutation that fails
// validation is never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
