package contract

import "errors"

var (
	ErrModelInvoke            = errors.New("model invoke failed")
	ErrPersistence            = errors.New("persistence failed")
	ErrSchemaViolation        = errors.New("model response violates schema")
	ErrPromptMissing          = errors.New("required prompt is missing")
	ErrValidation             = errors.New("validation failed")
	ErrIterationLimit         = errors.New("turn exceeded completion iteration limit")
	ErrUnknownVariant         = errors.New("unknown agent variant")
	ErrIntegrationUnavailable = errors.New("integration unavailable")
	ErrInvalidIdentifier      = errors.New("invalid identifier")
	ErrNotFound               = errors.New("record not found")
)

// IsCollaboratorFault reports whether err must propagate out of a turn
// instead of being converted into a user-facing sentence.
func IsCollaboratorFault(err error) bool {
	return errors.Is(err, ErrModelInvoke) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrIterationLimit)
}
