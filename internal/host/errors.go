package host

import "errors"

var (
	ErrEntryExists   = errors.New("config entry already loaded")
	ErrEntryNotFound = errors.New("config entry not found")
)

// UpdateFailedError is how a coordinator reports a failed refresh.
type UpdateFailedError struct {
	Message string
	Err     error
}

func (e *UpdateFailedError) Error() string {
	return "update failed: " + e.Message
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}
