package privacy

// SanitizedError pairs a scrubbed message with the original error. Error()
// returns the sanitized text so the value is safe to log as is, while
// Unwrap preserves the chain for errors.Is and errors.As.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs an error's message with ScrubMessage. Useful at the
// boundary where an error from a library may echo a URL or credential,
// url.Parse failures quote the full input for example. Nil stays nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
