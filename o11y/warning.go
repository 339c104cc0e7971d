package o11y

import "errors"

// errWarning is what every warning matches with errors.Is.
var errWarning = errors.New("o11y: warning")

// warning is an expected failure, such as a unique violation turned into a no-op or a
// canceled statement. Spans record it without marking the result as an error.
type warning struct {
	msg string
}

func (w *warning) Error() string { return w.msg }

// Is matches only the shared sentinel, so two warnings with the same text stay distinct.
func (w *warning) Is(target error) bool {
	return target == errWarning //nolint:errorlint
}

// NewWarning returns an error that IsWarning reports, for use as a sentinel.
func NewWarning(msg string) error {
	return &warning{msg: msg}
}

// IsWarning reports whether any error in the chain of err is a warning.
func IsWarning(err error) bool {
	return errors.Is(err, errWarning)
}

// IsWarningNoUnwrap reports whether target is the warning sentinel itself. Error types use
// it in their own Is to declare themselves warnings, see httpclient.HTTPError.
func IsWarningNoUnwrap(target error) bool {
	return target == errWarning //nolint:errorlint
}
