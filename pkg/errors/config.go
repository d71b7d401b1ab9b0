package errors

import (
	stderrors "errors"
	"strings"
)

var (
	ErrMissingTaskStore = stderrors.New("missing task store")
	ErrMissingHandler   = stderrors.New("missing task handler")
	ErrUnknownStore     = stderrors.New("unknown store driver")
)

/*
ConfigError reports every problem found while assembling a component, so a
misconfigured server fails once with the full list.
*/
type ConfigError struct {
	Component string
	Errs      []error
}

/*
NewConfigError returns nil when errs is empty, letting callers collect
problems unconditionally and return the result.
*/
func NewConfigError(component string, errs ...error) error {
	if len(errs) == 0 {
		return nil
	}

	return &ConfigError{Component: component, Errs: errs}
}

func (err *ConfigError) Error() string {
	msgs := make([]string, 0, len(err.Errs))

	for _, cause := range err.Errs {
		msgs = append(msgs, cause.Error())
	}

	return err.Component + ": " + strings.Join(msgs, "; ")
}

func (err *ConfigError) Unwrap() []error {
	return err.Errs
}
