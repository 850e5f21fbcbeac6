package app

import "fmt"

// DomainError is an actor-facing failure: the command layer shows Message to
// the actor instead of treating it as an internal error.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}
