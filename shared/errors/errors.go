// Package errors holds the domain error values the command interpreter maps
// to protocol reply statuses.
package errors

import (
	"errors"
	"fmt"
)

var (
	NotFound      = errors.New("not found")
	NotOwner      = errors.New("belongs to another user")
	AlreadyExists = errors.New("already exists")
	WrongPassword = errors.New("bad password")
	AlreadyOnline = errors.New("already logged in")
	EmptyThread   = errors.New("thread is empty")
)

// ValidationError rejects a request before it reaches the registries.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}
