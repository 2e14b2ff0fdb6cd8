package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across services. The api layer maps these onto
// response codes; services never touch http types directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid lifecycle state")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError names the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// UpstreamError marks a collaborator failure (source fetch, invite lookup,
// asset upload, notification). Op identifies the collaborator for logs.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
