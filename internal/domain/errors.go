package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrRoomNotFound = errors.New("room not found")
	ErrEmptyMessage = errors.New("message is required")
)

// ValidationError carries every human-readable problem found with an input.
type ValidationError struct {
	Messages []string
}

func NewValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// PersistenceError reports a failed write or read against the local snapshot store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ImageUploadError reports that an item's image could not be stored.
type ImageUploadError struct {
	Err error
}

func (e *ImageUploadError) Error() string {
	return fmt.Sprintf("failed to upload image: %v", e.Err)
}

func (e *ImageUploadError) Unwrap() error { return e.Err }

type ChatErrorKind string

const (
	ChatTimeout ChatErrorKind = "timeout"
	ChatNetwork ChatErrorKind = "network"
	ChatStatus  ChatErrorKind = "status"
	ChatDecode  ChatErrorKind = "decode"
)

// ChatError reports a failed round trip to the language model.
type ChatError struct {
	Kind ChatErrorKind
	Err  error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat %s error: %v", e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }
