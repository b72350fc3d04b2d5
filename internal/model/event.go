package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type ErrorKind string

const (
	// ErrorKindLoadFailed marks a feed refresh that did not complete.
	ErrorKindLoadFailed ErrorKind = "load_failed"
)

func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindLoadFailed:
		return "Can't update latest news"
	default:
		return "Something went wrong"
	}
}

// ErrorEvent is a user-visible failure waiting to be acknowledged.
type ErrorEvent struct {
	ID   string    `json:"id"`
	Kind ErrorKind `json:"kind"`
}

// NewErrorEvent returns an event with a fresh random id.
func NewErrorEvent(kind ErrorKind) ErrorEvent {
	return ErrorEvent{ID: uuid.NewString(), Kind: kind}
}

// MarshalJSON adds the user-facing message for the event's kind.
func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string    `json:"id"`
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{e.ID, e.Kind, e.Kind.Message()})
}
