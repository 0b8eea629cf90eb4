package session

import (
	"errors"
	"fmt"
)

// Kind classifies why a session failed.
type Kind string

const (
	KindInvalidExpiry      Kind = "invalid_expiry"
	KindUnexpectedMessage  Kind = "unexpected_message"
	KindClientDisconnected Kind = "client_disconnected"
	KindSource             Kind = "source_error"
	KindPersist            Kind = "persist_error"
	// KindTransform is a persist failure caused by an unparseable start time.
	KindTransform Kind = "transform_error"
)

// Error is the failure reason of a session. Err holds the component error that caused it.
type Error struct {
	Kind  Kind
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s during %s", e.Kind, e.Phase)
	}
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a session error, or an empty Kind when err is not one.
func KindOf(err error) Kind {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind
	}
	return ""
}

// errorFrame is the payload of the single error reply sent before the channel closes.
type errorFrame struct {
	Type   Kind   `json:"type"`
	Detail string `json:"detail"`
}

func (e *Error) detail() string {
	switch e.Kind {
	case KindInvalidExpiry:
		return "expiry is not a unix timestamp"
	case KindUnexpectedMessage:
		return "unexpected websocket message"
	case KindClientDisconnected:
		return "client disconnected"
	case KindSource:
		return "failed loading activities from strava"
	case KindTransform:
		return "failed to interpret activity start time"
	default:
		return "failed saving activities"
	}
}
