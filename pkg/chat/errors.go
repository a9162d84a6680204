package chat

import "github.com/pkg/errors"

var (
	// ErrBusy is returned when a submission arrives while a request is in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrEmptyMessage is returned for blank text without a pending attachment.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidIndex is returned for indices outside the timeline.
	ErrInvalidIndex = errors.New("invalid message index")
	// ErrInvalidTarget is returned when the node at an index has the wrong role
	// for the operation.
	ErrInvalidTarget = errors.New("invalid target message")
	// ErrRetriesExhausted wraps the last attempt error once the retry budget is
	// used up.
	ErrRetriesExhausted = errors.New("could not get response after retrying")
	// ErrSessionSwitched is returned when the session changed while an
	// operation was in flight and its result was dropped.
	ErrSessionSwitched = errors.New("session changed while the request was in flight")
)

// SentinelText is the content of the assistant node appended when a send
// exhausts its retries.
const SentinelText = "Error: Could not get response after retrying. Please check your connection."
