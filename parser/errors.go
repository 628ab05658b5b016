package parser

import (
	"errors"
	"fmt"
)

var (
	ErrNilMessage     = errors.New("nil message")
	ErrMissingPayload = errors.New("message has no payload")

	// ErrNotParsed is the panic value of Message accessors called on a
	// Message that did not come out of Parse.
	ErrNotParsed = errors.New("message accessed before a successful parse")
)

// MalformedInputError means a single message could not be parsed at all:
// it had no payload, or a body that could not be decoded or walked.
type MalformedInputError struct {
	MessageID string
	Err       error
}

func (e *MalformedInputError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("malformed message: %v", e.Err)
	}
	return fmt.Sprintf("malformed message %s: %v", e.MessageID, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// IsMalformedInput reports whether err (or any error in its chain) is a
// MalformedInputError.
func IsMalformedInput(err error) bool {
	var malformed *MalformedInputError
	return errors.As(err, &malformed)
}
