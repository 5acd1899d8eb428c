package services

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrAIUnavailable is returned when the model integration is not configured.
	ErrAIUnavailable = errors.New("model integration is not configured")

	// ErrNoAgentOutput is returned when the agent run finished without a final answer.
	ErrNoAgentOutput = errors.New("the agent did not return a result")

	// ErrFileNotFound is returned when the PDF to extract does not exist.
	ErrFileNotFound = errors.New("the specified file was not found")
)

// TransportError wraps failures talking to the remote model: network errors, API errors
// and the call timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("%s: the model did not respond in time: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call was abandoned because its deadline expired.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// FormatError means the agent output lacks the ---QUIZ--- delimiter structure.
type FormatError struct {
	Parts int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("agent output must contain exactly one %s delimiter (found %d sections)", QuizMarker, e.Parts)
}

// ParseError means the quiz section could not be decoded or contains an invalid question.
// Index is -1 when the error is not tied to a single question.
type ParseError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("question %d: %s", e.Index+1, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "parse quiz: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError wraps failures reading or writing the profile document.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s profile %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
