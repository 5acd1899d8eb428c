package api

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"quiz-ai/internal/services"
	"quiz-ai/internal/session"
)

// User-facing messages rendered in the page banner.
const (
	msgNoFile             = "Please choose a PDF file to upload."
	msgNoDocument         = "Please upload a PDF file first."
	msgNoChoice           = "Please select an answer before submitting."
	msgBusy               = "Another request for this session is still being processed. Please try again."
	msgGenerating         = "A quiz is still being generated for this session. Please wait for it to finish."
	msgInterrupted        = "The previous quiz generation was interrupted. Please try again."
	msgDocumentGone       = "The uploaded file is no longer available. Please upload it again."
	msgDocumentUnreadable = "Could not load the uploaded file."
	msgInternal           = "Something went wrong. Please try again."
)

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrUploadTooLarge):
		return "The file is too large to upload."
	case errors.Is(err, services.ErrNotPDF):
		return "Only PDF files are supported."
	default:
		return "The file could not be uploaded."
	}
}

func actionMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadyAnswered):
		return "You already answered this question."
	case errors.Is(err, session.ErrUnknownOption):
		return "That answer is not one of the options."
	case errors.Is(err, session.ErrQuestionOutOfRange):
		return "That question does not exist."
	case errors.Is(err, session.ErrInvalidTransition):
		return "That action is not available right now."
	default:
		return sentence(err.Error())
	}
}

// generationMessage explains a failed agent run. For output that did not fit the quiz format
// the page also shows the agent's raw text.
func generationMessage(err error) string {
	var (
		terr *services.TransportError
		ferr *services.FormatError
		perr *services.ParseError
	)
	switch {
	case errors.As(err, &terr) && terr.Timeout():
		return "The AI agent did not respond in time. Please try again."
	case errors.As(err, &terr):
		return fmt.Sprintf("Could not reach the AI agent: %v", terr.Err)
	case errors.Is(err, services.ErrNoAgentOutput):
		return "The agent did not return a result."
	case errors.Is(err, services.ErrAIUnavailable):
		return "The AI agent is not configured."
	case errors.As(err, &ferr), errors.As(err, &perr):
		return fmt.Sprintf("Could not parse the quiz from the agent's response (%v). The raw response is shown below.", err)
	default:
		return sentence("quiz generation failed: " + err.Error())
	}
}

// sentence capitalizes msg and ends it with a period.
func sentence(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
