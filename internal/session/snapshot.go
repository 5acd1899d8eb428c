// Package session models the state of one browser session as an immutable Snapshot.
// Every transition returns a new value; the receiver is never modified.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-ai/internal/models"
)

type Phase string

const (
	PhaseNoFile          Phase = "no_file"
	PhaseOptionsSelected Phase = "options_selected"
	PhaseGenerating      Phase = "generating"
	PhaseQuizDisplayed   Phase = "quiz_displayed"
)

var (
	ErrInvalidTransition  = errors.New("action not allowed in the current state")
	ErrAlreadyAnswered    = errors.New("question already answered")
	ErrUnknownOption      = errors.New("choice is not one of the options")
	ErrQuestionOutOfRange = errors.New("question does not exist")
)

type Snapshot struct {
	ID              string                      `json:"id"`
	Phase           Phase                       `json:"phase"`
	Document        *models.DocumentRef         `json:"document,omitempty"`
	Options         models.QuizOptions          `json:"options"`
	Result          *models.QuizResult          `json:"result,omitempty"`
	Answers         map[int]models.AnswerRecord `json:"answers,omitempty"`
	Score           int                         `json:"score"`
	Error           string                      `json:"error,omitempty"`
	FallbackSummary string                      `json:"fallback_summary,omitempty"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// New returns the initial snapshot of a session.
func New(id string) Snapshot {
	return Snapshot{
		ID:        id,
		Phase:     PhaseNoFile,
		Options:   models.DefaultQuizOptions(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Upload attaches a freshly uploaded document and discards any quiz built from the previous one.
func (s Snapshot) Upload(doc models.DocumentRef) (Snapshot, error) {
	if s.Phase == PhaseGenerating {
		return s, fmt.Errorf("%w: upload while generating", ErrInvalidTransition)
	}
	next := s.reset()
	next.Phase = PhaseOptionsSelected
	next.Document = &doc
	return next.touch(), nil
}

// BeginGenerate records the chosen options and enters the generating phase. A displayed quiz
// may be regenerated; it is replaced once the new run succeeds.
func (s Snapshot) BeginGenerate(opts models.QuizOptions) (Snapshot, error) {
	if s.Document == nil || (s.Phase != PhaseOptionsSelected && s.Phase != PhaseQuizDisplayed) {
		return s, fmt.Errorf("%w: generate from %s", ErrInvalidTransition, s.Phase)
	}
	if err := opts.Validate(); err != nil {
		return s, err
	}
	next := s.clone()
	next.Phase = PhaseGenerating
	next.Options = opts
	next.Error = ""
	next.FallbackSummary = ""
	return next.touch(), nil
}

// CompleteGenerate shows result as a new quiz with no answers.
func (s Snapshot) CompleteGenerate(result *models.QuizResult) (Snapshot, error) {
	if s.Phase != PhaseGenerating {
		return s, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, s.Phase)
	}
	if result == nil || len(result.Questions) == 0 {
		return s, errors.New("quiz result has no questions")
	}
	next := s.reset()
	next.Phase = PhaseQuizDisplayed
	next.Result = result.Clone()
	return next.touch(), nil
}

// FailGenerate returns to the options form with msg shown. fallback is the raw agent text, if
// there was any, and the previous quiz is not restored.
func (s Snapshot) FailGenerate(msg, fallback string) (Snapshot, error) {
	if s.Phase != PhaseGenerating {
		return s, fmt.Errorf("%w: fail from %s", ErrInvalidTransition, s.Phase)
	}
	next := s.reset()
	next.Phase = PhaseOptionsSelected
	next.Error = strings.TrimSpace(msg)
	next.FallbackSummary = strings.TrimSpace(fallback)
	return next.touch(), nil
}

// Answer grades choice for the question at index. It returns the recorded answer along with
// the new snapshot.
func (s Snapshot) Answer(index int, choice string) (Snapshot, models.AnswerRecord, error) {
	if s.Phase != PhaseQuizDisplayed || s.Result == nil {
		return s, models.AnswerRecord{}, fmt.Errorf("%w: answer from %s", ErrInvalidTransition, s.Phase)
	}
	if index < 0 || index >= len(s.Result.Questions) {
		return s, models.AnswerRecord{}, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, index+1)
	}
	if _, ok := s.Answers[index]; ok {
		return s, models.AnswerRecord{}, ErrAlreadyAnswered
	}

	q := s.Result.Questions[index]
	pos := q.OptionIndex(choice)
	if pos < 0 {
		return s, models.AnswerRecord{}, fmt.Errorf("%w: %q", ErrUnknownOption, choice)
	}

	record := models.AnswerRecord{
		QuestionIndex: index,
		UserAnswer:    q.Options[pos],
		CorrectAnswer: q.Answer,
		IsCorrect:     q.IsCorrect(choice),
	}
	next := s.clone()
	if next.Answers == nil {
		next.Answers = make(map[int]models.AnswerRecord, 1)
	}
	next.Answers[index] = record
	if record.IsCorrect {
		next.Score++
	}
	next.Error = ""
	return next.touch(), record, nil
}

// StartOver drops the quiz but keeps the uploaded document, if any.
func (s Snapshot) StartOver() (Snapshot, error) {
	if s.Phase == PhaseGenerating {
		return s, fmt.Errorf("%w: start over while generating", ErrInvalidTransition)
	}
	next := s.reset()
	next.Phase = PhaseNoFile
	if next.Document != nil {
		next.Phase = PhaseOptionsSelected
	}
	return next.touch(), nil
}

// Clear forgets the document and everything derived from it.
func (s Snapshot) Clear() (Snapshot, error) {
	if s.Phase == PhaseGenerating {
		return s, fmt.Errorf("%w: clear while generating", ErrInvalidTransition)
	}
	next := s.reset()
	next.Phase = PhaseNoFile
	next.Document = nil
	return next.touch(), nil
}

// WithError returns a copy showing msg without changing phase.
func (s Snapshot) WithError(msg string) Snapshot {
	next := s.clone()
	next.Error = strings.TrimSpace(msg)
	return next
}

// Answered reports whether the question at index already has an answer.
func (s Snapshot) Answered(index int) (models.AnswerRecord, bool) {
	rec, ok := s.Answers[index]
	return rec, ok
}

// Total is the number of questions in the displayed quiz.
func (s Snapshot) Total() int {
	if s.Result == nil {
		return 0
	}
	return len(s.Result.Questions)
}

func (s Snapshot) Complete() bool {
	return s.Total() > 0 && len(s.Answers) == s.Total()
}

// reset drops everything derived from the current quiz.
func (s Snapshot) reset() Snapshot {
	next := s.clone()
	next.Result = nil
	next.Answers = nil
	next.Score = 0
	next.Error = ""
	next.FallbackSummary = ""
	return next
}

func (s Snapshot) clone() Snapshot {
	next := s
	if s.Document != nil {
		doc := *s.Document
		next.Document = &doc
	}
	if s.Answers != nil {
		next.Answers = make(map[int]models.AnswerRecord, len(s.Answers))
		for k, v := range s.Answers {
			next.Answers[k] = v
		}
	}
	return next
}

func (s Snapshot) touch() Snapshot {
	s.UpdatedAt = time.Now().UTC()
	return s
}
