package models

import (
	"fmt"
	"strings"
	"time"
)

type QuizType string

const (
	QuizTrueFalse      QuizType = "True/False"
	QuizMultipleChoice QuizType = "Multiple Choice"
)

// QuizTypes lists the selectable quiz types in display order.
var QuizTypes = []QuizType{QuizMultipleChoice, QuizTrueFalse}

// ParseQuizType validates a quiz type coming from user input.
func ParseQuizType(raw string) (QuizType, error) {
	switch QuizType(strings.TrimSpace(raw)) {
	case QuizTrueFalse:
		return QuizTrueFalse, nil
	case QuizMultipleChoice:
		return QuizMultipleChoice, nil
	default:
		return "", fmt.Errorf("unknown quiz type %q", raw)
	}
}

// Bounds offered by the question-count selector.
const (
	MinQuestions     = 3
	MaxQuestions     = 15
	DefaultQuestions = 5
)

type QuizOptions struct {
	Type         QuizType `json:"quiz_type"`
	NumQuestions int      `json:"num_questions"`
}

// DefaultQuizOptions is what the options form shows before the user changes anything.
func DefaultQuizOptions() QuizOptions {
	return QuizOptions{Type: QuizMultipleChoice, NumQuestions: DefaultQuestions}
}

// Validate checks the options the core can work with. The UI bounds are checked separately
// by ValidateForUI.
func (o QuizOptions) Validate() error {
	if _, err := ParseQuizType(string(o.Type)); err != nil {
		return err
	}
	if o.NumQuestions < 1 {
		return fmt.Errorf("number of questions must be at least 1, got %d", o.NumQuestions)
	}
	return nil
}

func (o QuizOptions) ValidateForUI() error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.NumQuestions < MinQuestions || o.NumQuestions > MaxQuestions {
		return fmt.Errorf("number of questions must be between %d and %d", MinQuestions, MaxQuestions)
	}
	return nil
}

type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// OptionIndex returns the index of choice in the question's options, comparing trimmed values,
// or -1 when it is not one of them.
func (q QuizQuestion) OptionIndex(choice string) int {
	choice = strings.TrimSpace(choice)
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == choice {
			return i
		}
	}
	return -1
}

// IsCorrect reports whether choice matches the expected answer.
func (q QuizQuestion) IsCorrect(choice string) bool {
	return strings.TrimSpace(choice) == strings.TrimSpace(q.Answer)
}

type QuizResult struct {
	Summary   string         `json:"summary"`
	Questions []QuizQuestion `json:"questions"`
}

// Clone returns a deep copy so session snapshots never share question slices.
func (r *QuizResult) Clone() *QuizResult {
	if r == nil {
		return nil
	}
	out := &QuizResult{Summary: r.Summary}
	if r.Questions != nil {
		out.Questions = make([]QuizQuestion, len(r.Questions))
		for i, q := range r.Questions {
			out.Questions[i] = QuizQuestion{
				Question: q.Question,
				Options:  append([]string(nil), q.Options...),
				Answer:   q.Answer,
			}
		}
	}
	return out
}

type AnswerRecord struct {
	QuestionIndex int    `json:"question_index"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// UserProfile is the flat preference document shared with the agent.
type UserProfile map[string]string

// Document is an uploaded PDF kept for the session that uploaded it.
type Document struct {
	ID           int64
	SessionID    string
	OriginalName string
	PageCount    int
	Size         int64
	Content      []byte
	UploadedAt   time.Time
}

// DocumentRef is the part of a Document that session state carries around.
type DocumentRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PageCount int    `json:"page_count"`
	Size      int64  `json:"size"`
}

func (d *Document) Ref() DocumentRef {
	return DocumentRef{ID: d.ID, Name: d.OriginalName, PageCount: d.PageCount, Size: d.Size}
}
