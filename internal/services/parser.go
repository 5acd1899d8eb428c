package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"quiz-ai/internal/models"
)

// ParseAgentOutput splits the agent's final answer into its summary and quiz sections and
// validates every question. It never panics on malformed input; callers get a *FormatError
// or *ParseError and should keep raw as a fallback summary.
func ParseAgentOutput(raw string) (*models.QuizResult, error) {
	parts := strings.Split(raw, QuizMarker)
	if len(parts) != 2 {
		return nil, &FormatError{Parts: len(parts)}
	}

	summary := strings.TrimSpace(strings.ReplaceAll(parts[0], SummaryMarker, ""))
	jsonStr := stripFence(parts[1])
	if jsonStr == "" {
		return nil, &ParseError{Index: -1, Reason: "quiz section is empty"}
	}

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(jsonStr), &questions); err != nil {
		return nil, &ParseError{Index: -1, Reason: "invalid quiz json", Err: err}
	}
	if len(questions) == 0 {
		return nil, &ParseError{Index: -1, Reason: "quiz contains no questions"}
	}
	for i, q := range questions {
		if err := validateQuestion(i, q); err != nil {
			return nil, err
		}
	}

	return &models.QuizResult{Summary: summary, Questions: questions}, nil
}

func validateQuestion(index int, q models.QuizQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return &ParseError{Index: index, Reason: "question text is empty"}
	}
	if len(q.Options) < 2 {
		return &ParseError{Index: index, Reason: fmt.Sprintf("needs at least 2 options, got %d", len(q.Options))}
	}
	if q.OptionIndex(q.Answer) < 0 {
		return &ParseError{Index: index, Reason: fmt.Sprintf("answer %q is not one of the options", q.Answer)}
	}
	return nil
}

// stripFence removes a leading ```json (or bare ```) marker and a trailing ``` marker.
func stripFence(section string) string {
	s := strings.TrimSpace(section)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FormatAgentOutput renders a result in the exact shape the agent is asked to produce.
func FormatAgentOutput(result *models.QuizResult) (string, error) {
	questions := result.Questions
	if questions == nil {
		questions = []models.QuizQuestion{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		return "", fmt.Errorf("encode quiz: %w", err)
	}

	var b strings.Builder
	b.WriteString(SummaryMarker + "\n\n")
	b.WriteString(result.Summary)
	b.WriteString("\n\n" + QuizMarker + "\n\n")
	b.WriteString("```json\n")
	b.WriteString(strings.TrimRight(buf.String(), "\n"))
	b.WriteString("\n```\n")
	return b.String(), nil
}
