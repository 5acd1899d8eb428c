package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"quiz-ai/internal/models"
)

const agentName = "StudyNotesAgent"

// Generation is the outcome of one agent run. Raw is kept even when parsing fails so the
// caller can show it instead of an empty page.
type Generation struct {
	Result *models.QuizResult
	Raw    string
}

// QuizService coordinates the temp file, the agent call and response parsing.
type QuizService struct {
	agent   Agent
	pdf     *PDFService
	profile *ProfileStore
	tempDir string
	timeout time.Duration
	log     *zap.Logger
}

func NewQuizService(agent Agent, pdf *PDFService, profile *ProfileStore, tempDir string, timeout time.Duration, log *zap.Logger) *QuizService {
	return &QuizService{
		agent:   agent,
		pdf:     pdf,
		profile: profile,
		tempDir: tempDir,
		timeout: timeout,
		log:     log.Named("quiz"),
	}
}

// Generate runs the agent once over doc. Errors are *TransportError, ErrNoAgentOutput,
// *FormatError or *ParseError; in the last two cases Generation.Raw holds the agent text.
func (s *QuizService) Generate(ctx context.Context, doc *models.Document, opts models.QuizOptions) (Generation, error) {
	if s.agent == nil {
		return Generation{}, ErrAIUnavailable
	}
	if err := opts.Validate(); err != nil {
		return Generation{}, err
	}

	path, cleanup, err := s.writeTemp(doc.Content)
	if err != nil {
		return Generation{}, err
	}
	defer cleanup()

	log := s.log.With(zap.String("document", doc.OriginalName), zap.String("quiz_type", string(opts.Type)), zap.Int("questions", opts.NumQuestions))
	log.Info("starting agent run")

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	raw, err := s.agent.Run(ctx, AgentRequest{
		Name:         agentName,
		Instructions: BuildInstructions(opts.Type, opts.NumQuestions),
		Prompt:       BuildPrompt(path),
		Tools:        StudyTools(s.log, s.pdf, s.profile, path),
	})
	if err != nil {
		var terr *TransportError
		if !errors.As(err, &terr) {
			err = &TransportError{Op: "agent run", Err: err}
		}
		log.Error("agent run failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return Generation{}, err
	}
	if raw == "" {
		log.Warn("agent returned no output", zap.Duration("elapsed", time.Since(started)))
		return Generation{}, ErrNoAgentOutput
	}

	result, err := ParseAgentOutput(raw)
	if err != nil {
		log.Warn("agent output rejected", zap.Error(err))
		return Generation{Raw: raw}, err
	}

	log.Info("agent run complete", zap.Duration("elapsed", time.Since(started)), zap.Int("parsed_questions", len(result.Questions)))
	return Generation{Result: result, Raw: raw}, nil
}

// writeTemp stores the PDF bytes for the duration of one run. cleanup is safe to call once
// on every path.
func (s *QuizService) writeTemp(content []byte) (string, func(), error) {
	tmp, err := os.CreateTemp(s.tempDir, "quiz-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove temp file", zap.String("path", path), zap.Error(err))
		}
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}
