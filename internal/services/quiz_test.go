package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"quiz-ai/internal/models"
	"quiz-ai/internal/pdftest"
)

// stubAgent records each run and delegates to fn.
type stubAgent struct {
	mu    sync.Mutex
	calls []AgentRequest
	fn    func(ctx context.Context, req AgentRequest) (string, error)
}

func (a *stubAgent) Run(ctx context.Context, req AgentRequest) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.mu.Unlock()
	return a.fn(ctx, req)
}

func (a *stubAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func promptPath(prompt string) string {
	return strings.TrimPrefix(prompt, BuildPrompt(""))
}

func newTestQuizService(t *testing.T, agent Agent, timeout time.Duration) (*QuizService, string) {
	t.Helper()
	tempDir := t.TempDir()
	profile := NewProfileStore(filepath.Join(t.TempDir(), "user_data.json"))
	return NewQuizService(agent, NewPDFService(zap.NewNop()), profile, tempDir, timeout, zap.NewNop()), tempDir
}

func testDocument() *models.Document {
	return &models.Document{
		ID:           1,
		OriginalName: "notes.pdf",
		Content:      pdftest.Build("Paris is the capital of France."),
	}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func TestQuizServiceGenerate(t *testing.T) {
	var extracted string
	agent := &stubAgent{fn: func(ctx context.Context, req AgentRequest) (string, error) {
		path := promptPath(req.Prompt)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("temp file should exist during the run: %v", err)
		}
		args, _ := json.Marshal(map[string]string{"file_path": path})
		extracted = req.Tools.Invoke(ctx, ToolExtractText, string(args))
		return sampleOutput, nil
	}}
	svc, tempDir := newTestQuizService(t, agent, time.Second)

	gen, err := svc.Generate(context.Background(), testDocument(), models.QuizOptions{Type: models.QuizMultipleChoice, NumQuestions: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.Result == nil || len(gen.Result.Questions) != 1 || gen.Result.Questions[0].Answer != "Paris" {
		t.Fatalf("unexpected result %+v", gen.Result)
	}
	if gen.Raw != sampleOutput {
		t.Errorf("raw output not kept")
	}
	if !strings.Contains(extracted, "Paris is the capital of France.") {
		t.Errorf("agent could not extract the document: %q", extracted)
	}
	if agent.callCount() != 1 {
		t.Errorf("expected exactly one agent call, got %d", agent.callCount())
	}

	req := agent.calls[0]
	if req.Name != agentName || req.Tools.Len() != 3 {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Instructions, "exactly 1 questions") {
		t.Errorf("instructions missing question count")
	}
	assertDirEmpty(t, tempDir)
}

func TestQuizServiceParseFailureKeepsRaw(t *testing.T) {
	cases := map[string]struct {
		raw   string
		check func(error) bool
	}{
		"Format": {
			raw:   "Here is a summary without any quiz.",
			check: func(err error) bool { var e *FormatError; return errors.As(err, &e) },
		},
		"Parse": {
			raw:   "---SUMMARY---\ns\n---QUIZ---\n```json\n[{\"question\":\"q\"\n```",
			check: func(err error) bool { var e *ParseError; return errors.As(err, &e) },
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			agent := &stubAgent{fn: func(context.Context, AgentRequest) (string, error) { return tc.raw, nil }}
			svc, tempDir := newTestQuizService(t, agent, time.Second)

			gen, err := svc.Generate(context.Background(), testDocument(), models.DefaultQuizOptions())
			if !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if gen.Result != nil {
				t.Error("no result expected on parse failure")
			}
			if gen.Raw != tc.raw {
				t.Errorf("raw text not preserved: %q", gen.Raw)
			}
			assertDirEmpty(t, tempDir)
		})
	}
}

func TestQuizServiceTimeout(t *testing.T) {
	agent := &stubAgent{fn: func(ctx context.Context, _ AgentRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	svc, tempDir := newTestQuizService(t, agent, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Generate(context.Background(), testDocument(), models.DefaultQuizOptions())
	var terr *TransportError
	if !errors.As(err, &terr) || !terr.Timeout() {
		t.Fatalf("expected timeout TransportError, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not enforced")
	}
	assertDirEmpty(t, tempDir)
}

func TestQuizServiceNoOutput(t *testing.T) {
	agent := &stubAgent{fn: func(context.Context, AgentRequest) (string, error) { return "", nil }}
	svc, tempDir := newTestQuizService(t, agent, time.Second)

	_, err := svc.Generate(context.Background(), testDocument(), models.DefaultQuizOptions())
	if !errors.Is(err, ErrNoAgentOutput) {
		t.Fatalf("expected ErrNoAgentOutput, got %v", err)
	}
	assertDirEmpty(t, tempDir)
}

func TestQuizServiceRejectsInvalidOptions(t *testing.T) {
	agent := &stubAgent{fn: func(context.Context, AgentRequest) (string, error) { return sampleOutput, nil }}
	svc, _ := newTestQuizService(t, agent, time.Second)

	_, err := svc.Generate(context.Background(), testDocument(), models.QuizOptions{Type: "Essay", NumQuestions: 3})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if agent.callCount() != 0 {
		t.Fatal("agent must not be called with invalid options")
	}
}
