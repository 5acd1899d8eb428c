package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// AgentRequest is one agent run: instructions become the system message, Prompt the user
// message, and Tools are declared to the model.
type AgentRequest struct {
	Name         string
	Instructions string
	Prompt       string
	Tools        *Toolset
}

// Agent returns the final text answer of a run, or "" if the model produced none.
type Agent interface {
	Run(ctx context.Context, req AgentRequest) (string, error)
}

// AgentService runs the tool-calling loop against an OpenAI-compatible chat completions
// endpoint. Callers see a single request/response.
type AgentService struct {
	client   *openai.Client
	model    string
	maxTurns int
	log      *zap.Logger
}

type AgentConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	MaxTurns int
}

func NewAgentService(cfg AgentConfig, log *zap.Logger) (*AgentService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Model) == "" {
		return nil, ErrAIUnavailable
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 8
	}

	return &AgentService{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxTurns: maxTurns,
		log:      log.Named("agent"),
	}, nil
}

func (s *AgentService) Run(ctx context.Context, req AgentRequest) (string, error) {
	log := s.log.With(zap.String("agent", req.Name), zap.String("model", s.model))

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.Instructions},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}
	tools := req.Tools.Definitions()

	for turn := 1; turn <= s.maxTurns; turn++ {
		log.Debug("requesting completion", zap.Int("turn", turn), zap.Int("messages", len(messages)))

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", &TransportError{Op: "request chat completion", Err: err}
		}
		if len(resp.Choices) == 0 {
			log.Warn("model returned no choices", zap.Int("turn", turn))
			return "", nil
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			out := strings.TrimSpace(msg.Content)
			if out == "" {
				log.Warn("model returned empty content", zap.Int("turn", turn))
			}
			return out, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			log.Info("tool call", zap.String("tool", call.Function.Name), zap.String("call_id", call.ID))
			result := req.Tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
		if err := ctx.Err(); err != nil {
			return "", &TransportError{Op: "agent run", Err: err}
		}
	}

	log.Warn("agent stopped without a final answer", zap.Int("max_turns", s.maxTurns))
	return "", nil
}
