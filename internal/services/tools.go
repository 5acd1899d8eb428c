package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// Tool names exposed to the model.
const (
	ToolExtractText   = "extract_text_from_pdf"
	ToolReadProfile   = "read_user_profile"
	ToolUpdateProfile = "update_user_profile"
)

// Tool is a function the model may call during a run. Call receives the raw JSON arguments
// the model produced and returns the text fed back to it.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	Call        func(ctx context.Context, args json.RawMessage) (string, error)
}

// Toolset is the fixed set of tools declared on one agent run.
type Toolset struct {
	tools  []Tool
	byName map[string]Tool
}

func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		ts.tools = append(ts.tools, tool)
		ts.byName[tool.Name] = tool
	}
	return ts
}

func (ts *Toolset) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.tools)
}

func (ts *Toolset) Names() []string {
	if ts == nil {
		return nil
	}
	names := make([]string, len(ts.tools))
	for i, tool := range ts.tools {
		names[i] = tool.Name
	}
	return names
}

// Definitions converts the tools into chat-completion tool declarations.
func (ts *Toolset) Definitions() []openai.Tool {
	if ts.Len() == 0 {
		return nil
	}
	defs := make([]openai.Tool, 0, len(ts.tools))
	for _, tool := range ts.tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return defs
}

// Invoke runs the named tool. Failures are returned as text so the model can react to them
// instead of the run aborting.
func (ts *Toolset) Invoke(ctx context.Context, name, arguments string) string {
	if ts.Len() == 0 {
		return fmt.Sprintf("Error: unknown tool %q.", name)
	}
	tool, ok := ts.byName[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q.", name)
	}
	args := json.RawMessage(strings.TrimSpace(arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := tool.Call(ctx, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

// StudyTools returns the extraction and profile tools for one run. The extractor only
// serves documentPath, the temp file created for that run.
func StudyTools(log *zap.Logger, pdf *PDFService, profile *ProfileStore, documentPath string) *Toolset {
	log = log.Named("tools")
	allowed := filepath.Clean(documentPath)

	extract := Tool{
		Name: ToolExtractText,
		Description: "Extracts all text from a given PDF file. " +
			"Args: file_path: The absolute or relative path to the PDF file. " +
			"Returns: A single string containing all the extracted text.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"file_path": {
					Type:        jsonschema.String,
					Description: "The absolute or relative path to the PDF file.",
				},
			},
			Required: []string{"file_path"},
		},
		Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args struct {
				FilePath string `json:"file_path"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			path := filepath.Clean(strings.TrimSpace(args.FilePath))
			if path != allowed {
				log.Warn("extract refused", zap.String("path", args.FilePath))
				return "Error: access to that file is not permitted.", nil
			}

			text, err := pdf.ExtractText(path)
			if err != nil {
				log.Error("extract failed", zap.String("path", path), zap.Error(err))
				if errors.Is(err, ErrFileNotFound) {
					return "Error: The specified file was not found.", nil
				}
				return fmt.Sprintf("An error occurred while reading the PDF: %v", err), nil
			}
			if strings.TrimSpace(text) == "" {
				return "The document contains no extractable text.", nil
			}
			log.Debug("extract ok", zap.String("path", path), zap.Int("chars", len(text)))
			return text, nil
		},
	}

	read := Tool{
		Name:        ToolReadProfile,
		Description: "Reads the user profile from the JSON file.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
		Call: func(ctx context.Context, _ json.RawMessage) (string, error) {
			p, err := profile.Read()
			if err != nil {
				log.Warn("profile unreadable, using empty profile", zap.Error(err))
			}
			data, err := json.Marshal(p)
			if err != nil {
				return "", fmt.Errorf("encode profile: %w", err)
			}
			return string(data), nil
		},
	}

	update := Tool{
		Name:        ToolUpdateProfile,
		Description: "Updates a key-value pair in the user profile.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"key":   {Type: jsonschema.String, Description: "Profile key to set."},
				"value": {Type: jsonschema.String, Description: "Value to store under key."},
			},
			Required: []string{"key", "value"},
		},
		Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if strings.TrimSpace(args.Key) == "" {
				return "", errors.New("key must not be empty")
			}
			if err := profile.Update(args.Key, args.Value); err != nil {
				log.Error("profile write failed", zap.String("key", args.Key), zap.Error(err))
				return "", fmt.Errorf("could not save profile: %w", err)
			}
			return "Profile updated.", nil
		},
	}

	return NewToolset(extract, read, update)
}
