package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/docquiz/internal/llm/prompts"
	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"

	openai "github.com/sashabaranov/go-openai"
)

const maxTitleRunes = 80

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Generate asks the model for a quiz over doc and returns the raw JSON
// content of the reply. The shape of the reply is not checked here.
func (c *Client) Generate(ctx context.Context, doc model.Document) (json.RawMessage, error) {
	system, err := prompts.System()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	user, err := prompts.User()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	attachment, err := attachmentPart(doc)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: user},
				attachment,
			}},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        "quiz",
				Description: "A multiple choice quiz about the attached document",
				Schema:      quiz.Schema(),
				Strict:      true,
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := stripFence(resp.Choices[0].Message.Content)
	slog.Debug("LLM response", "model", c.model, "bytes", len(raw))
	if raw == "" {
		return nil, errors.New("LLM returned empty content")
	}
	return json.RawMessage(raw), nil
}

// GenerateTitle asks the model for a short display title for a file name.
func (c *Client) GenerateTitle(ctx context.Context, fileName string) (string, error) {
	prompt, err := prompts.BuildTitle(fileName)
	if err != nil {
		return "", fmt.Errorf("build title prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("LLM title call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices for title")
	}

	title := cleanTitle(resp.Choices[0].Message.Content)
	if title == "" {
		return "", errors.New("LLM returned empty title")
	}
	return title, nil
}

// Ping checks that the endpoint is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// attachmentPart inlines text documents and sends everything else as a
// base64 data URL.
func attachmentPart(doc model.Document) (openai.ChatMessagePart, error) {
	if isText(doc.MimeType) {
		text, err := base64.StdEncoding.DecodeString(doc.Data)
		if err != nil {
			text, err = base64.RawStdEncoding.DecodeString(doc.Data)
		}
		if err != nil {
			return openai.ChatMessagePart{}, fmt.Errorf("decode text document: %w", err)
		}
		rendered, err := prompts.BuildDocument(doc.Name, doc.MimeType, string(text))
		if err != nil {
			return openai.ChatMessagePart{}, fmt.Errorf("build document prompt: %w", err)
		}
		return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: rendered}, nil
	}
	return openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: doc.DataURL()},
	}, nil
}

func isText(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/json", "application/xml", "application/x-yaml", "application/yaml":
		return true
	}
	return strings.HasPrefix(mt, "text/")
}

// stripFence removes a Markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	s = strings.TrimSpace(strings.TrimPrefix(s, "Title:"))
	if r := []rune(s); len(r) > maxTitleRunes {
		s = string(r[:maxTitleRunes])
	}
	return s
}
