package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const outputInstructions = `

Respond with a single JSON object and nothing else:
{
    "category": "support_request | complaint | bug_report | general_chat | other",
    "confidence": 0.0-1.0,
    "reason": "brief explanation",
    "requires_attention": true | false
}`

const defaultMaxToolRounds = 5

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	// HTTPClient overrides the default client, e.g. to trace raw requests.
	HTTPClient *http.Client
}

// OpenAIPredictor talks to any OpenAI-compatible chat completions endpoint,
// Ollama included. Context tools are offered as function tools.
type OpenAIPredictor struct {
	client        *openai.Client
	model         string
	maxTokens     int
	temperature   float64
	maxToolRounds int
	logger        *zap.Logger
}

func NewOpenAIPredictor(cfg OpenAIConfig, logger *zap.Logger) *OpenAIPredictor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIPredictor{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxToolRounds: defaultMaxToolRounds,
		logger:        logger,
	}
}

func (p *OpenAIPredictor) Predict(ctx context.Context, req Request) (Prediction, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System + outputInstructions},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}
	for _, c := range req.Corrections {
		if c.Answer != "" {
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.Answer})
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: c.Instruction})
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	byName := make(map[string]ContextTool, len(req.Tools))
	for _, t := range req.Tools {
		byName[t.Name()] = t
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		})
	}

	var used Usage
	for round := 0; ; round++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    messages,
			MaxTokens:   p.maxTokens,
			Temperature: float32(p.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		}
		if len(tools) > 0 && round < p.maxToolRounds {
			chatReq.Tools = tools
		}

		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return Prediction{Usage: used}, fmt.Errorf("chat completion: %w", err)
		}
		used.Add(Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
			Requests:     1,
		})
		if len(resp.Choices) == 0 {
			return Prediction{Usage: used}, errors.New("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result, err := ParseResult(msg.Content)
			return Prediction{Result: result, Raw: msg.Content, Usage: used}, err
		}
		if round >= p.maxToolRounds {
			return Prediction{Raw: msg.Content, Usage: used}, &OutputError{Raw: msg.Content, Reason: "kept calling tools instead of answering"}
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Name:       call.Function.Name,
				Content:    p.invoke(ctx, byName, call),
				ToolCallID: call.ID,
			})
		}
	}
}

func (p *OpenAIPredictor) invoke(ctx context.Context, tools map[string]ContextTool, call openai.ToolCall) string {
	tool, ok := tools[call.Function.Name]
	if !ok {
		p.logger.Warn("Model called unknown tool", zap.String("tool", call.Function.Name))
		return fmt.Sprintf("unknown tool %q", call.Function.Name)
	}
	out, err := tool.Invoke(ctx)
	if err != nil {
		p.logger.Warn("Context tool failed", zap.String("tool", call.Function.Name), zap.Error(err))
		return "context unavailable: " + err.Error()
	}
	p.logger.Debug("Context tool called", zap.String("tool", call.Function.Name))
	return out
}
