package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xaenox/support-monitor/internal/models"
)

// Predictor turns a prompt into a structured classification.
//
// Implementations return *OutputError when the model answered but the answer
// is not a valid ClassificationResult; any other error means the request
// itself failed. Usage should be filled in even when an error is returned.
type Predictor interface {
	Predict(ctx context.Context, req Request) (Prediction, error)
}

// ContextTool is a read-only lookup the predictor may call any number of
// times before it answers.
type ContextTool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context) (string, error)
}

// Correction asks the predictor to redo a rejected answer.
type Correction struct {
	Answer      string
	Instruction string
}

type Request struct {
	System      string
	Prompt      string
	Tools       []ContextTool
	Corrections []Correction
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Requests     int   `json:"requests"`
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

type Prediction struct {
	Result models.ClassificationResult
	Raw    string
	Usage  Usage
}

// OutputError reports a malformed structured answer.
type OutputError struct {
	Raw    string
	Reason string
}

func (e *OutputError) Error() string {
	return "invalid classification output: " + e.Reason
}

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

type rawResult struct {
	Category          string   `json:"category"`
	Confidence        *float64 `json:"confidence"`
	Reason            string   `json:"reason"`
	RequiresAttention bool     `json:"requires_attention"`
}

// ParseResult decodes a model answer into a ClassificationResult. Reasoning
// blocks and markdown fences around the JSON object are tolerated.
func ParseResult(raw string) (models.ClassificationResult, error) {
	text := thinkBlock.ReplaceAllString(raw, "")
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var r rawResult
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return models.ClassificationResult{}, &OutputError{Raw: raw, Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	category, err := models.ParseCategory(r.Category)
	if err != nil {
		return models.ClassificationResult{}, &OutputError{Raw: raw, Reason: err.Error()}
	}
	if r.Confidence == nil {
		return models.ClassificationResult{}, &OutputError{Raw: raw, Reason: "confidence is missing"}
	}
	if *r.Confidence < 0 || *r.Confidence > 1 {
		return models.ClassificationResult{}, &OutputError{Raw: raw, Reason: fmt.Sprintf("confidence %v outside [0, 1]", *r.Confidence)}
	}

	return models.ClassificationResult{
		Category:          category,
		Confidence:        *r.Confidence,
		Reason:            strings.TrimSpace(r.Reason),
		RequiresAttention: r.RequiresAttention,
	}, nil
}
