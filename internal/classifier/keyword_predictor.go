package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/support-monitor/internal/models"
)

// KeywordPredictor classifies by keyword hits. It needs no model and is
// used for local development and dry runs.
type KeywordPredictor struct {
	keywords map[models.Category][]string
}

func NewKeywordPredictor() *KeywordPredictor {
	return &KeywordPredictor{
		keywords: map[models.Category][]string{
			models.CategoryBugReport:      {"bug", "error", "crash", "broken", "exception", "not working", "doesn't work", "stack trace"},
			models.CategoryComplaint:      {"terrible", "frustrat", "worst", "disappointed", "unacceptable", "refund", "annoying", "angry", "ridiculous"},
			models.CategorySupportRequest: {"help", "how do i", "how can i", "can't", "cannot", "unable", "password", "log in", "login"},
			models.CategoryGeneralChat:    {"hello", "hi ", "hey", "thanks", "thank you", "lol", "good morning"},
		},
	}
}

// precedence breaks ties between equally scored categories.
var precedence = []models.Category{
	models.CategoryBugReport,
	models.CategoryComplaint,
	models.CategorySupportRequest,
	models.CategoryGeneralChat,
}

func (p *KeywordPredictor) Predict(ctx context.Context, req Request) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	content := strings.ToLower(messageFromPrompt(req.Prompt)) + " "

	best, bestHits := models.CategoryOther, 0
	for _, category := range precedence {
		hits := 0
		for _, kw := range p.keywords[category] {
			if strings.Contains(content, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = category, hits
		}
	}

	confidence := 0.4
	reason := "no known keywords"
	if bestHits > 0 {
		confidence = 0.5 + 0.1*float64(bestHits)
		if confidence > 0.9 {
			confidence = 0.9
		}
		reason = fmt.Sprintf("matched %d %s keywords", bestHits, best)
	}

	result := models.ClassificationResult{
		Category:          best,
		Confidence:        confidence,
		Reason:            reason,
		RequiresAttention: best.RequiresAttention(),
	}
	return Prediction{Result: result, Raw: reason}, nil
}

func messageFromPrompt(prompt string) string {
	const marker = "Message: "
	i := strings.Index(prompt, marker)
	if i < 0 {
		return prompt
	}
	msg := prompt[i+len(marker):]
	if j := strings.LastIndex(msg, "\n\nDetermine"); j >= 0 {
		msg = msg[:j]
	}
	return msg
}
