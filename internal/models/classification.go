package models

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategorySupportRequest Category = "support_request"
	CategoryComplaint      Category = "complaint"
	CategoryBugReport      Category = "bug_report"
	CategoryGeneralChat    Category = "general_chat"
	CategoryOther          Category = "other"
)

// Categories lists the closed set of categories in prompt order.
var Categories = []Category{
	CategorySupportRequest,
	CategoryComplaint,
	CategoryBugReport,
	CategoryGeneralChat,
	CategoryOther,
}

// ParseCategory validates s against the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RequiresAttention reports whether messages of this category need a human.
func (c Category) RequiresAttention() bool {
	switch c {
	case CategorySupportRequest, CategoryComplaint, CategoryBugReport:
		return true
	}
	return false
}

// Title renders "support_request" as "Support Request".
func (c Category) Title() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// ClassificationResult is the structured answer for one message.
type ClassificationResult struct {
	Category          Category `json:"category"`
	Confidence        float64  `json:"confidence"`
	Reason            string   `json:"reason"`
	RequiresAttention bool     `json:"requires_attention"`
}
