package eval

import "github.com/xaenox/support-monitor/internal/models"

// Case is one labelled message.
type Case struct {
	Name              string
	Content           string
	AuthorName        string
	ChannelName       string
	Category          models.Category
	RequiresAttention bool
	Difficulty        string
}

// Dataset returns the built-in labelled messages.
func Dataset() []Case {
	return []Case{
		// Support requests
		{
			Name:              "password_reset",
			Content:           "How do I reset my password? I can't log in.",
			AuthorName:        "user123",
			ChannelName:       "support",
			Category:          models.CategorySupportRequest,
			RequiresAttention: true,
			Difficulty:        "easy",
		},
		{
			Name:              "api_help",
			Content:           "Can someone help me understand how to use the API? The docs are confusing.",
			AuthorName:        "developer42",
			ChannelName:       "help",
			Category:          models.CategorySupportRequest,
			RequiresAttention: true,
			Difficulty:        "medium",
		},
		// Bug reports
		{
			Name:              "crash_report",
			Content:           "The app crashes every time I try to upload a file larger than 10MB",
			AuthorName:        "tester99",
			ChannelName:       "bugs",
			Category:          models.CategoryBugReport,
			RequiresAttention: true,
			Difficulty:        "easy",
		},
		{
			Name:              "error_message",
			Content:           "Getting 'Error 500: Internal Server Error' when I try to save my settings",
			AuthorName:        "user456",
			ChannelName:       "support",
			Category:          models.CategoryBugReport,
			RequiresAttention: true,
			Difficulty:        "medium",
		},
		// Complaints
		{
			Name:              "frustrated_user",
			Content:           "This is ridiculous! I've been waiting 3 days for a response and nothing!",
			AuthorName:        "angryuser",
			ChannelName:       "general",
			Category:          models.CategoryComplaint,
			RequiresAttention: true,
			Difficulty:        "easy",
		},
		{
			Name:              "service_complaint",
			Content:           "The service has been down twice this week. This is unacceptable for a paid product.",
			AuthorName:        "premium_user",
			ChannelName:       "feedback",
			Category:          models.CategoryComplaint,
			RequiresAttention: true,
			Difficulty:        "medium",
		},
		// General chat
		{
			Name:        "greeting",
			Content:     "Hey everyone! Happy Friday!",
			AuthorName:  "friendly_user",
			ChannelName: "general",
			Category:    models.CategoryGeneralChat,
			Difficulty:  "easy",
		},
		{
			Name:        "casual_chat",
			Content:     "Anyone watching the game tonight? Should be a good one!",
			AuthorName:  "sports_fan",
			ChannelName: "off-topic",
			Category:    models.CategoryGeneralChat,
			Difficulty:  "easy",
		},
		{
			Name:        "thanks_message",
			Content:     "Thanks for the help earlier, got it working now!",
			AuthorName:  "grateful_user",
			ChannelName: "support",
			Category:    models.CategoryGeneralChat,
			Difficulty:  "medium",
		},
		// Other
		{
			Name:        "emoji_only",
			Content:     "🎉🎊🎈",
			AuthorName:  "emoji_user",
			ChannelName: "random",
			Category:    models.CategoryOther,
			Difficulty:  "easy",
		},
	}
}
