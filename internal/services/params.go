package services

import (
	"slices"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// LLMParameters holds the optional sampling parameters forwarded to the providers that support them. Nil
// fields are left to the provider default.
type LLMParameters struct {
	Temperature      *float32       `yaml:"temperature"`
	TopP             *float32       `yaml:"topP"`
	Stop             []string       `yaml:"stop"`
	PresencePenalty  *float32       `yaml:"presencePenalty"`
	Seed             *int           `yaml:"seed"`
	FrequencyPenalty *float32       `yaml:"frequencyPenalty"`
	LogitBias        map[string]int `yaml:"logitBias"`
	Logprobs         *bool          `yaml:"logprobs"`
	TopLogprobs      *int           `yaml:"topLogprobs"`
}

// withSystem returns entries preceded by the system instruction. Empty assistant entries are dropped,
// providers reject them.
func withSystem(systemPrompt string, entries []models.Entry) []models.Entry {
	msgs := slices.DeleteFunc(slices.Clone(entries), func(e models.Entry) bool {
		return e.Role == models.RoleAssistant && e.Content == ""
	})
	return slices.Insert(msgs, 0, models.Entry{
		Role:    models.RoleSystem,
		Content: systemPrompt,
	})
}
