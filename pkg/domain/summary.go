package domain

import "time"

// Provider identifies a summary backend
type Provider string

// supported summary providers, ProviderLocal doubles as the fallback marker
const (
	ProviderLocal        Provider = "local"
	ProviderOpenAI       Provider = "openai"
	ProviderGemini       Provider = "gemini"
	ProviderCustomOpenAI Provider = "custom_openai"
)

// SummarySentence is one generated sentence with references back to the
// source posts it was derived from. Refs may be empty but never dangling.
type SummarySentence struct {
	Text string   `json:"sentence"`
	Refs []string `json:"refs"` // post IDs, in provider order, duplicates allowed
}

// SummaryResult is the outcome of summarizing one creator group
type SummaryResult struct {
	CreatorID   string
	Provider    Provider // provider that actually produced the sentences
	Sentences   []SummarySentence
	SourceCount int // number of posts enumerated into the prompt
	GeneratedAt time.Time
}
