// Package analysis implements the Analysis Worker: a poll-driven background
// job that turns a completed conversation into a narrative summary using an
// external analysis model, with truncation, retry/backoff, and a stuck-job
// sweep so a crashed worker's claimed rows are not lost forever.
package analysis

import "time"

// Defaults mirrored from config.AnalysisConfig's zero-value fallbacks, used
// again here as the worker's own defense-in-depth floor in case a Config is
// constructed directly rather than through the config loader.
const (
	defaultHeadMessages    = 5
	defaultTailMessages    = 20
	defaultMaxPromptTokens = 855000
)

// Config groups the worker's tunables, translated from config.AnalysisConfig.
type Config struct {
	PollInterval       time.Duration
	MaxConcurrentJobs  int
	MaxRetries         int
	Timeout            time.Duration
	MaxPromptTokens    int
	HeadMessages       int
	TailMessages       int
	StuckSweepInterval time.Duration
	StuckThreshold     time.Duration
}

// StructuredData is the fixed JSON shape the analysis prompt asks the model
// to return. A response that fails to parse into this shape is still a
// successful analysis — its raw text is kept as Content and StructuredData
// is left nil.
type StructuredData struct {
	Summary           string             `json:"summary"`
	KeyTopics         []string           `json:"keyTopics"`
	Sentiment         string             `json:"sentiment"`
	UserIntent        string             `json:"userIntent"`
	Outcomes          []string           `json:"outcomes"`
	ActionItems       []string           `json:"actionItems"`
	TechnicalDetails  TechnicalDetails   `json:"technicalDetails"`
	ConversationQuality ConversationQuality `json:"conversationQuality"`
}

// TechnicalDetails is the structured sub-object describing technical
// content surfaced during the conversation.
type TechnicalDetails struct {
	Frameworks []string `json:"frameworks"`
	Issues     []string `json:"issues"`
	Solutions  []string `json:"solutions"`
}

// ConversationQuality scores three dimensions of the conversation itself.
type ConversationQuality struct {
	Clarity       string `json:"clarity"`
	Completeness  string `json:"completeness"`
	Effectiveness string `json:"effectiveness"`
}
