// Package tokenizer provides an approximate token counter used by the
// Analysis Worker to keep generated prompts under their configured budget.
// The upstream provider's own tokenizer is not publicly available, so
// counts here are an approximation good enough for truncation decisions,
// not for billing.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in text using a cached tiktoken encoding.
type Counter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// New builds a Counter for the encoding tiktoken-go associates with the
// named model (e.g. "gpt-4"). Falls back to cl100k_base if model is empty
// or not a model name tiktoken-go recognizes; encoding names themselves
// are not looked up.
func New(model string) (*Counter, error) {
	enc, err := resolveEncoding(model)
	if err != nil {
		return nil, err
	}
	return &Counter{enc: enc}, nil
}

func resolveEncoding(model string) (*tiktoken.Tiktoken, error) {
	if model == "" {
		return tiktoken.GetEncoding("cl100k_base")
	}
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding("cl100k_base")
}

// Count returns the approximate token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages sums the approximate token count across a sequence of
// role-tagged message texts, adding a small fixed overhead per message to
// account for role/framing tokens the raw text count misses.
func (c *Counter) CountMessages(texts []string) int {
	const perMessageOverhead = 4
	total := 0
	for _, t := range texts {
		total += c.Count(t) + perMessageOverhead
	}
	return total
}
