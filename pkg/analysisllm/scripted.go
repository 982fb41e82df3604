package analysisllm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptEntry defines a single scripted response consumed by ScriptedClient.
type ScriptEntry struct {
	Response *Response
	Error    error
}

// ScriptedClient implements Client with a queue of pre-built responses,
// consumed in order, so the Analysis Worker can be exercised without a
// live model call.
type ScriptedClient struct {
	mu             sync.Mutex
	entries        []ScriptEntry
	index          int
	capturedPrompts []Request
}

// NewScriptedClient creates an empty ScriptedClient.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// Add appends a scripted entry consumed in order by Complete.
func (c *ScriptedClient) Add(entry ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

// CapturedPrompts returns every request Complete was called with, for test
// assertions.
func (c *ScriptedClient) CapturedPrompts() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.capturedPrompts))
	copy(out, c.capturedPrompts)
	return out
}

// Complete implements Client.
func (c *ScriptedClient) Complete(_ context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capturedPrompts = append(c.capturedPrompts, req)

	if c.index >= len(c.entries) {
		return nil, fmt.Errorf("analysisllm: scripted client exhausted after %d calls", c.index)
	}
	entry := c.entries[c.index]
	c.index++

	if entry.Error != nil {
		return nil, entry.Error
	}
	return entry.Response, nil
}
