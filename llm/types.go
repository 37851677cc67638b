// Package llm implements the pipeline's uniform LLM client: synchronous,
// asynchronous, and streaming completion against a configured provider, with
// validated configuration and an instance cache keyed by provider identity.
package llm

import "time"

// Response is the uniform shape returned by Invoke and InvokeAsync,
// regardless of which provider served it. InvokeStreaming yields text
// chunks only and produces no Response.
type Response struct {
	RequestID        string
	ModelName        string
	Prompt           string
	Response         string
	Error            string
	DurationS        float64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Model describes one model entry as returned by a provider's model listing
// (Ollama's GET /api/tags, for instance).
type Model struct {
	Name string
}

func measure(start time.Time) float64 {
	return time.Since(start).Seconds()
}
