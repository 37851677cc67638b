// Package chain implements the Prompt/Chain Composer: a reusable unit
// binding a prompt template, an LLM provider, and an output parser into a
// single invokable function.
package chain

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/finqueryai/finquery-engine/llm"
	"github.com/finqueryai/finquery-engine/tokens"
)

// Parser turns a raw LLM response string into whatever shape the chain's
// caller expects.
type Parser func(raw string) (string, error)

// Chain binds a prompt template, an LLM provider, and an output parser.
// Invoke renders the template against a variable map, sends the rendered
// prompt to the provider, and runs the parser over the response.
type Chain struct {
	name     string
	tmpl     *template.Template
	provider llm.Provider
	parser   Parser
}

// New compiles templateText and binds it to provider and parser. A missing
// variable at render time surfaces as a template_error from Invoke, not
// here: Go's text/template does not validate variable references until
// execution.
func New(name, templateText string, provider llm.Provider, parser Parser) (*Chain, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("template_error: parse template '%s': %w", name, err)
	}
	return &Chain{name: name, tmpl: tmpl, provider: provider, parser: parser}, nil
}

// Invoke renders the template, sends it to the LLM synchronously, and
// parses the response.
func (c *Chain) Invoke(ctx context.Context, vars map[string]interface{}) (string, *llm.Response, error) {
	prompt, err := c.render(vars)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.provider.Invoke(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	c.fillTokenEstimate(prompt, resp)

	parsed, err := c.parse(resp.Response)
	if err != nil {
		return "", resp, err
	}

	return parsed, resp, nil
}

// InvokeAsync is the non-blocking counterpart of Invoke.
func (c *Chain) InvokeAsync(ctx context.Context, vars map[string]interface{}) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		parsed, resp, err := c.Invoke(ctx, vars)
		out <- Result{Parsed: parsed, Response: resp, Err: err}
	}()
	return out
}

// Result is delivered by InvokeAsync.
type Result struct {
	Parsed   string
	Response *llm.Response
	Err      error
}

func (c *Chain) render(vars map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("template_error: render template '%s': %w", c.name, err)
	}
	return buf.String(), nil
}

// fillTokenEstimate backfills resp's token counts with a BPE estimate when
// the provider didn't report real usage (PromptTokens and TotalTokens both
// 0), which happens
// for backends that skip usage accounting on their non-streaming path.
func (c *Chain) fillTokenEstimate(prompt string, resp *llm.Response) {
	if resp.PromptTokens != 0 || resp.TotalTokens != 0 {
		return
	}
	model := c.provider.ModelName()
	resp.PromptTokens = tokens.Estimate(model, prompt)
	resp.CompletionTokens = tokens.Estimate(model, resp.Response)
	resp.TotalTokens = resp.PromptTokens + resp.CompletionTokens
}

func (c *Chain) parse(raw string) (string, error) {
	if c.parser == nil {
		return raw, nil
	}
	return c.parser(raw)
}
