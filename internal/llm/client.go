// Package llm is the transport to the upstream text model.
//
// The gateway talks to Gemini through its OpenAI-compatible chat completions
// endpoint using go-openai's streaming API. Prepared model handles are cached
// per (model, system prompt) in a small LRU.
package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
)

// HandleLRUSize bounds the number of cached model handles.
const HandleLRUSize = 10

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm: upstream model is not configured")

// Request is one generation call.
type Request struct {
	Model        string
	SystemPrompt string
	UserContent  string
	// Temperature is nil for the model default.
	Temperature *float32
}

// Stream yields text deltas in order. Recv returns io.EOF after the last
// delta. Close must be called once the caller is done.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client opens upstream streams.
type Client interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Gemini is a Client on the OpenAI-compatible Gemini endpoint.
type Gemini struct {
	client  *openai.Client
	handles *lru.Cache[string, *ModelHandle]
	enabled bool
}

// NewGemini builds a client. httpClient may be nil.
func NewGemini(apiKey, baseURL string, httpClient *http.Client) *Gemini {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	handles, _ := lru.New[string, *ModelHandle](HandleLRUSize)
	return &Gemini{
		client:  openai.NewClientWithConfig(cfg),
		handles: handles,
		enabled: apiKey != "",
	}
}

// Configured reports whether an API key was supplied.
func (g *Gemini) Configured() bool { return g.enabled }

// Handle returns the cached handle for (model, systemPrompt).
func (g *Gemini) Handle(model, systemPrompt string) *ModelHandle {
	key := model + "\x00" + systemPrompt
	if h, ok := g.handles.Get(key); ok {
		return h
	}
	h := &ModelHandle{client: g.client, model: model, system: systemPrompt}
	g.handles.Add(key, h)
	return h
}

// Stream implements Client.
func (g *Gemini) Stream(ctx context.Context, req Request) (Stream, error) {
	if !g.enabled {
		return nil, ErrNotConfigured
	}
	return g.Handle(req.Model, req.SystemPrompt).Stream(ctx, req.UserContent, req.Temperature)
}

// ModelHandle is a model bound to its system prompt.
type ModelHandle struct {
	client *openai.Client
	model  string
	system string
}

// Stream opens a chat completion stream for content.
func (h *ModelHandle) Stream(ctx context.Context, content string, temperature *float32) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model: h.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: h.system},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Stream: true,
	}
	if temperature != nil {
		req.Temperature = *temperature
	}
	s, err := h.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &chatStream{s: s}, nil
}

type chatStream struct {
	s *openai.ChatCompletionStream
}

func (c *chatStream) Recv() (string, error) {
	resp, err := c.s.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (c *chatStream) Close() error { return c.s.Close() }
