package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/ports"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
)

// Client talks to any OpenAI-compatible chat completions endpoint (OpenAI, Groq,
// vLLM, LocalAI).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []ports.ChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("chat completion: no messages")
	}
	payload := chatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var response chatCompletionResponse
	call := func(callCtx context.Context) error {
		response = chatCompletionResponse{}
		return c.postJSON(callCtx, "/chat/completions", payload, &response, "chat completion")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.chat", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapProviderError("chat completion", err)
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
