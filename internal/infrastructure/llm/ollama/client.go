package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/ports"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
)

// Client is a completion service backed by the Ollama chat API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []ports.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  chatOptions         `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("ollama chat: no messages")
	}
	payload := chatRequest{
		Model:    c.model,
		Messages: req.Messages,
		Stream:   false,
		Options:  chatOptions{Temperature: req.Temperature},
	}
	if req.JSON {
		payload.Format = "json"
	}

	var response chatResponse
	call := func(callCtx context.Context) error {
		response = chatResponse{}
		return c.postJSON(callCtx, "/api/chat", payload, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.chat", call, classifyChatError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapChatError("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}
