package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"brightsteps-backend-go/internal/config"
)

const DefaultLLMModel = "gpt-4o-mini"

var errLLMNotConfigured = ServiceError{Status: http.StatusInternalServerError, Message: "LLM is not configured (set LLM_BASE_URL or LLM_API_KEY)"}

// LLMOverride carries the optional per-request endpoint settings sent by the
// admin console.
type LLMOverride struct {
	URL   string
	Model string
	Key   string
}

// ResolveLLMConfig applies request overrides on top of the process config and
// fills in the fallback model.
func ResolveLLMConfig(base config.LLMConfig, override LLMOverride) config.LLMConfig {
	resolved := base
	if v := strings.TrimSpace(override.URL); v != "" {
		resolved.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(override.Key); v != "" {
		resolved.APIKey = v
	}
	if v := strings.TrimSpace(override.Model); v != "" {
		resolved.Model = v
	}
	if resolved.Model == "" {
		resolved.Model = DefaultLLMModel
	}
	return resolved
}

// Completer returns the raw text of one chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFactory builds a Completer for a resolved config. Handlers resolve
// overrides per request, so clients are built per call.
type CompleterFactory func(cfg config.LLMConfig) Completer

type ChatClient struct {
	client openai.Client
	model  string
	policy RetryPolicy
}

func NewChatClient(cfg config.LLMConfig) *ChatClient {
	return NewChatClientWithHTTP(cfg, nil)
}

func NewChatClientWithHTTP(cfg config.LLMConfig, httpClient *http.Client) *ChatClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// RetryPolicy owns retries.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultLLMModel
	}
	return &ChatClient{
		client: openai.NewClient(opts...),
		model:  model,
		policy: LLMPolicy(cfg),
	}
}

func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	var text string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(0.7),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("LLM returned no choices")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", ErrUpstream(err)
	}
	return text, nil
}
