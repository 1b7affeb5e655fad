package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/infrastructure/resilience"
)

// Client wraps the OpenAI API (or any compatible endpoint via BaseURL) behind
// the same generator and embedder surface as the local Ollama backend.
type Client struct {
	api    *goopenai.Client
	runner *resilience.Runner
}

func New(apiKey, baseURL string, runner *resilience.Runner) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:    goopenai.NewClientWithConfig(cfg),
		runner: runner,
	}
}

// GenOptions are decoding parameters for chat completion requests.
type GenOptions struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

type Generator struct {
	client  *Client
	model   string
	options GenOptions
}

func NewGenerator(client *Client, model string, options GenOptions) *Generator {
	return &Generator{client: client, model: model, options: options}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := g.client.runner.Do(ctx, "openai_generate", func(ctx context.Context) error {
		resp, err := g.client.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: g.model,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: g.options.Temperature,
			TopP:        g.options.TopP,
			MaxTokens:   g.options.MaxTokens,
			N:           1,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai generate: empty choices")
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}, classifyError)
	if err != nil {
		return "", markTemporary("generate", err)
	}
	return answer, nil
}

type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := e.client.runner.Do(ctx, "openai_embed", func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
			Input: texts,
			Model: goopenai.EmbeddingModel(e.model),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			vectors[i] = item.Embedding
		}
		return nil
	}, classifyError)
	if err != nil {
		return nil, markTemporary("embed", err)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: empty result")
	}
	return vectors[0], nil
}

func classifyError(err error) resilience.Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Outcome{}
	}
	if resilience.CircuitOpen(err) {
		return resilience.Outcome{Retry: true, CountsAsFailure: true}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return resilience.Outcome{Retry: true, CountsAsFailure: true}
		default:
			return resilience.Outcome{}
		}
	}

	// Transport-level failures without a typed API error.
	return resilience.Outcome{Retry: true, CountsAsFailure: true}
}

func markTemporary(operation string, err error) error {
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyError(err).Retry || resilience.CircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "openai "+operation, err)
	}
	return err
}
