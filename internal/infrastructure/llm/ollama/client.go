package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askmynotes/backend/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server. Model selection lives in the
// Generator and Embedder wrappers so one client can serve the primary,
// auxiliary, and embedding models.
type Client struct {
	baseURL    string
	httpClient *http.Client
	runner     *resilience.Runner
}

func New(baseURL string, runner *resilience.Runner) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		runner:     runner,
	}
}

// GenOptions are decoding parameters passed through to the model. Zero-valued
// fields are omitted from the request so the model's own defaults apply.
type GenOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

func (o GenOptions) payload() map[string]any {
	options := map[string]any{}
	if o.Temperature > 0 {
		options["temperature"] = o.Temperature
	}
	if o.TopP > 0 {
		options["top_p"] = o.TopP
	}
	if o.TopK > 0 {
		options["top_k"] = o.TopK
	}
	if o.MaxTokens > 0 {
		options["num_predict"] = o.MaxTokens
	}
	return options
}

// Generator produces completions from one named model.
type Generator struct {
	client  *Client
	model   string
	options GenOptions
}

func NewGenerator(client *Client, model string, options GenOptions) *Generator {
	return &Generator{client: client, model: model, options: options}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  g.model,
		"prompt": prompt,
		"stream": false,
	}
	if options := g.options.payload(); len(options) > 0 {
		request["options"] = options
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Embedder builds embeddings with one named model.
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

	request := map[string]any{
		"model": e.model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ollama embed: empty result")
	}
	return vectors[0], nil
}
