package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	embedEndpoint      = "/api/embed"
	defaultHTTPTimeout = 30 * time.Second
	opEmbed            = "ollama embed"
)

type ClientOption func(*Client)

// WithPrefixes sets text prefixes prepended per input type, as required by
// retrieval models such as nomic-embed-text ("search_document: ", "search_query: ").
func WithPrefixes(passage, query string) ClientOption {
	return func(c *Client) {
		c.PassagePrefix = passage
		c.QueryPrefix = query
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

type Client struct {
	BaseURL       string
	Model         string
	PassagePrefix string
	QueryPrefix   string
	HTTPClient    *http.Client
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	Error           string      `json:"error"`
}

func NewClientWithOptions(model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Embed(ctx context.Context, texts []string, inputType embeddings.InputType) ([][]float32, int, error) {
	if c == nil {
		return nil, 0, fmt.Errorf("ollama client is nil")
	}
	if c.Model == "" {
		return nil, 0, fmt.Errorf("ollama model is required")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("no input texts provided")
	}
	prefix := c.PassagePrefix
	if inputType == embeddings.InputQuery {
		prefix = c.QueryPrefix
	}
	input := texts
	if prefix != "" {
		input = make([]string, len(texts))
		for i, text := range texts {
			input[i] = prefix + text
		}
	}
	reqBody, err := json.Marshal(embedRequest{Model: c.Model, Input: input, Truncate: true})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+embedEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, 0, fmt.Errorf("send request: %w", err)
		}
		return nil, 0, apierr.FromTransport(opEmbed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, 0, apierr.FromResponse(opEmbed, resp.StatusCode, body)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, apierr.Wrap(apierr.KindUnexpectedResponse, opEmbed, err)
	}
	if out.Error != "" {
		return nil, 0, apierr.New(apierr.KindRemoteService, opEmbed, out.Error)
	}
	if err := embeddings.Validate(opEmbed, out.Embeddings, len(texts), 0); err != nil {
		return nil, 0, err
	}
	return out.Embeddings, out.PromptEvalCount, nil
}
