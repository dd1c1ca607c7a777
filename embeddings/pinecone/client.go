package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
)

const (
	defaultBaseURL     = "https://api.pinecone.io"
	embedEndpoint      = "/embed"
	defaultModel       = "llama-text-embed-v2"
	defaultAPIVersion  = "2024-10"
	defaultHTTPTimeout = 30 * time.Second
	opEmbed            = "inference embed"
)

// ClientOption configures the inference client.
type ClientOption func(*Client)

// WithBaseURL overrides the control plane URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

// WithTruncate sets the truncate parameter sent with passage requests (e.g. END, NONE).
func WithTruncate(truncate string) ClientOption {
	return func(c *Client) { c.Truncate = truncate }
}

// WithAPIVersion sets the X-Pinecone-API-Version header.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		if version != "" {
			c.APIVersion = version
		}
	}
}

// Client calls the hosted inference embed endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Truncate   string
	APIVersion string
	HTTPClient *http.Client
}

// Request represents the embed request payload.
type Request struct {
	Model      string     `json:"model"`
	Parameters Parameters `json:"parameters"`
	Inputs     []Input    `json:"inputs"`
}

// Parameters carries embed request parameters.
type Parameters struct {
	InputType string `json:"input_type"`
	Truncate  string `json:"truncate,omitempty"`
}

// Input is a single text input.
type Input struct {
	Text string `json:"text"`
}

// Embedding is a single dense embedding in the response.
type Embedding struct {
	Values     []float32 `json:"values"`
	VectorType string    `json:"vector_type,omitempty"`
}

// Response is the embed endpoint payload.
type Response struct {
	Model string      `json:"model"`
	Data  []Embedding `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates an inference client; an empty apiKey falls back to PINECONE_API_KEY.
func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		APIKey:     apiKey,
		Model:      model,
		Truncate:   "END",
		APIVersion: defaultAPIVersion,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("PINECONE_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	return c
}

// AdaptRequest adapts texts to the embed request payload.
func AdaptRequest(texts []string, model string, inputType embeddings.InputType, truncate string) Request {
	req := Request{Model: model, Parameters: Parameters{InputType: string(inputType)}}
	if inputType == embeddings.InputPassage {
		req.Parameters.Truncate = truncate
	}
	req.Inputs = make([]Input, len(texts))
	for i, text := range texts {
		req.Inputs[i] = Input{Text: text}
	}
	return req
}

// Embed creates embeddings for texts, returned in input order.
func (c *Client) Embed(ctx context.Context, texts []string, inputType embeddings.InputType) (vectors [][]float32, totalTokens int, err error) {
	if c == nil {
		return nil, 0, fmt.Errorf("pinecone inference client is nil")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("no input texts provided")
	}
	reqBody, err := json.Marshal(AdaptRequest(texts, c.Model, inputType, c.Truncate))
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+embedEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", c.APIKey)
	httpReq.Header.Set("X-Pinecone-API-Version", c.APIVersion)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, 0, apierr.FromTransport(opEmbed, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindRemoteService, opEmbed, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return nil, 0, apierr.FromResponse(opEmbed, resp.StatusCode, data)
	}
	out, tokens, err := DecodeResponse(data)
	if err != nil {
		return nil, 0, err
	}
	if err := embeddings.Validate(opEmbed, out, len(texts), 0); err != nil {
		return nil, 0, err
	}
	return out, tokens, nil
}

// DecodeResponse accepts {"data":[{"values":[...]}]} or a bare [{"values":[...]}] array.
func DecodeResponse(data []byte) ([][]float32, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, apierr.New(apierr.KindUnexpectedResponse, opEmbed, "empty response body")
	}
	var items []Embedding
	tokens := 0
	switch trimmed[0] {
	case '{':
		var resp Response
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, 0, apierr.Wrap(apierr.KindUnexpectedResponse, opEmbed, err)
		}
		if resp.Data == nil {
			return nil, 0, apierr.New(apierr.KindUnexpectedResponse, opEmbed, "response has no data field")
		}
		items = resp.Data
		tokens = resp.Usage.TotalTokens
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, apierr.Wrap(apierr.KindUnexpectedResponse, opEmbed, err)
		}
	default:
		return nil, 0, apierr.New(apierr.KindUnexpectedResponse, opEmbed, "unrecognised response body")
	}
	out := make([][]float32, len(items))
	for i, item := range items {
		if len(item.Values) == 0 {
			return nil, 0, apierr.New(apierr.KindUnexpectedResponse, opEmbed, fmt.Sprintf("embedding %d has no values", i))
		}
		out[i] = item.Values
	}
	return out, tokens, nil
}

// Embedder bridges the client to the embeddings.Embedder interface.
type Embedder struct{ C *Client }

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if e == nil || e.C == nil {
		return nil, fmt.Errorf("pinecone embedder not configured")
	}
	v, _, err := e.C.Embed(ctx, docs, embeddings.InputPassage)
	return v, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	if e == nil || e.C == nil {
		return nil, fmt.Errorf("pinecone embedder not configured")
	}
	v, _, err := e.C.Embed(ctx, []string{q}, embeddings.InputQuery)
	if err != nil {
		return nil, err
	}
	return v[0], nil
}
