// Package vertexai embeds texts with the Vertex AI text embedding models.
package vertexai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
)

const (
	defaultLocation = "us-central1"
	defaultModel    = "text-embedding-004"
	cloudScope      = "https://www.googleapis.com/auth/cloud-platform"
	opPredict       = "vertexai predict"

	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// Option configures the client.
type Option func(*Client)

// WithLocation sets the Vertex AI region.
func WithLocation(location string) Option {
	return func(c *Client) {
		if location != "" {
			c.location = location
		}
	}
}

// WithModel sets the publisher model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the regional endpoint, e.g. for a proxy or tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTokenSource sets the OAuth2 token source; default is google.DefaultTokenSource.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithScopes sets the scopes requested from the default token source.
func WithScopes(scopes ...string) Option {
	return func(c *Client) { c.scopes = append(c.scopes, scopes...) }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client calls the predict endpoint of a publisher embedding model.
// Credentials are resolved on first use so selecting the provider never fails early.
type Client struct {
	projectID  string
	location   string
	model      string
	baseURL    string
	scopes     []string
	httpClient *http.Client

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

type instance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type,omitempty"`
}

type prediction struct {
	Embeddings struct {
		Values     []float32 `json:"values"`
		Statistics struct {
			TokenCount int  `json:"token_count"`
			Truncated  bool `json:"truncated"`
		} `json:"statistics"`
	} `json:"embeddings"`
}

// New creates a client for projectID.
func New(projectID string, opts ...Option) *Client {
	c := &Client{
		projectID:  projectID,
		location:   defaultLocation,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TaskType maps an input type to the Vertex AI retrieval task type.
func TaskType(inputType embeddings.InputType) string {
	if inputType == embeddings.InputQuery {
		return taskQuery
	}
	return taskDocument
}

func (c *Client) predictURL() string {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict", base, c.projectID, c.location, c.model)
}

func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens, nil
	}
	scopes := c.scopes
	if len(scopes) == 0 {
		scopes = []string{cloudScope}
	}
	ts, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAuthentication, opPredict, err)
	}
	c.tokens = ts
	return ts, nil
}

// Embed returns one vector per text and the number of tokens billed.
func (c *Client) Embed(ctx context.Context, texts []string, inputType embeddings.InputType) ([][]float32, int, error) {
	if c.projectID == "" {
		return nil, 0, apierr.New(apierr.KindAuthentication, opPredict, "project id is required")
	}
	if len(texts) == 0 {
		return nil, 0, fmt.Errorf("no input texts provided")
	}
	task := TaskType(inputType)
	payload := struct {
		Instances []instance `json:"instances"`
	}{Instances: make([]instance, len(texts))}
	for i, text := range texts {
		payload.Instances[i] = instance{Content: text, TaskType: task}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return nil, 0, err
	}
	token, err := ts.Token()
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.KindAuthentication, opPredict, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, apierr.FromTransport(opPredict, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apierr.FromTransport(opPredict, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, apierr.FromResponse(opPredict, resp.StatusCode, data)
	}
	var out struct {
		Predictions []prediction `json:"predictions"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, 0, apierr.Wrap(apierr.KindUnexpectedResponse, opPredict, err)
	}
	vecs := make([][]float32, len(out.Predictions))
	tokens := 0
	for i, p := range out.Predictions {
		vecs[i] = p.Embeddings.Values
		tokens += p.Embeddings.Statistics.TokenCount
	}
	if err := embeddings.Validate(opPredict, vecs, len(texts), 0); err != nil {
		return nil, 0, err
	}
	return vecs, tokens, nil
}

// Embedder adapts Client to embeddings.Embedder.
type Embedder struct{ C *Client }

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	vecs, _, err := e.C.Embed(ctx, docs, embeddings.InputPassage)
	return vecs, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := e.C.Embed(ctx, []string{text}, embeddings.InputQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
