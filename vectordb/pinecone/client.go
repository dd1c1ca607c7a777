package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/vectordb"
)

const (
	DefaultControlURL  = "https://api.pinecone.io"
	DefaultAPIVersion  = "2024-10"
	defaultHTTPTimeout = 30 * time.Second

	HeaderAPIKey     = "Api-Key"
	HeaderAPIVersion = "X-Pinecone-API-Version"
)

// Option configures the client.
type Option func(*Client)

// WithControlURL overrides the control plane URL.
func WithControlURL(controlURL string) Option {
	return func(c *Client) {
		if controlURL != "" {
			c.controlURL = strings.TrimRight(controlURL, "/")
		}
	}
}

// WithHost pins the data-plane host for every index, skipping host discovery.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIVersion sets the API version header value.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithLogf sets a debug logger for requests.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Client) { c.logf = logf }
}

// Client is a REST client for the hosted vector database.
type Client struct {
	controlURL string
	apiKey     string
	apiVersion string
	host       string
	httpClient *http.Client
	logf       func(format string, args ...any)

	mu    sync.RWMutex
	hosts map[string]string
}

// New creates a client; an empty apiKey falls back to PINECONE_API_KEY.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		controlURL: DefaultControlURL,
		apiKey:     apiKey,
		apiVersion: DefaultAPIVersion,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		hosts:      map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("PINECONE_API_KEY")
	}
	return c
}

// DescribeIndex returns the description of the named index and records its host.
func (c *Client) DescribeIndex(ctx context.Context, name string) (*vectordb.IndexDescription, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apierr.New(apierr.KindNotFound, opDescribeIndex, "index name is required")
	}
	var model IndexModel
	if err := c.do(ctx, opDescribeIndex, http.MethodGet, c.controlURL+"/indexes/"+url.PathEscape(name), nil, &model); err != nil {
		return nil, err
	}
	if model.Name == "" {
		model.Name = name
	}
	desc := model.Description()
	if desc.Host != "" {
		c.mu.Lock()
		c.hosts[name] = desc.Host
		c.mu.Unlock()
	}
	return desc, nil
}

// Upsert writes vectors into namespace and returns the upserted count.
func (c *Client) Upsert(ctx context.Context, index, namespace string, vectors []vectordb.Vector) (int, error) {
	base, err := c.indexURL(ctx, index)
	if err != nil {
		return 0, err
	}
	var out UpsertResponse
	if err := c.do(ctx, opUpsert, http.MethodPost, base+"/vectors/upsert", &UpsertRequest{Vectors: vectors, Namespace: namespace}, &out); err != nil {
		return 0, err
	}
	return out.UpsertedCount, nil
}

// DescribeIndexStats returns index statistics.
func (c *Client) DescribeIndexStats(ctx context.Context, index string) (*vectordb.IndexStats, error) {
	base, err := c.indexURL(ctx, index)
	if err != nil {
		return nil, err
	}
	out := &vectordb.IndexStats{}
	if err := c.do(ctx, opDescribeStats, http.MethodPost, base+"/describe_index_stats", struct{}{}, out); err != nil {
		return nil, err
	}
	if out.Namespaces == nil {
		out.Namespaces = map[string]vectordb.NamespaceStats{}
	}
	return out, nil
}

// Query runs a top-K similarity query.
func (c *Client) Query(ctx context.Context, index string, req *vectordb.QueryRequest) (*vectordb.QueryResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("query request is nil")
	}
	base, err := c.indexURL(ctx, index)
	if err != nil {
		return nil, err
	}
	out := &vectordb.QueryResponse{}
	if err := c.do(ctx, opQuery, http.MethodPost, base+"/query", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) indexURL(ctx context.Context, index string) (string, error) {
	if c.host != "" {
		return hostURL(c.host), nil
	}
	c.mu.RLock()
	host := c.hosts[index]
	c.mu.RUnlock()
	if host == "" {
		desc, err := c.DescribeIndex(ctx, index)
		if err != nil {
			return "", err
		}
		if desc.Host == "" {
			return "", apierr.New(apierr.KindUnexpectedResponse, opDescribeIndex, fmt.Sprintf("index %v has no host", index))
		}
		host = desc.Host
	}
	return hostURL(host), nil
}

func hostURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

func (c *Client) do(ctx context.Context, op, method, URL string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, URL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set(HeaderAPIVersion, c.apiVersion)
	if c.logf != nil {
		c.logf("%s %s", method, URL)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.FromTransport(op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Wrap(apierr.KindRemoteService, op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return apierr.FromResponse(op, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.Wrap(apierr.KindUnexpectedResponse, op, err)
	}
	return nil
}

var _ vectordb.Service = (*Client)(nil)
