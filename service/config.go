package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/scy/cred/secret"
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/vectordb"
	"github.com/viant/vecflow/vectordb/emulator"
	"github.com/viant/vecflow/vectordb/pinecone"
	"gopkg.in/yaml.v3"
)

// Backends.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Embedder providers.
const (
	ProviderPinecone = "pinecone"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderVertexAI = "vertexai"
	ProviderSimple   = "simple"
)

// Environment overrides applied after the config file.
const (
	EnvAPIKey     = "PINECONE_API_KEY"
	EnvIndex      = "VECFLOW_INDEX"
	EnvNamespace  = "VECFLOW_NAMESPACE"
	EnvControlURL = "VECFLOW_CONTROL_URL"
)

// Config defines the workflow settings.
type Config struct {
	Index       string            `yaml:"index"`
	Namespace   string            `yaml:"namespace"`
	Backend     string            `yaml:"backend"`
	ControlURL  string            `yaml:"controlURL"`
	Host        string            `yaml:"host,omitempty"`
	APIVersion  string            `yaml:"apiVersion"`
	APIKey      string            `yaml:"apiKey,omitempty"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Local       LocalConfig       `yaml:"local"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Documents   string            `yaml:"documents,omitempty"`
	Query       string            `yaml:"query"`
	TopK        int               `yaml:"topK"`
	BatchSize   int               `yaml:"batchSize"`
	Readiness   Policy            `yaml:"readiness"`
	RecordRetry Policy            `yaml:"recordRetry"`
	SettleDelay time.Duration     `yaml:"settleDelay"`
	Output      string            `yaml:"output,omitempty"`
	Emulator    EmulatorConfig    `yaml:"emulator"`
	MCPServer   MCPServerConfig   `yaml:"mcpServer"`
}

// CredentialsConfig references a scy secret holding the API key.
// APIKey, when set, is a template expanded with the secret, e.g. "${Key}".
type CredentialsConfig struct {
	Secret string `yaml:"secret,omitempty"`
}

// LocalConfig defines the sqlite backed index.
type LocalConfig struct {
	DSN       string `yaml:"dsn"`
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"baseURL,omitempty"`
	APIKey        string `yaml:"apiKey,omitempty"`
	Dimension     int    `yaml:"dimension,omitempty"`
	Truncate      string `yaml:"truncate,omitempty"`
	ProjectID     string `yaml:"projectID,omitempty"`
	Location      string `yaml:"location,omitempty"`
	PassagePrefix string `yaml:"passagePrefix,omitempty"`
	QueryPrefix   string `yaml:"queryPrefix,omitempty"`
}

// EmulatorConfig defines the local REST emulator.
type EmulatorConfig struct {
	Addr            string `yaml:"addr"`
	emulator.Config `yaml:",inline"`
}

// MCPServerConfig defines MCP server settings.
type MCPServerConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// Address returns host:port of the MCP server.
func (c MCPServerConfig) Address() string {
	if c.Port == 0 {
		return c.Addr
	}
	host := c.Addr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// DefaultConfig returns the built-in settings; it carries no credentials.
func DefaultConfig() *Config {
	return &Config{
		Index:       "quickstart2",
		Namespace:   "ns1",
		Backend:     BackendRemote,
		ControlURL:  pinecone.DefaultControlURL,
		APIVersion:  pinecone.DefaultAPIVersion,
		Local:       LocalConfig{DSN: "~/.vecflow/vecflow.sqlite", Dimension: 1024, Metric: vectordb.MetricCosine},
		Embedder:    EmbedderConfig{Provider: ProviderPinecone, Model: "llama-text-embed-v2", Truncate: "END"},
		Query:       document.SampleQuery,
		TopK:        defaultTopK,
		BatchSize:   defaultBatchSize,
		Readiness:   ReadinessPolicy(),
		RecordRetry: NoRetry(),
		SettleDelay: 3 * time.Second,
		Emulator: EmulatorConfig{
			Addr: "127.0.0.1:5081",
			Config: emulator.Config{
				Index:     "quickstart2",
				Dimension: 1024,
				Metric:    vectordb.MetricCosine,
				Models:    []string{"llama-text-embed-v2"},
			},
		},
		MCPServer: MCPServerConfig{Addr: "127.0.0.1:6071"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and applies environment overrides.
// An empty path yields the defaults with overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		path, err := expandUserPath(path)
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config %v: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	var err error
	if cfg.Local.DSN, err = expandUserPath(cfg.Local.DSN); err != nil {
		return nil, err
	}
	if cfg.Documents, err = expandUserPath(cfg.Documents); err != nil {
		return nil, err
	}
	if cfg.Output, err = expandUserPath(cfg.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvIndex)); v != "" {
		c.Index = v
	}
	if v := strings.TrimSpace(getenv(EnvNamespace)); v != "" {
		c.Namespace = v
	}
	if v := strings.TrimSpace(getenv(EnvControlURL)); v != "" {
		c.ControlURL = v
	}
}

// Validate checks settings required by the workflow.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Index) == "" {
		return fmt.Errorf("config: index is required")
	}
	switch c.Backend {
	case BackendRemote:
		if c.ControlURL == "" && c.Host == "" {
			return fmt.Errorf("config: controlURL or host is required for the remote backend")
		}
	case BackendLocal:
		if c.Local.DSN == "" {
			return fmt.Errorf("config: local.dsn is required for the local backend")
		}
	default:
		return fmt.Errorf("config: unsupported backend %q", c.Backend)
	}
	switch c.Embedder.Provider {
	case ProviderPinecone, ProviderOpenAI, ProviderOllama, ProviderSimple:
	case ProviderVertexAI:
		if c.Embedder.ProjectID == "" {
			return fmt.Errorf("config: embedder.projectID is required for vertexai")
		}
	default:
		return fmt.Errorf("config: unsupported embedder provider %q", c.Embedder.Provider)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("config: topK must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batchSize must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("config: settleDelay must not be negative")
	}
	if err := c.Readiness.Validate(true); err != nil {
		return fmt.Errorf("config: readiness: %w", err)
	}
	if err := c.RecordRetry.Validate(false); err != nil {
		return fmt.Errorf("config: recordRetry: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the API key, expanding it with the credentials secret when one is configured.
func (c *Config) ResolveAPIKey(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.Credentials.Secret) == "" {
		return c.APIKey, nil
	}
	template := c.APIKey
	if template == "" {
		template = "${Key}"
	}
	return ExpandWithSecret(ctx, template, c.Credentials.Secret)
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	// Direct ~/path use
	if strings.HasPrefix(trimmed, "~/") || trimmed == "~" {
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
	}
	// file: URI forms
	if strings.HasPrefix(trimmed, "file:") {
		prefix := "file://localhost"
		rest := strings.TrimPrefix(trimmed, prefix)
		if rest == trimmed {
			prefix = "file://"
			rest = strings.TrimPrefix(trimmed, prefix)
		}
		if rest == trimmed {
			prefix = "file:"
			rest = strings.TrimPrefix(trimmed, prefix)
		}
		if rest == "" {
			return path, nil
		}
		rest = strings.TrimLeft(rest, "/")
		if strings.HasPrefix(rest, "~") {
			rel := strings.TrimPrefix(rest, "~")
			abs := filepath.Join(home, rel)
			absSlash := filepath.ToSlash(abs)
			if prefix == "file:" {
				if !strings.HasPrefix(absSlash, "/") {
					absSlash = "/" + absSlash
				}
				return prefix + absSlash, nil
			}
			return prefix + "/" + strings.TrimLeft(absSlash, "/"), nil
		}
	}
	if trimmed[0] != '~' {
		return path, nil
	}
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	if trimmed == "~" {
		return home, nil
	}
	return filepath.Join(home, trimmed[2:]), nil
}

// ExpandWithSecret loads a secret and expands its placeholders in template.
func ExpandWithSecret(ctx context.Context, template, secretRef string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" {
		return template, nil
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("secret %q provided but template is empty", secretRef)
	}
	svc := secret.New()
	sec, err := svc.Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", err
	}
	return sec.Expand(template), nil
}
