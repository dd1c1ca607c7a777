package service

import (
	"fmt"
	"io"
	"time"

	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/vectordb"
)

// Stage names a step of the workflow.
type Stage string

const (
	StageInit       Stage = "init"
	StageConnect    Stage = "connect"
	StageWaitReady  Stage = "wait-ready"
	StageEmbed      Stage = "embed"
	StageUpsert     Stage = "upsert"
	StageSettle     Stage = "settle"
	StageStats      Stage = "stats"
	StageQueryEmbed Stage = "query-embed"
	StageSearch     Stage = "search"
	StageReport     Stage = "report"
	StageDone       Stage = "done"
	StageFail       Stage = "fail"
)

// StageError is an unrecovered failure of a workflow stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Upsert paths.
const (
	PathBatch      = "batch"
	PathSequential = "sequential"
)

// ConnectRequest defines inputs for resolving an index.
type ConnectRequest struct {
	Index string
	Wait  bool
	Logf  func(format string, args ...any)
}

// EmbedRequest defines inputs for embedding texts.
// Dimension is the index dimension; zero skips the dimension check and disables the fallback.
type EmbedRequest struct {
	Texts     []string
	InputType embeddings.InputType
	Dimension int
	Logf      func(format string, args ...any)
}

// EmbedResult holds one vector per input text.
// Degraded marks vectors produced by the random fallback; they carry no meaning.
type EmbedResult struct {
	Vectors  [][]float32
	Degraded bool
	Cause    error
}

// UpsertRequest defines inputs for writing vectors.
type UpsertRequest struct {
	Index     string
	Namespace string
	Vectors   []vectordb.Vector
	BatchSize int
	Logf      func(format string, args ...any)
}

// UpsertResult reports what was written and how.
type UpsertResult struct {
	Count     int
	Path      string
	Batches   int
	Fallbacks int
	Cause     error
}

// UpsertDocumentsRequest defines inputs for embedding and writing documents.
type UpsertDocumentsRequest struct {
	Index     string
	Namespace string
	Documents []document.Document
	Dimension int
	BatchSize int
	Logf      func(format string, args ...any)
}

// UpsertDocumentsResult combines the embed and upsert outcomes.
type UpsertDocumentsResult struct {
	Embed  *EmbedResult
	Upsert *UpsertResult
}

// SearchRequest defines inputs for a similarity query.
type SearchRequest struct {
	Index     string
	Namespace string
	Query     string
	TopK      int
	Dimension int
	Logf      func(format string, args ...any)
}

// SearchResult holds matches in the order returned by the index.
// Namespaced is false when the unscoped retry produced the matches.
type SearchResult struct {
	Query      string           `json:"query" yaml:"query"`
	Namespace  string           `json:"namespace" yaml:"namespace"`
	Namespaced bool             `json:"namespaced" yaml:"namespaced"`
	Degraded   bool             `json:"degraded" yaml:"degraded"`
	Matches    []vectordb.Match `json:"matches" yaml:"matches"`
	Cause      error            `json:"-" yaml:"-"`
}

// RunRequest defines inputs for the whole workflow.
type RunRequest struct {
	Index     string
	Namespace string
	Documents []document.Document
	Query     string
	TopK      int
	BatchSize int
	SkipWait  bool
	Output    string
	Out       io.Writer
	Logf      func(format string, args ...any)
}

// RunReport summarizes a workflow run.
type RunReport struct {
	RunID         string                     `json:"runId" yaml:"runId"`
	StartedAt     time.Time                  `json:"startedAt" yaml:"startedAt"`
	Elapsed       time.Duration              `json:"elapsed" yaml:"elapsed"`
	Index         *vectordb.IndexDescription `json:"index,omitempty" yaml:"index,omitempty"`
	Namespace     string                     `json:"namespace" yaml:"namespace"`
	Documents     int                        `json:"documents" yaml:"documents"`
	EmbedDegraded bool                       `json:"embedDegraded" yaml:"embedDegraded"`
	UpsertPath    string                     `json:"upsertPath,omitempty" yaml:"upsertPath,omitempty"`
	Upserted      int                        `json:"upserted" yaml:"upserted"`
	Stats         *vectordb.IndexStats       `json:"stats,omitempty" yaml:"stats,omitempty"`
	Search        *SearchResult              `json:"search,omitempty" yaml:"search,omitempty"`
	Stage         Stage                      `json:"stage" yaml:"stage"`
	Error         string                     `json:"error,omitempty" yaml:"error,omitempty"`
	Hint          string                     `json:"hint,omitempty" yaml:"hint,omitempty"`
}
