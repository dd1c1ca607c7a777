package vectordb

import "strings"

// Distance metrics supported by an index.
const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dotproduct"
	MetricEuclidean  = "euclidean"
)

// MetadataText is the metadata key holding the source text of a vector.
const MetadataText = "text"

// IndexDescription describes a named index.
type IndexDescription struct {
	Name      string `json:"name" yaml:"name"`
	Dimension int    `json:"dimension" yaml:"dimension"`
	Metric    string `json:"metric" yaml:"metric"`
	Host      string `json:"host" yaml:"host"`
	Ready     bool   `json:"ready" yaml:"ready"`
	State     string `json:"state" yaml:"state"`
}

// Vector is a record written to an index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the text metadata of the vector, if any.
func (v *Vector) Text() string {
	return metadataText(v.Metadata)
}

// NamespaceStats holds per-namespace statistics.
type NamespaceStats struct {
	VectorCount int `json:"vectorCount" yaml:"vectorCount"`
}

// IndexStats holds index statistics.
type IndexStats struct {
	Dimension        int                       `json:"dimension" yaml:"dimension"`
	IndexFullness    float64                   `json:"indexFullness" yaml:"indexFullness"`
	TotalVectorCount int                       `json:"totalVectorCount" yaml:"totalVectorCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces" yaml:"namespaces"`
}

// QueryRequest is a top-K similarity query.
// An empty Namespace queries the default namespace.
type QueryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// Match is a single query result.
type Match struct {
	ID       string         `json:"id" yaml:"id"`
	Score    float32        `json:"score" yaml:"score"`
	Values   []float32      `json:"values,omitempty" yaml:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Text returns the text metadata of the match, if any.
func (m *Match) Text() string {
	return metadataText(m.Metadata)
}

// QueryResponse holds matches sorted by descending score.
type QueryResponse struct {
	Namespace string  `json:"namespace"`
	Matches   []Match `json:"matches"`
}

// NormalizeMetric lower-cases metric, defaulting to cosine.
func NormalizeMetric(metric string) string {
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		return MetricCosine
	}
	return metric
}

func metadataText(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[MetadataText].(string); ok {
		return v
	}
	return ""
}
