package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vector"
	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/vectordb"
	_ "modernc.org/sqlite"
)

// Store is a sqlite backed vectordb.Service with brute-force scoring.
type Store struct {
	db            *sql.DB
	dsn           string
	host          string
	pragmas       Pragmas
	ensureSchema  bool
	openedLocally bool
	mu            sync.Mutex
}

// Option configures the store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/db.sqlite).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithHost sets the host reported by DescribeIndex.
func WithHost(host string) Option {
	return func(s *Store) { s.host = host }
}

// WithPragmas sets the pragmas appended to file DSNs.
func WithPragmas(pragmas Pragmas) Option {
	return func(s *Store) { s.pragmas = pragmas }
}

// WithEnsureSchema controls whether tables are created automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// NewStore opens or initializes a Store.
func NewStore(ctx context.Context, opts ...Option) (*Store, error) {
	s := &Store{ensureSchema: true, pragmas: DefaultPragmas()}
	for _, opt := range opts {
		opt(s)
	}
	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("local store: dsn required")
		}
		db, err := engine.Open(s.pragmas.Apply(s.dsn))
		if err != nil {
			return nil, err
		}
		// a single connection keeps ":memory:" databases shared
		db.SetMaxOpenConns(1)
		s.db = db
		s.openedLocally = true
	}
	if s.ensureSchema {
		if err := s.ensureSchemaDDL(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying DB if Store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// CreateIndex registers an index; an existing index keeps its dimension and metric.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric string) (*vectordb.IndexDescription, error) {
	if strings.TrimSpace(name) == "" {
		return nil, badRequest("create index", "index name is required")
	}
	if dimension <= 0 {
		return nil, badRequest("create index", fmt.Sprintf("invalid dimension: %d", dimension))
	}
	metric = vectordb.NormalizeMetric(metric)
	switch metric {
	case vectordb.MetricCosine, vectordb.MetricDotProduct, vectordb.MetricEuclidean:
	default:
		return nil, badRequest("create index", fmt.Sprintf("unsupported metric: %v", metric))
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO vf_index(name, dimension, metric) VALUES(?,?,?)`, name, dimension, metric); err != nil {
		return nil, err
	}
	return s.DescribeIndex(ctx, name)
}

// DescribeIndex returns the named index; a local index is always ready.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*vectordb.IndexDescription, error) {
	desc := &vectordb.IndexDescription{Name: name, Host: s.host, Ready: true, State: "Ready"}
	err := s.db.QueryRowContext(ctx, `SELECT dimension, metric FROM vf_index WHERE name = ?`, name).Scan(&desc.Dimension, &desc.Metric)
	if err == sql.ErrNoRows {
		return nil, &apierr.Error{Kind: apierr.KindNotFound, Op: "describe index", Status: http.StatusNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("Resource %v not found", name)}
	}
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// Upsert writes vectors in one transaction; existing ids are overwritten.
func (s *Store) Upsert(ctx context.Context, index, namespace string, vectors []vectordb.Vector) (int, error) {
	desc, err := s.DescribeIndex(ctx, index)
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	for _, v := range vectors {
		if v.ID == "" {
			return 0, badRequest("upsert", "vector id is required")
		}
		if len(v.Values) != desc.Dimension {
			return 0, badRequest("upsert", fmt.Sprintf("Vector dimension %d does not match the dimension of the index %d", len(v.Values), desc.Dimension))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vf_vector(index_name, namespace, id, embedding, meta)
VALUES(?,?,?,?,?)
ON CONFLICT(index_name, namespace, id) DO UPDATE SET
	embedding=excluded.embedding,
	meta=excluded.meta,
	updated_at=CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, v := range vectors {
		blob, err := vector.EncodeEmbedding(v.Values)
		if err != nil {
			return 0, err
		}
		metaJSON, err := encodeMeta(v.Metadata)
		if err != nil {
			return 0, badRequest("upsert", err.Error())
		}
		if _, err := stmt.ExecContext(ctx, index, namespace, v.ID, blob, metaJSON); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(vectors), nil
}

// DescribeIndexStats counts vectors per namespace.
func (s *Store) DescribeIndexStats(ctx context.Context, index string) (*vectordb.IndexStats, error) {
	desc, err := s.DescribeIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT namespace, COUNT(*) FROM vf_vector WHERE index_name = ? GROUP BY namespace`, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := &vectordb.IndexStats{Dimension: desc.Dimension, Namespaces: map[string]vectordb.NamespaceStats{}}
	for rows.Next() {
		var ns string
		var count int
		if err := rows.Scan(&ns, &count); err != nil {
			return nil, err
		}
		stats.Namespaces[ns] = vectordb.NamespaceStats{VectorCount: count}
		stats.TotalVectorCount += count
	}
	return stats, rows.Err()
}

// Query scores every vector of the namespace and returns the topK by descending score.
func (s *Store) Query(ctx context.Context, index string, req *vectordb.QueryRequest) (*vectordb.QueryResponse, error) {
	if req == nil {
		return nil, badRequest("query", "request is nil")
	}
	desc, err := s.DescribeIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	if req.TopK <= 0 {
		return nil, badRequest("query", "topK must be positive")
	}
	if len(req.Vector) != desc.Dimension {
		return nil, badRequest("query", fmt.Sprintf("Query vector dimension %d does not match the dimension of the index %d", len(req.Vector), desc.Dimension))
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, meta FROM vf_vector WHERE index_name = ? AND namespace = ? ORDER BY id`, index, req.Namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []vectordb.Match
	for rows.Next() {
		var id, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, err
		}
		values, err := vector.DecodeEmbedding(blob)
		if err != nil {
			continue
		}
		score, err := Score(desc.Metric, req.Vector, values)
		if err != nil {
			continue
		}
		match := vectordb.Match{ID: id, Score: float32(score)}
		if req.IncludeValues {
			match.Values = values
		}
		if req.IncludeMetadata {
			if match.Metadata, err = decodeMeta(metaJSON); err != nil {
				return nil, err
			}
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	if matches == nil {
		matches = []vectordb.Match{}
	}
	return &vectordb.QueryResponse{Namespace: req.Namespace, Matches: matches}, nil
}

// Score returns a similarity where higher is closer.
// Euclidean distance d is reported as 1/(1+d).
func Score(metric string, a, b []float32) (float64, error) {
	switch vectordb.NormalizeMetric(metric) {
	case vectordb.MetricDotProduct:
		if len(a) != len(b) {
			return 0, fmt.Errorf("dot product dimension mismatch: %d vs %d", len(a), len(b))
		}
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot, nil
	case vectordb.MetricEuclidean:
		d, err := vector.L2Distance(a, b)
		if err != nil {
			return 0, err
		}
		return 1 / (1 + d), nil
	default:
		return vector.CosineSimilarity(a, b)
	}
}

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vf_index (
			name       TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL,
			metric     TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS vf_vector (
			index_name TEXT NOT NULL,
			namespace  TEXT NOT NULL DEFAULT '',
			id         TEXT NOT NULL,
			embedding  BLOB NOT NULL,
			meta       TEXT,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (index_name, namespace, id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func encodeMeta(metaIn map[string]any) (string, error) {
	if len(metaIn) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metaIn)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMeta(metaJSON string) (map[string]any, error) {
	if metaJSON == "" {
		return map[string]any{}, nil
	}
	metaMap := map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &metaMap); err != nil {
		return nil, err
	}
	return metaMap, nil
}

func badRequest(op, msg string) *apierr.Error {
	return &apierr.Error{Kind: apierr.KindRemoteService, Op: op, Status: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: msg}
}

var _ vectordb.Service = (*Store)(nil)
