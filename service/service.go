package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/viant/afs"
	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/vectordb"
)

// Option configures the Service.
type Option func(*Service)

// WithVectorDB sets the vector database.
func WithVectorDB(db vectordb.Service) Option {
	return func(s *Service) { s.db = db }
}

// WithEmbedder sets the preferred embedder.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Service) { s.embedder = embedder }
}

// WithFallback sets the embedder factory used when the preferred embedder fails.
func WithFallback(fn func(dim int) embeddings.Embedder) Option {
	return func(s *Service) { s.fallback = fn }
}

// WithClock sets the clock used for polling and settle delays.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithReadinessPolicy sets the index readiness polling policy.
func WithReadinessPolicy(policy Policy) Option {
	return func(s *Service) { s.readiness = policy }
}

// WithRecordRetryPolicy sets the retry policy of sequential per-record upserts.
func WithRecordRetryPolicy(policy Policy) Option {
	return func(s *Service) { s.recordRetry = policy }
}

// WithSettleDelay sets the pause between upsert and stats.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Service) { s.settle = d }
}

// WithFS sets the file system used for reports.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogf sets the default logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Service) { s.logf = logf }
}

// Service exposes the workflow stages against one vector database.
type Service struct {
	db          vectordb.Service
	embedder    embeddings.Embedder
	fallback    func(dim int) embeddings.Embedder
	clock       Clock
	readiness   Policy
	recordRetry Policy
	settle      time.Duration
	fs          afs.Service
	logf        func(format string, args ...any)
}

// NewService creates a new Service.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		clock:       SystemClock(),
		readiness:   ReadinessPolicy(),
		recordRetry: NoRetry(),
		settle:      3 * time.Second,
		fallback: func(dim int) embeddings.Embedder {
			return embeddings.NewRandomEmbedder(dim, nil)
		},
		logf: log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.db == nil {
		return nil, fmt.Errorf("vector database is required")
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	return s, nil
}

// Close releases the vector database when it holds local resources.
func (s *Service) Close() error {
	if closer, ok := s.db.(vectordb.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Stats returns index statistics.
func (s *Service) Stats(ctx context.Context, index string) (*vectordb.IndexStats, error) {
	return s.db.DescribeIndexStats(ctx, index)
}

func (s *Service) resolveLogf(logf func(format string, args ...any)) func(format string, args ...any) {
	if logf != nil {
		return logf
	}
	if s.logf != nil {
		return s.logf
	}
	return func(string, ...any) {}
}
