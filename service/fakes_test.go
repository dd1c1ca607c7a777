package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/vectordb"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

// fakeDB records calls; nil hooks fall back to an in-memory index.
type fakeDB struct {
	mu        sync.Mutex
	desc      vectordb.IndexDescription
	vectors   map[string]map[string]vectordb.Vector
	calls     []string
	upserts   [][]vectordb.Vector
	describe  func(call int) (*vectordb.IndexDescription, error)
	upsert    func(vectors []vectordb.Vector) error
	query     func(req *vectordb.QueryRequest) (*vectordb.QueryResponse, error)
	stats     func() (*vectordb.IndexStats, error)
	describes int
}

func newFakeDB(dim int) *fakeDB {
	return &fakeDB{
		desc:    vectordb.IndexDescription{Name: "quickstart2", Dimension: dim, Metric: vectordb.MetricCosine, Ready: true, State: "Ready"},
		vectors: map[string]map[string]vectordb.Vector{},
	}
}

func (f *fakeDB) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeDB) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeDB) DescribeIndex(ctx context.Context, name string) (*vectordb.IndexDescription, error) {
	f.record("describe")
	f.mu.Lock()
	f.describes++
	call := f.describes
	f.mu.Unlock()
	if f.describe != nil {
		return f.describe(call)
	}
	if name != f.desc.Name {
		return nil, &apierr.Error{Kind: apierr.KindNotFound, Op: "describe index", Status: 404}
	}
	desc := f.desc
	return &desc, nil
}

func (f *fakeDB) Upsert(ctx context.Context, index, namespace string, vectors []vectordb.Vector) (int, error) {
	f.record("upsert")
	f.mu.Lock()
	f.upserts = append(f.upserts, vectors)
	f.mu.Unlock()
	if f.upsert != nil {
		if err := f.upsert(vectors); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ns := f.vectors[namespace]
	if ns == nil {
		ns = map[string]vectordb.Vector{}
		f.vectors[namespace] = ns
	}
	for _, v := range vectors {
		ns[v.ID] = v
	}
	return len(vectors), nil
}

func (f *fakeDB) DescribeIndexStats(ctx context.Context, index string) (*vectordb.IndexStats, error) {
	f.record("stats")
	if f.stats != nil {
		return f.stats()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &vectordb.IndexStats{Dimension: f.desc.Dimension, Namespaces: map[string]vectordb.NamespaceStats{}}
	for name, ns := range f.vectors {
		stats.Namespaces[name] = vectordb.NamespaceStats{VectorCount: len(ns)}
		stats.TotalVectorCount += len(ns)
	}
	return stats, nil
}

func (f *fakeDB) Query(ctx context.Context, index string, req *vectordb.QueryRequest) (*vectordb.QueryResponse, error) {
	f.record("query:" + req.Namespace)
	if f.query != nil {
		return f.query(req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &vectordb.QueryResponse{Namespace: req.Namespace}
	for _, v := range f.vectors[req.Namespace] {
		if len(resp.Matches) == req.TopK {
			break
		}
		resp.Matches = append(resp.Matches, vectordb.Match{ID: v.ID, Score: 0.5, Metadata: v.Metadata})
	}
	return resp, nil
}

// failingEmbedder always fails.
type failingEmbedder struct{ err error }

func (e *failingEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	return nil, e.err
}

func (e *failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, e.err
}

// shortEmbedder returns one vector fewer than requested.
type shortEmbedder struct{ dim int }

func (e *shortEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, 0, len(docs))
	for i := 1; i < len(docs); i++ {
		out = append(out, make([]float32, e.dim))
	}
	return out, nil
}

func (e *shortEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not supported")
}

func discard(string, ...any) {}
