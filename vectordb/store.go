package vectordb

import "context"

// Service is the remote vector-database surface the workflow drives.
// Data-plane calls are addressed by index name; implementations resolve the
// index host themselves.
type Service interface {
	DescribeIndex(ctx context.Context, name string) (*IndexDescription, error)
	Upsert(ctx context.Context, index, namespace string, vectors []Vector) (int, error)
	DescribeIndexStats(ctx context.Context, index string) (*IndexStats, error)
	Query(ctx context.Context, index string, req *QueryRequest) (*QueryResponse, error)
}

// Closer is implemented by services holding local resources.
type Closer interface {
	Close() error
}
