package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/vectordb"
)

const defaultTopK = 3

// Search embeds the query and returns the topK matches with metadata and without values.
// A namespace-scoped query is tried first; if it fails the query is retried without
// a namespace and that error, if any, is returned.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	embedded, err := s.EmbedQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.QueryVector(ctx, req, embedded)
}

// EmbedQuery embeds req.Query in query mode, falling back to a random vector.
func (s *Service) EmbedQuery(ctx context.Context, req SearchRequest) (*EmbedResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	dim := req.Dimension
	if dim <= 0 {
		desc, err := s.db.DescribeIndex(ctx, req.Index)
		if err != nil {
			return nil, err
		}
		dim = desc.Dimension
	}
	return s.Embed(ctx, EmbedRequest{Texts: []string{req.Query}, InputType: embeddings.InputQuery, Dimension: dim, Logf: req.Logf})
}

// QueryVector runs the similarity query for an embedded query.
func (s *Service) QueryVector(ctx context.Context, req SearchRequest, embedded *EmbedResult) (*SearchResult, error) {
	logf := s.resolveLogf(req.Logf)
	if embedded == nil || len(embedded.Vectors) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	result := &SearchResult{Query: req.Query, Namespace: req.Namespace, Degraded: embedded.Degraded, Cause: embedded.Cause}
	query := &vectordb.QueryRequest{
		Namespace:       req.Namespace,
		Vector:          embedded.Vectors[0],
		TopK:            req.TopK,
		IncludeValues:   false,
		IncludeMetadata: true,
	}
	if req.Namespace != "" {
		resp, err := s.db.Query(ctx, req.Index, query)
		if err == nil {
			result.Namespaced = true
			result.Matches = resp.Matches
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logf("query in namespace %v failed (%v); retrying without namespace", req.Namespace, err)
		unscoped := *query
		unscoped.Namespace = ""
		query = &unscoped
	}
	resp, err := s.db.Query(ctx, req.Index, query)
	if err != nil {
		return nil, err
	}
	result.Namespace = resp.Namespace
	result.Matches = resp.Matches
	return result, nil
}
