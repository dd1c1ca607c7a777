package service

import (
	"context"
	"fmt"

	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/embeddings"
)

const defaultBatchSize = 100

// Upsert writes vectors in chunks of BatchSize. A chunk whose batch write fails
// is written record by record; the first record that still fails aborts the
// remaining sequence and is returned.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	logf := s.resolveLogf(req.Logf)
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	result := &UpsertResult{Path: PathBatch}
	for start := 0; start < len(req.Vectors); start += batchSize {
		end := start + batchSize
		if end > len(req.Vectors) {
			end = len(req.Vectors)
		}
		chunk := req.Vectors[start:end]
		result.Batches++
		count, err := s.db.Upsert(ctx, req.Index, req.Namespace, chunk)
		if err == nil {
			result.Count += upserted(count, len(chunk))
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		logf("batch upsert of %d vectors failed (%v); writing them one by one", len(chunk), err)
		result.Path = PathSequential
		result.Fallbacks++
		result.Cause = err
		for i := range chunk {
			record := chunk[i : i+1]
			var count int
			err := s.recordRetry.Retry(ctx, s.clock, func(ctx context.Context) error {
				var err error
				count, err = s.db.Upsert(ctx, req.Index, req.Namespace, record)
				return err
			})
			if err != nil {
				return result, fmt.Errorf("upsert %v (%d/%d): %w", record[0].ID, start+i+1, len(req.Vectors), err)
			}
			result.Count += upserted(count, 1)
			logf("upserted vector %d/%d", start+i+1, len(req.Vectors))
		}
	}
	return result, nil
}

// UpsertDocuments embeds documents as passages and writes them with their text as metadata.
func (s *Service) UpsertDocuments(ctx context.Context, req UpsertDocumentsRequest) (*UpsertDocumentsResult, error) {
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("no documents to upsert")
	}
	dim := req.Dimension
	if dim <= 0 {
		desc, err := s.db.DescribeIndex(ctx, req.Index)
		if err != nil {
			return nil, err
		}
		dim = desc.Dimension
	}
	embedded, err := s.Embed(ctx, EmbedRequest{Texts: document.Texts(req.Documents), InputType: embeddings.InputPassage, Dimension: dim, Logf: req.Logf})
	if err != nil {
		return nil, err
	}
	written, err := s.Upsert(ctx, UpsertRequest{
		Index:     req.Index,
		Namespace: req.Namespace,
		Vectors:   document.Vectors(req.Documents, embedded.Vectors),
		BatchSize: req.BatchSize,
		Logf:      req.Logf,
	})
	return &UpsertDocumentsResult{Embed: embedded, Upsert: written}, err
}

// Settle waits the configured settle delay for the index to absorb writes.
func (s *Service) Settle(ctx context.Context) error {
	return s.clock.Sleep(ctx, s.settle)
}

// upserted trusts the reported count unless the service omitted it.
func upserted(reported, sent int) int {
	if reported <= 0 {
		return sent
	}
	return reported
}

