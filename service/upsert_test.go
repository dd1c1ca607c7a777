package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/vectordb"
)

func testVectors(n, dim int) []vectordb.Vector {
	out := make([]vectordb.Vector, n)
	for i := range out {
		values := make([]float32, dim)
		values[i%dim] = 1
		out[i] = vectordb.Vector{ID: fmt.Sprintf("vec%d", i+1), Values: values, Metadata: map[string]any{vectordb.MetadataText: fmt.Sprintf("text %d", i+1)}}
	}
	return out
}

func TestService_Upsert(t *testing.T) {
	unavailable := &apierr.Error{Kind: apierr.KindRemoteService, Status: 503}

	testCases := []struct {
		description     string
		vectors         int
		batchSize       int
		upsert          func(vectors []vectordb.Vector) error
		retry           Policy
		expectPath      string
		expectCount     int
		expectCalls     int
		expectErr       bool
		expectFailingID string
	}{
		{
			description: "single batch",
			vectors:     6,
			expectPath:  PathBatch,
			expectCount: 6,
			expectCalls: 1,
		},
		{
			description: "chunked batches",
			vectors:     5,
			batchSize:   2,
			expectPath:  PathBatch,
			expectCount: 5,
			expectCalls: 3,
		},
		{
			description: "batch failure falls back to one write per record",
			vectors:     6,
			upsert: func(vectors []vectordb.Vector) error {
				if len(vectors) > 1 {
					return unavailable
				}
				return nil
			},
			expectPath:  PathSequential,
			expectCount: 6,
			expectCalls: 1 + 6,
		},
		{
			description: "first failing record aborts",
			vectors:     6,
			upsert: func(vectors []vectordb.Vector) error {
				if len(vectors) > 1 || vectors[0].ID == "vec3" {
					return unavailable
				}
				return nil
			},
			expectPath:      PathSequential,
			expectCount:     2,
			expectCalls:     1 + 3,
			expectErr:       true,
			expectFailingID: "vec3",
		},
		{
			description: "record retry policy",
			vectors:     2,
			retry:       Policy{Interval: 1, MaxRetries: 2},
			upsert: func() func(vectors []vectordb.Vector) error {
				failures := 0
				return func(vectors []vectordb.Vector) error {
					if len(vectors) > 1 {
						return unavailable
					}
					if vectors[0].ID == "vec1" && failures < 2 {
						failures++
						return unavailable
					}
					return nil
				}
			}(),
			expectPath:  PathSequential,
			expectCount: 2,
			expectCalls: 1 + 3 + 1,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			db := newFakeDB(4)
			db.upsert = testCase.upsert
			opts := []Option{WithVectorDB(db), WithClock(newFakeClock()), WithLogf(discard)}
			if testCase.retry.MaxRetries > 0 {
				opts = append(opts, WithRecordRetryPolicy(testCase.retry))
			}
			srv, err := NewService(opts...)
			require.NoError(t, err)
			result, err := srv.Upsert(context.Background(), UpsertRequest{
				Index:     "quickstart2",
				Namespace: "ns1",
				Vectors:   testVectors(testCase.vectors, 4),
				BatchSize: testCase.batchSize,
			})
			if testCase.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), testCase.expectFailingID)
				assert.ErrorIs(t, err, unavailable)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, result)
			assert.Equal(t, testCase.expectPath, result.Path)
			assert.Equal(t, testCase.expectCount, result.Count)
			assert.Equal(t, testCase.expectCalls, db.called("upsert"))
		})
	}
}

func TestService_UpsertIdempotent(t *testing.T) {
	db := newFakeDB(4)
	srv, err := NewService(WithVectorDB(db), WithLogf(discard))
	require.NoError(t, err)
	req := UpsertRequest{Index: "quickstart2", Namespace: "ns1", Vectors: testVectors(3, 4)}
	for i := 0; i < 2; i++ {
		_, err := srv.Upsert(context.Background(), req)
		require.NoError(t, err)
	}
	stats, err := srv.Stats(context.Background(), "quickstart2")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Namespaces["ns1"].VectorCount)
}
