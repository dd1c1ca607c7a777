package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/embeddings"
	"github.com/viant/vecflow/vectordb"
)

const runDim = 8

func newRunService(t *testing.T, db *fakeDB, clock *fakeClock, embedder embeddings.Embedder) *Service {
	t.Helper()
	srv, err := NewService(WithVectorDB(db), WithEmbedder(embedder), WithClock(clock), WithLogf(discard))
	require.NoError(t, err)
	return srv
}

func runRequest(out *bytes.Buffer) RunRequest {
	return RunRequest{
		Index:     "quickstart2",
		Namespace: "ns1",
		Documents: document.Sample(),
		Query:     document.SampleQuery,
		TopK:      3,
		Out:       out,
		Logf:      discard,
	}
}

func TestService_Run(t *testing.T) {
	db := newFakeDB(runDim)
	clock := newFakeClock()
	srv := newRunService(t, db, clock, embeddings.NewSimpleEmbedder(runDim))
	out := &bytes.Buffer{}

	report, err := srv.Run(context.Background(), runRequest(out))
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 6, report.Documents)
	assert.Equal(t, 6, report.Upserted)
	assert.Equal(t, PathBatch, report.UpsertPath)
	assert.False(t, report.EmbedDegraded)
	require.NotNil(t, report.Stats)
	assert.GreaterOrEqual(t, report.Stats.TotalVectorCount, 6)
	assert.GreaterOrEqual(t, report.Stats.Namespaces["ns1"].VectorCount, 6)
	require.NotNil(t, report.Search)
	assert.Len(t, report.Search.Matches, 3)
	assert.True(t, report.Search.Namespaced)
	assert.Equal(t, 3*time.Second, clock.total())
	assert.Equal(t, 1, db.called("upsert"))
	assert.Contains(t, out.String(), "[search]")
	assert.NotContains(t, out.String(), "WARNING")
}

func TestService_RunWaitsForReadiness(t *testing.T) {
	db := newFakeDB(runDim)
	db.describe = func(call int) (*vectordb.IndexDescription, error) {
		desc := db.desc
		if call < 3 {
			desc.Ready, desc.State = false, "Initializing"
		}
		return &desc, nil
	}
	clock := newFakeClock()
	srv := newRunService(t, db, clock, embeddings.NewSimpleEmbedder(runDim))

	report, err := srv.Run(context.Background(), runRequest(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, StageDone, report.Stage)
	assert.True(t, report.Index.Ready)
	assert.Equal(t, 2*time.Second+3*time.Second, clock.total())
}

func TestService_RunReadyTimeout(t *testing.T) {
	db := newFakeDB(runDim)
	db.describe = func(call int) (*vectordb.IndexDescription, error) {
		desc := db.desc
		desc.Ready, desc.State = false, "Initializing"
		return &desc, nil
	}
	clock := newFakeClock()
	srv := newRunService(t, db, clock, embeddings.NewSimpleEmbedder(runDim))
	out := &bytes.Buffer{}

	report, err := srv.Run(context.Background(), runRequest(out))
	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageWaitReady, stageErr.Stage)
	assert.ErrorIs(t, err, apierr.ErrTimeout)
	assert.Contains(t, err.Error(), "Initializing")
	assert.Equal(t, StageWaitReady, report.Stage)
	assert.NotEmpty(t, report.Hint)
	assert.Equal(t, 300*time.Second, clock.total())
	assert.Zero(t, db.called("upsert"))
	assert.Zero(t, db.called("stats"))
	assert.Zero(t, db.called("query:ns1"))
	assert.Contains(t, out.String(), "failed at wait-ready")
}

func TestService_RunIndexNotFound(t *testing.T) {
	db := newFakeDB(runDim)
	srv := newRunService(t, db, newFakeClock(), embeddings.NewSimpleEmbedder(runDim))
	req := runRequest(&bytes.Buffer{})
	req.Index = "missing"

	report, err := srv.Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
	assert.Equal(t, StageConnect, report.Stage)
	assert.Equal(t, hints[HintIndex], report.Hint)
	assert.Equal(t, 1, db.called("describe"))
}

func TestService_RunDegraded(t *testing.T) {
	db := newFakeDB(runDim)
	db.upsert = func(vectors []vectordb.Vector) error {
		if len(vectors) > 1 {
			return &apierr.Error{Status: 503}
		}
		return nil
	}
	srv := newRunService(t, db, newFakeClock(), &failingEmbedder{err: &apierr.Error{Kind: apierr.KindNotFound, Status: 404, Message: "Model not found"}})
	out := &bytes.Buffer{}

	report, err := srv.Run(context.Background(), runRequest(out))
	require.NoError(t, err)
	assert.True(t, report.EmbedDegraded)
	assert.True(t, report.Search.Degraded)
	assert.Equal(t, PathSequential, report.UpsertPath)
	assert.Equal(t, 6, report.Upserted)
	assert.Equal(t, 7, db.called("upsert"))
	assert.Contains(t, out.String(), "WARNING")
}

func TestService_RunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv := newRunService(t, newFakeDB(runDim), newFakeClock(), embeddings.NewSimpleEmbedder(runDim))

	out := &bytes.Buffer{}
	req := runRequest(out)
	req.Output = filepath.Join(t.TempDir(), "report.json")

	report, err := srv.Run(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageSettle, report.Stage)
	assert.NotContains(t, out.String(), "failed at")
	assert.NotContains(t, out.String(), "hint:")
	_, statErr := os.Stat(req.Output)
	assert.True(t, os.IsNotExist(statErr))
}

// queryOnlyFailure embeds passages but fails every query.
type queryOnlyFailure struct{ *embeddings.SimpleEmbedder }

func (e queryOnlyFailure) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("inference endpoint unavailable")
}

func TestService_RunQueryEmbedFailure(t *testing.T) {
	db := newFakeDB(runDim)
	srv, err := NewService(
		WithVectorDB(db),
		WithEmbedder(queryOnlyFailure{embeddings.NewSimpleEmbedder(runDim)}),
		WithFallback(func(dim int) embeddings.Embedder { return &failingEmbedder{err: errors.New("no fallback")} }),
		WithClock(newFakeClock()),
		WithLogf(discard),
	)
	require.NoError(t, err)
	out := &bytes.Buffer{}

	report, err := srv.Run(context.Background(), runRequest(out))
	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageQueryEmbed, stageErr.Stage)
	assert.Equal(t, StageQueryEmbed, report.Stage)
	assert.False(t, report.EmbedDegraded)
	assert.Equal(t, 6, report.Upserted)
	assert.Zero(t, db.called("query:ns1"))
	assert.Zero(t, db.called("query:"))
	assert.Contains(t, out.String(), "failed at query-embed")
	category, _ := Hint(err)
	assert.Equal(t, HintInference, category)
}

func TestService_RunWritesReport(t *testing.T) {
	srv := newRunService(t, newFakeDB(runDim), newFakeClock(), embeddings.NewSimpleEmbedder(runDim))
	req := runRequest(&bytes.Buffer{})
	req.Output = filepath.Join(t.TempDir(), "report.json")

	report, err := srv.Run(context.Background(), req)
	require.NoError(t, err)
	data, err := os.ReadFile(req.Output)
	require.NoError(t, err)
	var saved RunReport
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, report.RunID, saved.RunID)
	assert.Equal(t, 6, saved.Upserted)
	require.NotNil(t, saved.Search)
	assert.Len(t, saved.Search.Matches, 3)
}
