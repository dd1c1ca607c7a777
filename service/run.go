package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/embeddings"
)

// Run executes connect, wait-ready, embed, upsert, settle, stats and search in order.
// On failure the returned report carries the failed stage and a hint, and the error is a *StageError.
// A canceled context aborts the current stage without rollback.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	logf := s.resolveLogf(req.Logf)
	printer := NewPrinter(req.Out)
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: s.clock.Now(),
		Namespace: req.Namespace,
		Documents: len(req.Documents),
		Stage:     StageInit,
	}
	logf("run %v: index %v, namespace %v, %d documents", report.RunID, req.Index, req.Namespace, len(req.Documents))
	err := s.run(ctx, req, report, printer, logf)
	report.Elapsed = s.clock.Now().Sub(report.StartedAt)
	if err != nil {
		failed := report.Stage
		_, report.Hint = Hint(&StageError{Stage: failed, Err: err})
		report.Error = err.Error()
		logf("run %v failed at %v: %v", report.RunID, failed, err)
		// an interrupt is not a failure: no report file and no hint
		if !errors.Is(err, context.Canceled) {
			s.saveReport(ctx, req.Output, report, logf)
			printer.Summary(report)
		}
		return report, &StageError{Stage: failed, Err: err}
	}
	report.Stage = StageReport
	s.saveReport(ctx, req.Output, report, logf)
	report.Stage = StageDone
	printer.Summary(report)
	return report, nil
}

func (s *Service) run(ctx context.Context, req RunRequest, report *RunReport, printer *Printer, logf func(string, ...any)) error {
	if len(req.Documents) == 0 {
		return errors.New("no documents to index")
	}

	report.Stage = StageConnect
	printer.Stage(StageConnect, "connecting to index %s", req.Index)
	desc, err := s.Connect(ctx, ConnectRequest{Index: req.Index, Logf: logf})
	if err != nil {
		return err
	}
	report.Index = desc
	if !desc.Ready && !req.SkipWait {
		report.Stage = StageWaitReady
		printer.Stage(StageWaitReady, "waiting for index %s to become ready", req.Index)
		if desc, err = s.WaitReady(ctx, req.Index, logf); err != nil {
			return err
		}
		report.Index = desc
	}
	printer.Index(desc)

	report.Stage = StageEmbed
	printer.Stage(StageEmbed, "embedding %d documents", len(req.Documents))
	embedded, err := s.Embed(ctx, EmbedRequest{
		Texts:     document.Texts(req.Documents),
		InputType: embeddings.InputPassage,
		Dimension: desc.Dimension,
		Logf:      logf,
	})
	if err != nil {
		return err
	}
	report.EmbedDegraded = embedded.Degraded
	printer.Embedded(embedded, len(req.Documents))

	report.Stage = StageUpsert
	printer.Stage(StageUpsert, "upserting into namespace %s", req.Namespace)
	written, err := s.Upsert(ctx, UpsertRequest{
		Index:     req.Index,
		Namespace: req.Namespace,
		Vectors:   document.Vectors(req.Documents, embedded.Vectors),
		BatchSize: req.BatchSize,
		Logf:      logf,
	})
	if written != nil {
		report.UpsertPath = written.Path
		report.Upserted = written.Count
	}
	if err != nil {
		return err
	}
	printer.Upserted(written, req.Namespace)

	report.Stage = StageSettle
	printer.Stage(StageSettle, "waiting %v for indexing", s.settle)
	if err := s.Settle(ctx); err != nil {
		return err
	}

	report.Stage = StageStats
	printer.Stage(StageStats, "reading index statistics")
	stats, err := s.Stats(ctx, req.Index)
	if err != nil {
		return err
	}
	report.Stats = stats
	printer.Stats(stats, req.Namespace)

	search := SearchRequest{
		Index:     req.Index,
		Namespace: req.Namespace,
		Query:     req.Query,
		TopK:      req.TopK,
		Dimension: desc.Dimension,
		Logf:      logf,
	}
	report.Stage = StageQueryEmbed
	printer.Stage(StageQueryEmbed, "embedding query: %s", req.Query)
	queryVec, err := s.EmbedQuery(ctx, search)
	if err != nil {
		return err
	}

	report.Stage = StageSearch
	printer.Stage(StageSearch, "querying top %d in namespace %s", req.TopK, req.Namespace)
	found, err := s.QueryVector(ctx, search, queryVec)
	if err != nil {
		return err
	}
	report.Search = found
	printer.Results(found)
	return nil
}

func (s *Service) saveReport(ctx context.Context, URL string, report *RunReport, logf func(string, ...any)) {
	if URL == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.SaveReport(saveCtx, URL, report); err != nil {
		logf("failed to save report: %v", err)
		return
	}
	logf("report saved to %v", URL)
}
