package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs/file"
	"github.com/viant/vecflow/vectordb"
	"gopkg.in/yaml.v3"
)

// Printer writes human readable progress and results.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a printer; a nil writer discards output.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// Stage announces a workflow stage.
func (p *Printer) Stage(stage Stage, format string, args ...any) {
	p.printf("\n[%s] %s\n", stage, fmt.Sprintf(format, args...))
}

// Index prints an index description.
func (p *Printer) Index(desc *vectordb.IndexDescription) {
	status := "Not Ready"
	if desc.Ready {
		status = "Ready"
	}
	p.printf("  index:     %s\n  dimension: %d\n  metric:    %s\n  status:    %s\n", desc.Name, desc.Dimension, desc.Metric, status)
	if desc.Host != "" {
		p.printf("  host:      %s\n", desc.Host)
	}
}

// Embedded prints an embedding outcome.
func (p *Printer) Embedded(result *EmbedResult, texts int) {
	if result.Degraded {
		p.printf("  WARNING: embeddings are random fallback vectors (%v); similarity results are not meaningful\n", result.Cause)
	}
	p.printf("  embedded %d texts", texts)
	if len(result.Vectors) > 0 {
		v := result.Vectors[0]
		n := len(v)
		if n > 5 {
			n = 5
		}
		p.printf(", dimension %d, sample %v", len(v), v[:n])
	}
	p.printf("\n")
}

// Upserted prints an upsert outcome.
func (p *Printer) Upserted(result *UpsertResult, namespace string) {
	p.printf("  upserted %d vectors into namespace %q via %s write", result.Count, namespace, result.Path)
	if result.Fallbacks > 0 {
		p.printf(" (%d batch failures: %v)", result.Fallbacks, result.Cause)
	}
	p.printf("\n")
}

// Stats prints index statistics.
func (p *Printer) Stats(stats *vectordb.IndexStats, namespace string) {
	names := make([]string, 0, len(stats.Namespaces))
	for name := range stats.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	p.printf("  total vectors: %d\n  namespaces:    %s\n", stats.TotalVectorCount, strings.Join(quoteAll(names), ", "))
	if ns, ok := stats.Namespaces[namespace]; ok {
		p.printf("  vectors in %s: %d\n", namespace, ns.VectorCount)
	}
}

// Results prints ranked matches.
func (p *Printer) Results(result *SearchResult) {
	if result.Degraded {
		p.printf("  WARNING: query embedding is a random fallback vector; ranking is not meaningful\n")
	}
	if !result.Namespaced && result.Namespace == "" {
		p.printf("  (unscoped query)\n")
	}
	p.printf("  found %d matches for %q\n", len(result.Matches), result.Query)
	for i, m := range result.Matches {
		p.printf("\n  %d. score: %.4f\n     id:    %s\n     text:  %q\n", i+1, m.Score, m.ID, m.Text())
	}
}

// Summary prints the final report.
func (p *Printer) Summary(report *RunReport) {
	if report.Error != "" {
		p.printf("\nrun %s failed at %s: %s\n", report.RunID, report.Stage, report.Error)
		if report.Hint != "" {
			p.printf("hint: %s\n", report.Hint)
		}
		return
	}
	p.printf("\nrun %s completed in %v\n", report.RunID, report.Elapsed.Round(1e6))
	if report.Index != nil {
		p.printf("  index:     %s\n", report.Index.Name)
	}
	p.printf("  documents: %d\n  upserted:  %d (%s)\n", report.Documents, report.Upserted, report.UpsertPath)
	if report.Search != nil {
		p.printf("  matches:   %d\n", len(report.Search.Matches))
	}
	if report.EmbedDegraded {
		p.printf("  note: random fallback embeddings were used\n")
	}
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

// EncodeReport encodes report as JSON for .json URLs and YAML otherwise.
func EncodeReport(URL string, report *RunReport) ([]byte, error) {
	if strings.EqualFold(path.Ext(URL), ".json") {
		return json.MarshalIndent(report, "", "  ")
	}
	return yaml.Marshal(report)
}

// SaveReport writes report to any afs supported URL.
func (s *Service) SaveReport(ctx context.Context, URL string, report *RunReport) error {
	data, err := EncodeReport(URL, report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload report %v: %w", URL, err)
	}
	return nil
}
