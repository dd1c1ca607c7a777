package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/service"
)

//go:embed tools/describe_index.md
var descDescribeIndex string

//go:embed tools/index_stats.md
var descIndexStats string

//go:embed tools/search.md
var descSearch string

//go:embed tools/upsert_documents.md
var descUpsertDocuments string

func registerTools(registry *protoserver.Registry, h *Handler) error {
	if err := protoserver.RegisterTool[*DescribeIndexInput, *DescribeIndexOutput](registry, "describe_index", descDescribeIndex, func(ctx context.Context, in *DescribeIndexInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.describeIndex(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*IndexStatsInput, *IndexStatsOutput](registry, "index_stats", descIndexStats, func(ctx context.Context, in *IndexStatsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.indexStats(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*SearchInput, *SearchOutput](registry, "search", descSearch, func(ctx context.Context, in *SearchInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.search(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*UpsertDocumentsInput, *UpsertDocumentsOutput](registry, "upsert_documents", descUpsertDocuments, func(ctx context.Context, in *UpsertDocumentsInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := h.upsertDocuments(ctx, in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildSuccessResult(out)
	}); err != nil {
		return err
	}

	return nil
}

func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, message, nil)
}

func buildSuccessResult(payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	b, _ := json.Marshal(payload)
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			schema.TextContent{Type: "text", Text: string(b)},
		},
		StructuredContent: map[string]any{"result": payload},
	}, nil
}

func (h *Handler) index(index string) (string, error) {
	if h == nil || h.service == nil {
		return "", fmt.Errorf("mcp: service unavailable")
	}
	if index = strings.TrimSpace(index); index != "" {
		return index, nil
	}
	if h.defaults.Index == "" {
		return "", fmt.Errorf("mcp: missing index")
	}
	return h.defaults.Index, nil
}

func (h *Handler) namespace(namespace string) string {
	if namespace = strings.TrimSpace(namespace); namespace != "" {
		return namespace
	}
	return h.defaults.Namespace
}

func (h *Handler) describeIndex(ctx context.Context, in *DescribeIndexInput) (*DescribeIndexOutput, error) {
	if in == nil {
		in = &DescribeIndexInput{}
	}
	index, err := h.index(in.Index)
	if err != nil {
		return nil, err
	}
	desc, err := h.service.Connect(ctx, service.ConnectRequest{Index: index})
	if err != nil {
		return nil, err
	}
	return &DescribeIndexOutput{Index: desc}, nil
}

func (h *Handler) indexStats(ctx context.Context, in *IndexStatsInput) (*IndexStatsOutput, error) {
	if in == nil {
		in = &IndexStatsInput{}
	}
	index, err := h.index(in.Index)
	if err != nil {
		return nil, err
	}
	stats, err := h.service.Stats(ctx, index)
	if err != nil {
		return nil, err
	}
	return &IndexStatsOutput{Stats: stats}, nil
}

func (h *Handler) search(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	start := time.Now()
	if in == nil {
		in = &SearchInput{}
	}
	index, err := h.index(in.Index)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("mcp: missing query")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = h.defaults.TopK
	}
	found, err := h.service.Search(ctx, service.SearchRequest{
		Index:     index,
		Namespace: h.namespace(in.Namespace),
		Query:     in.Query,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}
	if h.metricsLog {
		log.Printf("mcp metric op=search index=%s matches=%d namespaced=%t degraded=%t dur=%s", index, len(found.Matches), found.Namespaced, found.Degraded, time.Since(start))
	}
	return &SearchOutput{
		Namespace:  found.Namespace,
		Namespaced: found.Namespaced,
		Degraded:   found.Degraded,
		Matches:    found.Matches,
	}, nil
}

func (h *Handler) upsertDocuments(ctx context.Context, in *UpsertDocumentsInput) (*UpsertDocumentsOutput, error) {
	start := time.Now()
	if in == nil {
		in = &UpsertDocumentsInput{}
	}
	index, err := h.index(in.Index)
	if err != nil {
		return nil, err
	}
	if len(in.Documents) == 0 {
		return nil, fmt.Errorf("mcp: missing documents")
	}
	docs, err := document.Normalize(in.Documents)
	if err != nil {
		return nil, err
	}
	batchSize := in.BatchSize
	if batchSize <= 0 {
		batchSize = h.defaults.BatchSize
	}
	written, err := h.service.UpsertDocuments(ctx, service.UpsertDocumentsRequest{
		Index:     index,
		Namespace: h.namespace(in.Namespace),
		Documents: docs,
		BatchSize: batchSize,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	if h.metricsLog {
		log.Printf("mcp metric op=upsert_documents index=%s docs=%d path=%s dur=%s", index, len(docs), written.Upsert.Path, time.Since(start))
	}
	return &UpsertDocumentsOutput{
		Upserted: written.Upsert.Count,
		Path:     written.Upsert.Path,
		Degraded: written.Embed.Degraded,
		IDs:      ids,
	}, nil
}
