package mcp

import (
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/vectordb"
)

type DescribeIndexInput struct {
	Index string `json:"index,omitempty"`
}

type DescribeIndexOutput struct {
	Index *vectordb.IndexDescription `json:"index"`
}

type IndexStatsInput struct {
	Index string `json:"index,omitempty"`
}

type IndexStatsOutput struct {
	Stats *vectordb.IndexStats `json:"stats"`
}

type SearchInput struct {
	Index     string `json:"index,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Query     string `json:"query"`
	TopK      int    `json:"topK,omitempty"`
}

type SearchOutput struct {
	Namespace  string           `json:"namespace"`
	Namespaced bool             `json:"namespaced"`
	Degraded   bool             `json:"degraded,omitempty"`
	Matches    []vectordb.Match `json:"matches"`
}

type UpsertDocumentsInput struct {
	Index     string              `json:"index,omitempty"`
	Namespace string              `json:"namespace,omitempty"`
	Documents []document.Document `json:"documents"`
	BatchSize int                 `json:"batchSize,omitempty"`
}

type UpsertDocumentsOutput struct {
	Upserted int      `json:"upserted"`
	Path     string   `json:"path"`
	Degraded bool     `json:"degraded,omitempty"`
	IDs      []string `json:"ids"`
}
