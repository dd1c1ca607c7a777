// Package document defines the text records embedded and written to an index.
package document

import (
	"fmt"
	"strings"

	"github.com/viant/vecflow/vectordb"
)

// Document is a text record identified by ID.
type Document struct {
	ID       string         `json:"id" yaml:"id"`
	Text     string         `json:"text" yaml:"text"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Texts returns the texts of docs in order.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.Text
	}
	return out
}

// Vectors pairs docs with their embeddings; metadata carries the text plus any extra fields.
func Vectors(docs []Document, values [][]float32) []vectordb.Vector {
	out := make([]vectordb.Vector, len(docs))
	for i, doc := range docs {
		meta := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[vectordb.MetadataText] = doc.Text
		out[i] = vectordb.Vector{ID: doc.ID, Metadata: meta}
		if i < len(values) {
			out[i].Values = values[i]
		}
	}
	return out
}

// Normalize requires non-empty texts and unique ids, deriving missing ids from the text.
func Normalize(docs []Document) ([]Document, error) {
	out := make([]Document, len(docs))
	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			return nil, fmt.Errorf("document %d: text is required", i)
		}
		if doc.ID == "" {
			id, err := ID(doc.Text)
			if err != nil {
				return nil, err
			}
			doc.ID = id
		}
		if prev, ok := seen[doc.ID]; ok {
			return nil, fmt.Errorf("document %d: duplicate id %v (first seen at document %d)", i, doc.ID, prev)
		}
		seen[doc.ID] = i
		out[i] = doc
	}
	return out, nil
}
