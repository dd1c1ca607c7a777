package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Loader reads document sets from any afs supported URL (file, mem, s3, gs).
type Loader struct {
	fs afs.Service
}

// NewLoader creates a loader; a nil fs uses afs.New().
func NewLoader(fs afs.Service) *Loader {
	if fs == nil {
		fs = afs.New()
	}
	return &Loader{fs: fs}
}

// Load downloads URL and decodes a JSON or YAML array of records.
// Records may use id/text or _id/chunk_text; other keys go to metadata.
// A record without id gets one derived from its text.
func (l *Loader) Load(ctx context.Context, URL string) ([]Document, error) {
	data, err := l.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	docs, err := Decode(data, strings.ToLower(path.Ext(URL)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return docs, nil
}

// Decode decodes records; ext selects JSON (".json") or YAML, empty ext sniffs the content.
func Decode(data []byte, ext string) ([]Document, error) {
	var records []map[string]any
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document set")
	}
	useJSON := ext == ".json" || (ext == "" && (trimmed[0] == '[' || trimmed[0] == '{'))
	if trimmed[0] == '{' {
		var wrapper struct {
			Documents []map[string]any `json:"documents" yaml:"documents"`
		}
		if err := unmarshal(useJSON, trimmed, &wrapper); err != nil {
			return nil, err
		}
		records = wrapper.Documents
	} else if err := unmarshal(useJSON, trimmed, &records); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(records))
	for i, record := range records {
		doc, err := fromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return Normalize(docs)
}

func unmarshal(useJSON bool, data []byte, target any) error {
	if useJSON {
		return json.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

func fromRecord(record map[string]any) (Document, error) {
	doc := Document{}
	for k, v := range record {
		switch k {
		case "id", "_id":
			doc.ID = idString(v)
		case "text", "chunk_text":
			text, ok := v.(string)
			if !ok {
				return doc, fmt.Errorf("%v must be a string, got %T", k, v)
			}
			doc.Text = text
		case "metadata":
			if m, ok := v.(map[string]any); ok {
				if doc.Metadata == nil {
					doc.Metadata = map[string]any{}
				}
				for mk, mv := range m {
					doc.Metadata[mk] = mv
				}
			}
		default:
			if doc.Metadata == nil {
				doc.Metadata = map[string]any{}
			}
			doc.Metadata[k] = v
		}
	}
	return doc, nil
}

// idString renders ids without exponent notation; JSON numbers decode as float64.
func idString(v any) string {
	switch actual := v.(type) {
	case string:
		return actual
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(actual), 'f', -1, 32)
	case json.Number:
		return actual.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
