package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/viant/vecflow/vectordb"
)

func TestDecode(t *testing.T) {
	generated, err := ID("orphan text")
	require.NoError(t, err)

	tests := []struct {
		name    string
		ext     string
		data    string
		expect  []Document
		wantErr bool
	}{
		{
			name: "json id text",
			ext:  ".json",
			data: `[{"id":"vec1","text":"one"},{"id":"vec2","text":"two","category":"tech"}]`,
			expect: []Document{
				{ID: "vec1", Text: "one"},
				{ID: "vec2", Text: "two", Metadata: map[string]any{"category": "tech"}},
			},
		},
		{
			name: "yaml ingestion keys",
			ext:  ".yaml",
			data: "- _id: rec1\n  chunk_text: first chunk\n- chunk_text: orphan text\n",
			expect: []Document{
				{ID: "rec1", Text: "first chunk"},
				{ID: generated, Text: "orphan text"},
			},
		},
		{
			name:   "wrapped documents sniffed",
			data:   `{"documents":[{"id":"a","text":"alpha","metadata":{"lang":"en"}}]}`,
			expect: []Document{{ID: "a", Text: "alpha", Metadata: map[string]any{"lang": "en"}}},
		},
		{
			name: "json numeric ids",
			ext:  ".json",
			data: `[{"id":1234567,"text":"a"},{"_id":98765432101,"text":"b"},{"id":2.5,"text":"c"}]`,
			expect: []Document{
				{ID: "1234567", Text: "a"},
				{ID: "98765432101", Text: "b"},
				{ID: "2.5", Text: "c"},
			},
		},
		{
			name:   "yaml numeric id",
			ext:    ".yaml",
			data:   "- _id: 1234567\n  chunk_text: a\n",
			expect: []Document{{ID: "1234567", Text: "a"}},
		},
		{
			name:    "missing text",
			ext:     ".json",
			data:    `[{"id":"a"}]`,
			wantErr: true,
		},
		{
			name:    "duplicate id",
			ext:     ".json",
			data:    `[{"id":"a","text":"x"},{"id":"a","text":"y"}]`,
			wantErr: true,
		},
		{
			name:    "empty",
			data:    "  ",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := Decode([]byte(tc.data), tc.ext)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, docs)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := "mem://localhost/vecflow/docs.json"
	require.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(`[{"id":"vec1","text":"one"}]`)))

	docs, err := NewLoader(fs).Load(ctx, URL)
	require.NoError(t, err)
	assert.Equal(t, []Document{{ID: "vec1", Text: "one"}}, docs)

	_, err = NewLoader(fs).Load(ctx, "mem://localhost/vecflow/missing.json")
	assert.Error(t, err)
}

func TestID_Stable(t *testing.T) {
	a, err := ID("same text")
	require.NoError(t, err)
	b, err := ID("same text")
	require.NoError(t, err)
	c, err := ID("other text")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("doc-")+16)
}

func TestSampleVectors(t *testing.T) {
	docs := Sample()
	require.Len(t, docs, 6)
	values := make([][]float32, len(docs))
	for i := range values {
		values[i] = []float32{float32(i)}
	}
	vectors := Vectors(docs, values)
	require.Len(t, vectors, 6)
	for i, v := range vectors {
		assert.Equal(t, docs[i].ID, v.ID)
		assert.Equal(t, docs[i].Text, v.Metadata[vectordb.MetadataText])
		assert.Equal(t, values[i], v.Values)
	}
	assert.Equal(t, Texts(docs)[1], docs[1].Text)
}
