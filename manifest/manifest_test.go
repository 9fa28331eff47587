package manifest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

// memFiles is a minimal store.Reader and Writer over a map.
type memFiles struct {
	files map[string][]byte
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (m *memFiles) Version() int { return len(m.files) }

func (m *memFiles) Stat(_ context.Context, name string) (*store.Stat, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, verrors.New(verrors.CodeNotFound, name)
	}
	return &store.Stat{Path: name, Length: int64(len(data))}, nil
}

func (m *memFiles) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, verrors.New(verrors.CodeNotFound, name)
	}
	return data, nil
}

func (m *memFiles) ReadDir(context.Context, string) ([]string, error) { return nil, nil }

func (m *memFiles) History(context.Context, int, int) ([]store.Change, error) { return nil, nil }

func (m *memFiles) WriteFile(_ context.Context, name string, data []byte) error {
	m.files[name] = data
	return nil
}

func strPtr(s string) *string { return &s }

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	files := newMemFiles()

	m := Manifest{
		URL:         "dweb://" + strings.Repeat("f", 64),
		Title:       "The Title",
		Description: "The Description",
		Type:        Types{"dataset"},
		Author:      &Author{Name: "Bob", URL: "dweb://ffffffffffffffffffffffffffffffff"},
	}
	require.NoError(t, Write(ctx, files, m))

	got, err := Read(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, m, *got)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(files.files[Path], &raw))
	assert.Equal(t, []any{"dataset"}, raw["type"])
	assert.Equal(t, map[string]any{"name": "Bob", "url": "dweb://ffffffffffffffffffffffffffffffff"}, raw["author"])
}

func TestDecode_ScalarForms(t *testing.T) {
	m, err := Decode([]byte(`{"title":"t","type":"dataset","author":"Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, Types{"dataset"}, m.Type)
	assert.Equal(t, &Author{Name: "Alice"}, m.Author)

	data, err := json.Marshal(m.Author)
	require.NoError(t, err)
	assert.Equal(t, `"Alice"`, string(data))
}

func TestDecode_UnknownFieldsAllowed(t *testing.T) {
	m, err := Decode([]byte(`{"title":"t","links":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "t", m.Title)
}

func TestValidateJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "title not a string", json: `{"title": 5}`},
		{name: "type list of numbers", json: `{"type": [1, 2]}`},
		{name: "bad url", json: `{"url": "http://example.com"}`},
		{name: "author number", json: `{"author": 3}`},
		{name: "not json", json: `{title:`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON([]byte(tt.json))
			require.Error(t, err)
			assert.Equal(t, verrors.CodeInvalidInput, verrors.GetCode(err))
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	files := newMemFiles()
	require.NoError(t, Write(ctx, files, Manifest{Title: "Old", Description: "Keep"}))

	err := Update(ctx, files, files, Patch{Title: strPtr("New"), Type: Types{"website", "blog"}})
	require.NoError(t, err)

	got, err := Read(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "Keep", got.Description)
	assert.Equal(t, Types{"website", "blog"}, got.Type)
}

func TestUpdate_MissingManifest(t *testing.T) {
	ctx := context.Background()
	files := newMemFiles()

	require.NoError(t, Update(ctx, files, files, Patch{Author: &Author{Name: "Ann"}}))

	got, err := Read(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Author.Name)
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{Title: strPtr("")}.Empty())
}

func TestPatch_Apply(t *testing.T) {
	base := Manifest{
		URL:   "dweb://" + strings.Repeat("a", 64),
		Title: "Old",
		Type:  Types{"dataset"},
	}

	tests := []struct {
		name  string
		patch Patch
		want  Manifest
	}{
		{
			name:  "empty patch",
			patch: Patch{},
			want:  base,
		},
		{
			name:  "clear title",
			patch: Patch{Title: strPtr("")},
			want:  Manifest{URL: base.URL, Type: Types{"dataset"}},
		},
		{
			name:  "replace type and set author",
			patch: Patch{Type: Types{"blog"}, Author: &Author{Name: "Ann", URL: "https://ann.example"}},
			want: Manifest{
				URL:    base.URL,
				Title:  "Old",
				Type:   Types{"blog"},
				Author: &Author{Name: "Ann", URL: "https://ann.example"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.patch.Apply(base)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
