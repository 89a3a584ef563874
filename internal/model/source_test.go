package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSource_LocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx-bytes"), 0o644))

	data, err := ReadSource(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("onnx-bytes"), data)
}

func TestReadSource_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/model.onnx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote-bytes"))
	}))
	t.Cleanup(srv.Close)

	data, err := ReadSource(context.Background(), nil, srv.URL+"/models/model.onnx")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-bytes"), data)

	_, err = ReadSource(context.Background(), nil, srv.URL+"/missing")
	assert.Error(t, err)
}

func TestReadSource_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadSource(context.Background(), nil, "  ")
	assert.Error(t, err)
	_, err = ReadSource(context.Background(), nil, filepath.Join(t.TempDir(), "nope.onnx"))
	assert.Error(t, err)
}

func TestLoadMetadata(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"input_shape": [1, 224, 224, 3],
		"output_shape": [1, 3],
		"classes": ["healthy", "rust", "blight"],
		"image_size": 224,
		"input_name": "serving_input"
	}`), 0o644))

	metadata, err := LoadMetadata(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"healthy", "rust", "blight"}, metadata.Classes)
	assert.Equal(t, []int64{1, 3}, metadata.OutputShape)
	assert.Equal(t, "serving_input", metadata.InputName)

	empty, err := LoadMetadata(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Classes)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = LoadMetadata(context.Background(), nil, bad)
	assert.Error(t, err)
}

func TestResolveLabels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		configured []string
		metadata   Metadata
		want       LabelSet
		wantErr    bool
	}{
		{name: "configured labels win", configured: []string{"a", "b"}, metadata: Metadata{Classes: []string{"x", "y"}}, want: LabelSet{"a", "b"}},
		{name: "metadata classes as fallback", metadata: Metadata{Classes: []string{"x", "y"}}, want: LabelSet{"x", "y"}},
		{name: "output width matches", configured: []string{"a", "b", "c"}, metadata: Metadata{OutputShape: []int64{1, 3}}, want: LabelSet{"a", "b", "c"}},
		{name: "dynamic output width is accepted", configured: []string{"a"}, metadata: Metadata{OutputShape: []int64{1, -1}}, want: LabelSet{"a"}},
		{name: "output width mismatch", configured: []string{"a", "b"}, metadata: Metadata{OutputShape: []int64{1, 3}}, wantErr: true},
		{name: "no labels at all", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveLabels(tc.configured, tc.metadata)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewServer_MissingModelIsLoadError(t *testing.T) {
	t.Parallel()

	_, err := NewServer(context.Background(), Options{
		Location: filepath.Join(t.TempDir(), "missing.onnx"),
		Labels:   []string{"a"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)
}
