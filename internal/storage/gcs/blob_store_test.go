package gcs

import (
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "articles"})
	require.Error(t, err)

	_, err = New(&gcstorage.Client{}, Config{})
	require.Error(t, err)

	store, err := New(&gcstorage.Client{}, Config{Bucket: "articles", Prefix: "/data/"})
	require.NoError(t, err)
	require.Equal(t, "data", store.prefix)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "data/merolagani.com/abc/result.md", ObjectName("data", "merolagani.com/abc/result.md"))
	require.Equal(t, "merolagani.com/abc/result.md", ObjectName("", "merolagani.com/abc/result.md"))
	require.Equal(t, "merolagani.com/abc/result.md", ObjectName("", "/merolagani.com/abc/result.md"))
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()

	store, err := New(&gcstorage.Client{}, Config{Bucket: "articles"})
	require.NoError(t, err)
	_, err = store.objectName(" ")
	require.Error(t, err)
}
