package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "voice-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	s, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), testS3Config("http://localhost:4566/"))
	require.NoError(t, err)

	assert.Equal(t, "voice-bucket", s.bucket)
	assert.Equal(t, "us-east-1", s.region)
	assert.Equal(t, "http://localhost:4566", s.endpoint)
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	s, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), testS3Config("http://localhost:4566"))
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.SaveTemp(ctx, "sample.wav", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)

	r, err := s.LoadTemp(ctx, path)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	_ = r.Close()
	require.NoError(t, err)
	assert.Equal(t, "test data", string(content))

	require.NoError(t, s.CleanupTemp(ctx, []string{path}))
	assert.NoFileExists(t, path)
}

func TestS3Storage_UploadToS3_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/voice-bucket/samples/a.wav"), "path %s", r.URL.Path)
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "wav content", string(body))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), testS3Config(server.URL))
	require.NoError(t, err)

	url, err := s.UploadToS3(context.Background(), "samples/a.wav", bytes.NewReader([]byte("wav content")))
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/voice-bucket/samples/a.wav", url)
}

func TestS3Storage_UploadToS3_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), testS3Config(server.URL))
	require.NoError(t, err)

	_, err = s.UploadToS3(context.Background(), "samples/a.wav", bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload to S3")
}

func TestS3Storage_ObjectURL(t *testing.T) {
	s := &S3Storage{bucket: "b", region: "eu-west-1"}
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/k.wav", s.objectURL("k.wav"))

	s.endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/b/k.wav", s.objectURL("k.wav"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/wav", contentType("x/Y.WAV"))
	assert.Equal(t, "application/octet-stream", contentType("x/y.bin"))
}
