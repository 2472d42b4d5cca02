package assemble

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/model"
)

func TestRouter_DataURI(t *testing.T) {
	r, err := NewResolver(config.DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, r.S3)

	data, err := r.Resolve(context.Background(), model.EncodeDataURI("", []byte("still")))
	require.NoError(t, err)
	require.Equal(t, []byte("still"), data)
}

func TestRouter_S3WithoutStorage(t *testing.T) {
	r, err := NewResolver(config.DefaultConfig())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "s3://bucket/key.webp")
	require.ErrorContains(t, err, "object storage not configured")
}

func TestURLResolver_RelativeAgainstHTTPBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/onion/movies/duplo-demo/frame.01.webp" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("webp"))
	}))
	defer srv.Close()

	u := NewURLResolver(srv.URL + "/onion")

	data, err := u.Resolve(context.Background(), "movies/duplo-demo/frame.01.webp")
	require.NoError(t, err)
	require.Equal(t, []byte("webp"), data)

	_, err = u.Resolve(context.Background(), "movies/missing.webp")
	require.ErrorContains(t, err, "status 404")
}

func TestURLResolver_RelativeAgainstDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "movies", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies", "x", "a.webp"), []byte("local"), 0o600))

	u := NewURLResolver(dir)
	data, err := u.Resolve(context.Background(), "movies/x/a.webp")
	require.NoError(t, err)
	require.Equal(t, []byte("local"), data)
}

func TestS3Resolver_Split(t *testing.T) {
	s := &S3Resolver{bucket: "default"}

	tests := []struct {
		ref, bucket, key string
		wantErr          bool
	}{
		{"s3://movies/duplo/a.webp", "movies", "duplo/a.webp", false},
		{"s3:///duplo/a.webp", "default", "duplo/a.webp", false},
		{"s3://a.webp", "default", "a.webp", false},
		{"s3://movies/", "", "", true},
		{"https://x/y", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := s.split(tt.ref)
		if tt.wantErr {
			require.Error(t, err, tt.ref)
			continue
		}
		require.NoError(t, err, tt.ref)
		require.Equal(t, tt.bucket, bucket, tt.ref)
		require.Equal(t, tt.key, key, tt.ref)
	}
}

func TestURLResolver_RelativeRefWithoutBase(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "a.webp")
	require.NoError(t, os.WriteFile(abs, []byte("abs"), 0o600))

	u := NewURLResolver("")
	_, err := u.Resolve(context.Background(), "movies/duplo-demo/frame.01.webp")
	require.ErrorContains(t, err, "demo_base_url")

	data, err := u.Resolve(context.Background(), abs)
	require.NoError(t, err)
	require.Equal(t, []byte("abs"), data)
}
