package upload

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		file   string
		want   string
	}{
		{
			name:   "default prefix",
			prefix: "",
			file:   "results.html",
			want:   "reports/results.html",
		},
		{
			name:   "custom prefix",
			prefix: "fuse/6.1",
			file:   "results.json",
			want:   "fuse/6.1/results.json",
		},
		{
			name:   "slashes trimmed",
			prefix: "/fuse/",
			file:   "results.txt",
			want:   "fuse/results.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &s3Publisher{
				cfg: &config.S3UploadConfig{Prefix: tt.prefix},
			}
			assert.Equal(t, tt.want, p.objectKey(tt.file))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{
			name:       "json file",
			path:       "results/results.json",
			wantPrefix: "application/json",
		},
		{
			name:       "no extension",
			path:       "results/results",
			wantPrefix: "application/octet-stream",
		},
		{
			name:       "html file",
			path:       "results/results.html",
			wantPrefix: "text/html",
		},
		{
			name:       "txt file",
			path:       "results/results.txt",
			wantPrefix: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, detectContentType(tt.path), tt.wantPrefix)
		})
	}
}

func TestNewS3Publisher_RequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(logrus.New(), &config.S3UploadConfig{})
	require.Error(t, err)
}

func TestPublish_MissingFile(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	p, err := NewS3Publisher(log, &config.S3UploadConfig{
		Bucket:      "reports",
		EndpointURL: "http://127.0.0.1:1",
	})
	require.NoError(t, err)

	keys, err := p.Publish(context.Background(), []string{filepath.Join(t.TempDir(), "missing.html")})
	require.Error(t, err)
	assert.Empty(t, keys)
}
