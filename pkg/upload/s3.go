package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
)

// defaultPrefix is used when no key prefix is configured.
const defaultPrefix = "reports"

// s3Publisher implements Publisher for S3-compatible storage.
type s3Publisher struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
}

// Ensure interface compliance.
var _ Publisher = (*s3Publisher)(nil)

// NewS3Publisher creates a new S3 publisher from the given configuration.
func NewS3Publisher(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) (Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return &s3Publisher{
		log:    log.WithField("component", "s3-publisher"),
		cfg:    cfg,
		client: s3.New(s3.Options{}, opts...),
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (p *s3Publisher) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("buildmatrixoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(p.objectKey(".buildmatrixoor-write-test")),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", p.cfg.Bucket, err)
	}

	return nil
}

// Publish uploads every file to <prefix>/<base name>.
func (p *s3Publisher) Publish(ctx context.Context, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))

	var total int64

	for _, path := range paths {
		key := p.objectKey(filepath.Base(path))

		size, err := p.uploadFile(ctx, path, key)
		if err != nil {
			return keys, fmt.Errorf("uploading %s: %w", path, err)
		}

		total += size
		keys = append(keys, key)
	}

	p.log.WithFields(logrus.Fields{
		"files":  len(keys),
		"size":   units.HumanSize(float64(total)),
		"bucket": p.cfg.Bucket,
		"prefix": p.prefix(),
	}).Info("Published report")

	return keys, nil
}

// uploadFile uploads a single file to S3 and returns its size.
func (p *s3Publisher) uploadFile(ctx context.Context, localPath, key string) (int64, error) {
	f, err := os.Open(localPath) //nolint:gosec // report files written by this process
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(detectContentType(localPath)),
		CacheControl:  aws.String("no-cache"),
	}

	if p.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(p.cfg.StorageClass)
	}

	if p.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(p.cfg.ACL)
	}

	p.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": p.cfg.Bucket,
	}).Debug("Uploading file")

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("PutObject: %w", err)
	}

	return info.Size(), nil
}

func (p *s3Publisher) prefix() string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}

	return prefix
}

// objectKey builds the S3 key of a report file.
func (p *s3Publisher) objectKey(name string) string {
	return p.prefix() + "/" + name
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
