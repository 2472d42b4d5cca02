package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/onionskin/onion/internal/config"
)

// S3Resolver reads s3://bucket/key references from an S3-compatible store.
type S3Resolver struct {
	client *minio.Client

	// bucket is used when a reference omits it (s3:///key or s3://key with
	// no slash).
	bucket string
}

// NewS3Resolver creates a MinIO client from storage settings.
func NewS3Resolver(cfg config.StorageConfig) (*S3Resolver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &S3Resolver{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Resolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := s.split(ref)
	if err != nil {
		return nil, err
	}

	getCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	obj, err := s.client.GetObject(getCtx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := readAllLimited(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// split parses s3://bucket/key. A reference without a bucket uses the
// configured one.
func (s *S3Resolver) split(ref string) (string, string, error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 reference: %s", ref)
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found {
		bucket, key = "", bucket
	}
	if bucket == "" {
		bucket = s.bucket
	}
	key = strings.TrimPrefix(key, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("incomplete s3 reference: %s", ref)
	}
	return bucket, key, nil
}
