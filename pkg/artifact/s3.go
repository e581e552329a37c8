package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// Configuration errors.
var (
	ErrMissingEndpoint    = errors.New("s3 endpoint is required")
	ErrMissingCredentials = errors.New("s3 access key and secret key are required")
	ErrMissingBucket      = errors.New("s3 bucket is required")
)

// S3Config locates the bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3 publishes to an S3-compatible bucket, creating it on first use.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	mu    sync.Mutex
	ready bool
}

// NewS3 validates cfg and creates the client. No request is made until the
// first [S3.Publish].
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)

	if access == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, ErrMissingBucket
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3{client: client, bucket: bucket, region: region, prefix: cfg.Prefix}, nil
}

// ensureBucket checks for the bucket, creating it when absent. Only success
// is remembered; a failed check is tried again on the next publish.
func (s *S3) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			return err
		}
	}

	s.ready = true

	return nil
}

// Publish implements [Publisher].
func (s *S3) Publish(ctx context.Context, handle, localPath string) (string, error) {
	key, err := ObjectKey(s.prefix, handle, localPath)
	if err != nil {
		return "", err
	}

	content, err := readFile(localPath)
	if err != nil {
		return "", err
	}

	err = s.ensureBucket(ctx)
	if err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType(localPath)})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	return key, nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".xlsx") {
		return ContentTypeXLSX
	}

	return "application/octet-stream"
}

func readFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	return content, nil
}
