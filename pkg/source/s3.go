package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the S3 fetcher.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// S3 fetches s3://bucket/key references from any S3 compatible endpoint.
type S3 struct {
	client *minio.Client
}

var _ Fetcher = &S3{}

// NewS3 creates an S3 fetcher. The endpoint may be a bare host or a URL;
// an https URL enables TLS.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	return &S3{client: client}, nil
}

// ParseS3Ref splits an s3://bucket/key reference.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	if Scheme(ref) != "s3" {
		return "", "", fmt.Errorf("not an s3 reference: %q", ref)
	}
	rest := ref[len("s3://"):]
	i := strings.Index(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("s3 reference %q must name a bucket and a key", ref)
	}
	return rest[:i], rest[i+1:], nil
}

func (s *S3) Fetch(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := ParseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	return data, nil
}
