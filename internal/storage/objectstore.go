// Package storage persists creative artifacts (email HTML, in-app images) in
// an S3-compatible object store. Keys are deterministic so a piece row and its
// artifacts can always be correlated.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/domain"
)

// ObjectStore reads and writes creative artifacts.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Get(ctx context.Context, key string) (data []byte, contentType string, err error)
}

// S3Store is the production ObjectStore.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3-backed store. A non-empty endpoint switches to
// path-style addressing for minio/localstack.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("storage: s3_bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	// Minio/localstack deployments carry static keys instead of a profile.
	if cfg.Endpoint != "" && os.Getenv("S3_ACCESS_KEY") != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"), "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// PieceKey builds the object key for one artifact:
// campaigns/{campaign_id}/{piece_type}/[{commercial_space}/]{uuid}.{ext}.
func PieceKey(campaignID string, channel domain.Channel, commercialSpace, ext string) string {
	name := uuid.New().String() + "." + strings.TrimPrefix(ext, ".")
	if commercialSpace != "" {
		return path.Join("campaigns", campaignID, string(channel), commercialSpace, name)
	}
	return path.Join("campaigns", campaignID, string(channel), name)
}

// ExtFromContentType maps the upload MIME type to a key extension.
func ExtFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "text/html"):
		return "html"
	case contentType == "image/png":
		return "png"
	case contentType == "image/jpeg":
		return "jpg"
	case contentType == "image/gif":
		return "gif"
	case contentType == "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
