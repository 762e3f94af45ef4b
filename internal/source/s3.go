package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"go-stream-extract/internal/model"
)

// S3Client is the slice of the S3 API the provider needs. *s3.Client
// satisfies it; tests can substitute a fake.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Provider serves s3:// sources. Paths are "bucket/key". The client is
// injected already configured; credential resolution happens outside the
// engine.
type S3Provider struct {
	client S3Client
}

// NewS3Provider wraps an injected S3 client.
func NewS3Provider(client S3Client) *S3Provider {
	return &S3Provider{client: client}
}

func (p *S3Provider) Scheme() string { return "s3" }

// Open fetches an object body as a sequential reader.
func (p *S3Provider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(err, path)
	}
	return out.Body, nil
}

// List enumerates keys under a prefix with ListObjectsV2 pagination.
func (p *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, keyPrefix, err := splitBucketKey(prefix)
	if err != nil {
		return nil, err
	}
	var paths []string
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(err, prefix)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				paths = append(paths, bucket+"/"+*obj.Key)
			}
		}
	}
	return paths, nil
}

// splitBucketKey splits "bucket/key/parts" into bucket and key.
func splitBucketKey(path string) (bucket, key string, err error) {
	path = strings.TrimPrefix(path, "/")
	idx := strings.Index(path, "/")
	if idx <= 0 {
		return path, "", nil
	}
	return path[:idx], path[idx+1:], nil
}

// mapS3Error converts SDK failures into the engine's error kinds so the
// orchestrator can decide retry vs abort.
func mapS3Error(err error, path string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: s3://%s", model.ErrNotFound, path)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "TokenRefreshRequired":
			return fmt.Errorf("%w: s3://%s: %s", model.ErrAuth, path, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("%w: s3://%s: %v", model.ErrTransientIO, path, err)
}
