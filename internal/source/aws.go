package source

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"go-stream-extract/internal/model"
)

// NewS3Client builds an S3 client from the run's auth config. Static keys
// win over a named profile; with neither, the SDK's default credential
// chain applies (env vars, shared config, instance role).
func NewS3Client(ctx context.Context, auth *model.AuthConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if auth != nil {
		if auth.AWSRegion != "" {
			opts = append(opts, config.WithRegion(auth.AWSRegion))
		}
		if auth.AWSAccessKeyID != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(auth.AWSAccessKeyID, auth.AWSSecretAccessKey, auth.AWSSessionToken)))
		} else if auth.AWSProfile != "" {
			opts = append(opts, config.WithSharedConfigProfile(auth.AWSProfile))
		}
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", model.ErrAuth, err)
	}
	return s3.NewFromConfig(cfg), nil
}

// BuildRegistry assembles the provider registry for a run: local files
// always, S3 when the SDK can produce a client.
func BuildRegistry(ctx context.Context, auth *model.AuthConfig) (*Registry, error) {
	client, err := NewS3Client(ctx, auth)
	if err != nil {
		return nil, err
	}
	return NewRegistry(NewFileProvider(), NewS3Provider(client)), nil
}
