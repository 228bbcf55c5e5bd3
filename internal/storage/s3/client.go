package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/genomicsearch/genomicsearch/internal/config"
)

// Client is the slice of the S3 API the engine uses. The concrete
// *s3.Client satisfies it; tests inject fakes.
type Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// NewClient builds an S3 client. Static credentials in the backend
// configuration take precedence; otherwise the default AWS credential
// chain applies.
func NewClient(ctx context.Context, backend config.BackendConfig) (Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if backend.Region != "" {
		opts = append(opts, awsconfig.WithRegion(backend.Region))
	}
	if backend.AccessKeyID != "" && backend.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				backend.AccessKeyID, backend.SecretAccessKey, backend.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if backend.Endpoint != "" {
			o.BaseEndpoint = aws.String(backend.Endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}
