package omics

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/omics"

	"github.com/genomicsearch/genomicsearch/internal/config"
)

// Client is the slice of the HealthOmics API the engine uses. The
// concrete *omics.Client satisfies it; tests inject fakes.
type Client interface {
	ListReadSets(ctx context.Context, params *omics.ListReadSetsInput, optFns ...func(*omics.Options)) (*omics.ListReadSetsOutput, error)
	ListReferences(ctx context.Context, params *omics.ListReferencesInput, optFns ...func(*omics.Options)) (*omics.ListReferencesOutput, error)
	ListTagsForResource(ctx context.Context, params *omics.ListTagsForResourceInput, optFns ...func(*omics.Options)) (*omics.ListTagsForResourceOutput, error)
}

// NewClient builds a HealthOmics client. Static credentials in the
// backend configuration take precedence; otherwise the default AWS
// credential chain applies.
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

	return omics.NewFromConfig(awsCfg), nil
}
