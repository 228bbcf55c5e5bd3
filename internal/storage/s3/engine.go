// Package s3 implements the object-storage search engine. It lists
// genomics files under s3://bucket/prefix/ locations using native
// ListObjectsV2 pagination and retrieves object tags in bounded
// concurrent batches.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/semaphore"

	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/retry"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

const engineName = "s3"

// defaultTagBatchSize bounds tag lookups when the caller passes zero.
const defaultTagBatchSize = 16

// Engine searches object storage locations.
type Engine struct {
	client  Client
	tags    storage.TagCache
	retryer *retry.Retryer
	logger  *slog.Logger
}

// NewEngine creates an object storage engine. tags may be nil, in
// which case every page fetches tags from the backend.
func NewEngine(client Client, tags storage.TagCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  client,
		tags:    tags,
		retryer: retry.New(retry.DefaultConfig()),
		logger:  logger.With("component", "s3_engine"),
	}
}

// Name identifies the engine in diagnostics and metrics.
func (e *Engine) Name() string { return engineName }

// Matches reports whether the location is an object storage URI.
func (e *Engine) Matches(location string) bool {
	return strings.HasPrefix(location, types.ObjectStorageScheme)
}

// List returns one page of candidate files under the location prefix.
func (e *Engine) List(ctx context.Context, location string, opts storage.ListOptions) (storage.Page, error) {
	bucket, prefix, err := parseLocation(location)
	if err != nil {
		return storage.Page{}, err
	}

	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if opts.PageToken != "" {
		input.ContinuationToken = aws.String(opts.PageToken)
	}
	if opts.PageSize > 0 {
		input.MaxKeys = aws.Int32(opts.PageSize)
	}

	var result *awss3.ListObjectsV2Output
	err = e.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var listErr error
		result, listErr = e.client.ListObjectsV2(ctx, input)
		if listErr != nil {
			return translateError(listErr, "ListObjectsV2", location)
		}
		return nil
	})
	if err != nil {
		return storage.Page{}, err
	}

	files := make([]types.GenomicsFile, 0, len(result.Contents))
	for _, obj := range result.Contents {
		key := aws.ToString(obj.Key)
		if strings.HasSuffix(key, "/") {
			continue
		}
		ft, ok := types.DetectFileType(key)
		if !ok {
			continue
		}
		if opts.FileType != "" && ft != opts.FileType {
			continue
		}
		files = append(files, types.GenomicsFile{
			Path:         types.ObjectStorageScheme + bucket + "/" + key,
			FileType:     ft,
			SizeBytes:    aws.ToInt64(obj.Size),
			StorageClass: string(obj.StorageClass),
			LastModified: aws.ToTime(obj.LastModified),
			SourceSystem: engineName,
		})
	}

	e.fetchTags(ctx, bucket, files, opts.TagBatchSize)

	page := storage.Page{Files: files}
	if aws.ToBool(result.IsTruncated) {
		page.NextToken = aws.ToString(result.NextContinuationToken)
	}
	return page, nil
}

// ValidateAccess probes the location's bucket with a head request.
func (e *Engine) ValidateAccess(ctx context.Context, location string) error {
	bucket, _, err := parseLocation(location)
	if err != nil {
		return err
	}

	_, err = e.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return translateError(err, "HeadBucket", location)
	}
	return nil
}

// fetchTags fills in object tags for each file, consulting the tag
// cache first and bounding backend calls to batchSize at a time. Tag
// failures are logged and leave the file untagged; they never fail the
// page.
func (e *Engine) fetchTags(ctx context.Context, bucket string, files []types.GenomicsFile, batchSize int) {
	if len(files) == 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = defaultTagBatchSize
	}

	sem := semaphore.NewWeighted(int64(batchSize))
	var wg sync.WaitGroup

	for i := range files {
		if e.tags != nil {
			if cached, ok := e.tags.Get(files[i].Path); ok {
				files[i].Tags = cached
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(f *types.GenomicsFile) {
			defer wg.Done()
			defer sem.Release(1)

			key := strings.TrimPrefix(f.Path, types.ObjectStorageScheme+bucket+"/")
			out, err := e.client.GetObjectTagging(ctx, &awss3.GetObjectTaggingInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				e.logger.Debug("tag retrieval failed",
					"path", f.Path,
					"error", err)
				return
			}

			tags := make(map[string]string, len(out.TagSet))
			for _, t := range out.TagSet {
				tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			f.Tags = tags
			if e.tags != nil {
				e.tags.Put(f.Path, tags)
			}
		}(&files[i])
	}

	wg.Wait()
}

// parseLocation splits a normalized s3://bucket/prefix/ location.
func parseLocation(location string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(location, types.ObjectStorageScheme)
	if rest == location || rest == "" {
		return "", "", searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"not an object storage location: %s", location).
			WithComponent("s3_engine")
	}

	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"missing bucket in location: %s", location).
			WithComponent("s3_engine")
	}
	return bucket, prefix, nil
}

// translateError maps SDK failures onto the search error taxonomy.
func translateError(err error, operation, location string) error {
	se := func(code searcherrors.ErrorCode, msg string) *searcherrors.SearchError {
		return searcherrors.New(code, msg).
			WithComponent("s3_engine").
			WithOperation(operation).
			WithContext("location", location).
			WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return se(searcherrors.ErrCodeBackendTimeout,
			fmt.Sprintf("%s timed out for %s", operation, location))
	}

	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return se(searcherrors.ErrCodeNotFound,
			fmt.Sprintf("bucket not found: %s", location))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return se(searcherrors.ErrCodeAccessDenied,
				fmt.Sprintf("access denied to %s", location))
		case "NoSuchBucket", "NotFound":
			return se(searcherrors.ErrCodeNotFound,
				fmt.Sprintf("bucket not found: %s", location))
		case "SlowDown", "Throttling", "RequestLimitExceeded", "TooManyRequests":
			return se(searcherrors.ErrCodeThrottled,
				fmt.Sprintf("throttled by backend for %s", location))
		}
	}

	return se(searcherrors.ErrCodeBackendList,
		fmt.Sprintf("%s failed for %s", operation, location))
}
