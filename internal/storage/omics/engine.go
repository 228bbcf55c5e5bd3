// Package omics implements the biomedical store search engine. It
// lists read sets from sequence stores and reference genomes from
// reference stores, exposing both as genomics files with synthesized
// omics:// paths.
package omics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsomics "github.com/aws/aws-sdk-go-v2/service/omics"
	omicstypes "github.com/aws/aws-sdk-go-v2/service/omics/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/semaphore"

	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/retry"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

const engineName = "omics"

// Scheme prefixes every biomedical store location.
const Scheme = "omics://"

const (
	storeTypeSequence  = "sequence-store"
	storeTypeReference = "reference-store"
)

const defaultTagBatchSize = 16

// Engine searches HealthOmics sequence and reference stores.
type Engine struct {
	client  Client
	tags    storage.TagCache
	retryer *retry.Retryer
	logger  *slog.Logger
}

// NewEngine creates a biomedical store engine. tags may be nil.
func NewEngine(client Client, tags storage.TagCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  client,
		tags:    tags,
		retryer: retry.New(retry.DefaultConfig()),
		logger:  logger.With("component", "omics_engine"),
	}
}

// Name identifies the engine in diagnostics and metrics.
func (e *Engine) Name() string { return engineName }

// Matches reports whether the location is a biomedical store URI.
func (e *Engine) Matches(location string) bool {
	return strings.HasPrefix(location, Scheme)
}

// List returns one page of files from the store named by the location.
func (e *Engine) List(ctx context.Context, location string, opts storage.ListOptions) (storage.Page, error) {
	storeType, storeID, err := parseLocation(location)
	if err != nil {
		return storage.Page{}, err
	}

	switch storeType {
	case storeTypeSequence:
		return e.listReadSets(ctx, location, storeID, opts)
	case storeTypeReference:
		return e.listReferences(ctx, location, storeID, opts)
	default:
		return storage.Page{}, searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"unknown store type %q in location %s", storeType, location).
			WithComponent("omics_engine")
	}
}

// ValidateAccess probes the store with a single-item listing.
func (e *Engine) ValidateAccess(ctx context.Context, location string) error {
	storeType, storeID, err := parseLocation(location)
	if err != nil {
		return err
	}

	switch storeType {
	case storeTypeSequence:
		_, err = e.client.ListReadSets(ctx, &awsomics.ListReadSetsInput{
			SequenceStoreId: aws.String(storeID),
			MaxResults:      aws.Int32(1),
		})
	case storeTypeReference:
		_, err = e.client.ListReferences(ctx, &awsomics.ListReferencesInput{
			ReferenceStoreId: aws.String(storeID),
			MaxResults:       aws.Int32(1),
		})
	}
	if err != nil {
		return translateError(err, "ValidateAccess", location)
	}
	return nil
}

func (e *Engine) listReadSets(ctx context.Context, location, storeID string, opts storage.ListOptions) (storage.Page, error) {
	input := &awsomics.ListReadSetsInput{
		SequenceStoreId: aws.String(storeID),
	}
	if opts.PageToken != "" {
		input.NextToken = aws.String(opts.PageToken)
	}
	if opts.PageSize > 0 {
		input.MaxResults = aws.Int32(opts.PageSize)
	}

	var result *awsomics.ListReadSetsOutput
	err := e.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var listErr error
		result, listErr = e.client.ListReadSets(ctx, input)
		if listErr != nil {
			return translateError(listErr, "ListReadSets", location)
		}
		return nil
	})
	if err != nil {
		return storage.Page{}, err
	}

	files := make([]types.GenomicsFile, 0, len(result.ReadSets))
	arns := make([]string, 0, len(result.ReadSets))
	for _, rs := range result.ReadSets {
		ft := mapReadSetFileType(rs.FileType)
		if opts.FileType != "" && ft != opts.FileType {
			continue
		}

		name := aws.ToString(rs.Name)
		if name == "" {
			name = aws.ToString(rs.Id)
		}
		meta := map[string]string{
			"read_set_id": aws.ToString(rs.Id),
			"status":      string(rs.Status),
		}
		if v := aws.ToString(rs.SampleId); v != "" {
			meta["sample_id"] = v
		}
		if v := aws.ToString(rs.SubjectId); v != "" {
			meta["subject_id"] = v
		}
		if si := rs.SequenceInformation; si != nil {
			if si.TotalReadCount != nil {
				meta["total_read_count"] = strconv.FormatInt(*si.TotalReadCount, 10)
			}
			if si.TotalBaseCount != nil {
				meta["total_base_count"] = strconv.FormatInt(*si.TotalBaseCount, 10)
			}
		}

		files = append(files, types.GenomicsFile{
			Path:         fmt.Sprintf("%s%s/%s/readset/%s/%s", Scheme, storeTypeSequence, storeID, aws.ToString(rs.Id), name),
			FileType:     ft,
			LastModified: aws.ToTime(rs.CreationTime),
			SourceSystem: engineName,
			Metadata:     meta,
		})
		arns = append(arns, aws.ToString(rs.Arn))
	}

	e.fetchTags(ctx, files, arns, opts.TagBatchSize)

	return storage.Page{
		Files:     files,
		NextToken: aws.ToString(result.NextToken),
	}, nil
}

func (e *Engine) listReferences(ctx context.Context, location, storeID string, opts storage.ListOptions) (storage.Page, error) {
	// Reference stores hold genomes only; skip the round trip when the
	// caller wants something else.
	if opts.FileType != "" && opts.FileType != types.FileTypeFasta {
		return storage.Page{}, nil
	}

	input := &awsomics.ListReferencesInput{
		ReferenceStoreId: aws.String(storeID),
	}
	if opts.PageToken != "" {
		input.NextToken = aws.String(opts.PageToken)
	}
	if opts.PageSize > 0 {
		input.MaxResults = aws.Int32(opts.PageSize)
	}

	var result *awsomics.ListReferencesOutput
	err := e.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		var listErr error
		result, listErr = e.client.ListReferences(ctx, input)
		if listErr != nil {
			return translateError(listErr, "ListReferences", location)
		}
		return nil
	})
	if err != nil {
		return storage.Page{}, err
	}

	files := make([]types.GenomicsFile, 0, len(result.References))
	arns := make([]string, 0, len(result.References))
	for _, ref := range result.References {
		name := aws.ToString(ref.Name)
		if name == "" {
			name = aws.ToString(ref.Id)
		}
		meta := map[string]string{
			"reference_id": aws.ToString(ref.Id),
		}
		if v := aws.ToString(ref.Md5); v != "" {
			meta["md5"] = v
		}

		files = append(files, types.GenomicsFile{
			Path:         fmt.Sprintf("%s%s/%s/reference/%s/%s", Scheme, storeTypeReference, storeID, aws.ToString(ref.Id), name),
			FileType:     types.FileTypeFasta,
			LastModified: aws.ToTime(ref.CreationTime),
			SourceSystem: engineName,
			Metadata:     meta,
		})
		arns = append(arns, aws.ToString(ref.Arn))
	}

	e.fetchTags(ctx, files, arns, opts.TagBatchSize)

	return storage.Page{
		Files:     files,
		NextToken: aws.ToString(result.NextToken),
	}, nil
}

// fetchTags resolves resource tags for each file, consulting the tag
// cache first and bounding backend calls. Failures leave the file
// untagged.
func (e *Engine) fetchTags(ctx context.Context, files []types.GenomicsFile, arns []string, batchSize int) {
	if len(files) == 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = defaultTagBatchSize
	}

	sem := semaphore.NewWeighted(int64(batchSize))
	var wg sync.WaitGroup

	for i := range files {
		if arns[i] == "" {
			continue
		}
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
		go func(f *types.GenomicsFile, arn string) {
			defer wg.Done()
			defer sem.Release(1)

			out, err := e.client.ListTagsForResource(ctx, &awsomics.ListTagsForResourceInput{
				ResourceArn: aws.String(arn),
			})
			if err != nil {
				e.logger.Debug("tag retrieval failed",
					"path", f.Path,
					"error", err)
				return
			}

			f.Tags = out.Tags
			if e.tags != nil {
				e.tags.Put(f.Path, out.Tags)
			}
		}(&files[i], arns[i])
	}

	wg.Wait()
}

// mapReadSetFileType maps store-native file types onto the search
// taxonomy. Unaligned BAMs report as BAM.
func mapReadSetFileType(ft omicstypes.FileType) types.FileType {
	switch ft {
	case omicstypes.FileTypeFastq:
		return types.FileTypeFastq
	case omicstypes.FileTypeBam, omicstypes.FileTypeUbam:
		return types.FileTypeBam
	case omicstypes.FileTypeCram:
		return types.FileTypeCram
	default:
		return types.FileTypeFastq
	}
}

// parseLocation splits omics://<store-type>/<store-id>/ locations.
func parseLocation(location string) (storeType, storeID string, err error) {
	rest := strings.TrimPrefix(location, Scheme)
	if rest == location {
		return "", "", searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"not a biomedical store location: %s", location).
			WithComponent("omics_engine")
	}

	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"location must be %s<store-type>/<store-id>/: %s", Scheme, location).
			WithComponent("omics_engine")
	}
	if parts[0] != storeTypeSequence && parts[0] != storeTypeReference {
		return "", "", searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
			"unknown store type %q in location %s", parts[0], location).
			WithComponent("omics_engine")
	}
	return parts[0], parts[1], nil
}

// translateError maps SDK failures onto the search error taxonomy.
func translateError(err error, operation, location string) error {
	se := func(code searcherrors.ErrorCode, msg string) *searcherrors.SearchError {
		return searcherrors.New(code, msg).
			WithComponent("omics_engine").
			WithOperation(operation).
			WithContext("location", location).
			WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return se(searcherrors.ErrCodeBackendTimeout,
			fmt.Sprintf("%s timed out for %s", operation, location))
	}

	var notFound *omicstypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return se(searcherrors.ErrCodeNotFound,
			fmt.Sprintf("store not found: %s", location))
	}
	var denied *omicstypes.AccessDeniedException
	if errors.As(err, &denied) {
		return se(searcherrors.ErrCodeAccessDenied,
			fmt.Sprintf("access denied to %s", location))
	}
	var throttled *omicstypes.ThrottlingException
	if errors.As(err, &throttled) {
		return se(searcherrors.ErrCodeThrottled,
			fmt.Sprintf("throttled by backend for %s", location))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException":
			return se(searcherrors.ErrCodeAccessDenied,
				fmt.Sprintf("access denied to %s", location))
		case "ThrottlingException", "TooManyRequestsException":
			return se(searcherrors.ErrCodeThrottled,
				fmt.Sprintf("throttled by backend for %s", location))
		}
	}

	return se(searcherrors.ErrCodeBackendList,
		fmt.Sprintf("%s failed for %s", operation, location))
}
