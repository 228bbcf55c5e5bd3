package s3

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

type fakeClient struct {
	mu        sync.Mutex
	listOut   *awss3.ListObjectsV2Output
	listErr   error
	listCalls int
	tagCalls  int
	tagSets   map[string][]s3types.Tag
	tagErr    error
	headErr   error
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeClient) GetObjectTagging(ctx context.Context, params *awss3.GetObjectTaggingInput, _ ...func(*awss3.Options)) (*awss3.GetObjectTaggingOutput, error) {
	f.mu.Lock()
	f.tagCalls++
	f.mu.Unlock()
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return &awss3.GetObjectTaggingOutput{TagSet: f.tagSets[aws.ToString(params.Key)]}, nil
}

func (f *fakeClient) HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &awss3.HeadBucketOutput{}, nil
}

func object(key string, size int64) s3types.Object {
	now := time.Now()
	return s3types.Object{
		Key:          aws.String(key),
		Size:         aws.Int64(size),
		LastModified: &now,
		StorageClass: s3types.ObjectStorageClassStandard,
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		bucket   string
		prefix   string
		wantErr  bool
	}{
		{"bucket only", "s3://genomics-data/", "genomics-data", "", false},
		{"bucket and prefix", "s3://genomics-data/cohort1/fastq/", "genomics-data", "cohort1/fastq/", false},
		{"wrong scheme", "gs://bucket/", "", "", true},
		{"empty bucket", "s3://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := parseLocation(tt.location)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.location)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.bucket || prefix != tt.prefix {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, prefix, tt.bucket, tt.prefix)
			}
		})
	}
}

func TestListFiltersAndDetects(t *testing.T) {
	client := &fakeClient{
		listOut: &awss3.ListObjectsV2Output{
			Contents: []s3types.Object{
				object("cohort1/sample1.fastq.gz", 1024),
				object("cohort1/sample1.bam", 2048),
				object("cohort1/notes.txt", 10),
				object("cohort1/subdir/", 0),
			},
		},
		tagSets: map[string][]s3types.Tag{
			"cohort1/sample1.fastq.gz": {
				{Key: aws.String("project"), Value: aws.String("tumor-study")},
			},
		},
	}
	engine := NewEngine(client, nil, slog.Default())

	page, err := engine.List(context.Background(), "s3://bucket/cohort1/", storage.ListOptions{
		FileType: types.FileTypeFastq,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(page.Files))
	}

	f := page.Files[0]
	if f.Path != "s3://bucket/cohort1/sample1.fastq.gz" {
		t.Errorf("unexpected path %q", f.Path)
	}
	if f.FileType != types.FileTypeFastq {
		t.Errorf("unexpected file type %q", f.FileType)
	}
	if f.SourceSystem != "s3" {
		t.Errorf("unexpected source system %q", f.SourceSystem)
	}
	if f.Tags["project"] != "tumor-study" {
		t.Errorf("expected tags to be fetched, got %v", f.Tags)
	}
	if page.NextToken != "" {
		t.Errorf("expected no continuation token, got %q", page.NextToken)
	}
}

func TestListPropagatesContinuationToken(t *testing.T) {
	client := &fakeClient{
		listOut: &awss3.ListObjectsV2Output{
			Contents:              []s3types.Object{object("a.vcf.gz", 100)},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("token-abc"),
		},
	}
	engine := NewEngine(client, nil, slog.Default())

	page, err := engine.List(context.Background(), "s3://bucket/", storage.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.NextToken != "token-abc" {
		t.Errorf("expected continuation token, got %q", page.NextToken)
	}
}

func TestListTagFailureLeavesFileUntagged(t *testing.T) {
	client := &fakeClient{
		listOut: &awss3.ListObjectsV2Output{
			Contents: []s3types.Object{object("sample.bam", 2048)},
		},
		tagErr: errors.New("tagging unavailable"),
	}
	engine := NewEngine(client, nil, slog.Default())

	page, err := engine.List(context.Background(), "s3://bucket/", storage.ListOptions{})
	if err != nil {
		t.Fatalf("tag failure must not fail the page: %v", err)
	}
	if len(page.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(page.Files))
	}
	if page.Files[0].Tags != nil {
		t.Errorf("expected nil tags, got %v", page.Files[0].Tags)
	}
}

type memTagCache struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func (c *memTagCache) Get(key string) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memTagCache) Put(key string, value map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func TestListUsesTagCache(t *testing.T) {
	client := &fakeClient{
		listOut: &awss3.ListObjectsV2Output{
			Contents: []s3types.Object{object("sample.bam", 2048)},
		},
		tagSets: map[string][]s3types.Tag{
			"sample.bam": {{Key: aws.String("sample_id"), Value: aws.String("s1")}},
		},
	}
	cache := &memTagCache{data: make(map[string]map[string]string)}
	engine := NewEngine(client, cache, slog.Default())

	for i := 0; i < 2; i++ {
		page, err := engine.List(context.Background(), "s3://bucket/", storage.ListOptions{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if page.Files[0].Tags["sample_id"] != "s1" {
			t.Errorf("expected cached tags on pass %d, got %v", i, page.Files[0].Tags)
		}
	}
	if client.tagCalls != 1 {
		t.Errorf("expected 1 backend tag call, got %d", client.tagCalls)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code searcherrors.ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, searcherrors.ErrCodeBackendTimeout},
		{"no bucket", &s3types.NoSuchBucket{}, searcherrors.ErrCodeNotFound},
		{"generic", errors.New("connection reset"), searcherrors.ErrCodeBackendList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err, "ListObjectsV2", "s3://bucket/")
			var se *searcherrors.SearchError
			if !errors.As(err, &se) {
				t.Fatalf("expected SearchError, got %T", err)
			}
			if se.Code != tt.code {
				t.Errorf("got code %q, want %q", se.Code, tt.code)
			}
		})
	}
}

func TestValidateAccess(t *testing.T) {
	engine := NewEngine(&fakeClient{}, nil, slog.Default())
	if err := engine.ValidateAccess(context.Background(), "s3://bucket/"); err != nil {
		t.Fatalf("expected access to validate: %v", err)
	}

	denied := NewEngine(&fakeClient{headErr: errors.New("forbidden")}, nil, slog.Default())
	if err := denied.ValidateAccess(context.Background(), "s3://bucket/"); err == nil {
		t.Fatal("expected validation failure")
	}
}
