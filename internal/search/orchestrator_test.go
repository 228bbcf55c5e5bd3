package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomicsearch/genomicsearch/internal/cache"
	"github.com/genomicsearch/genomicsearch/internal/config"
	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// fakeEngine serves canned files per location with numeric page
// tokens, so storage-level pagination can be exercised without a
// backend.
type fakeEngine struct {
	mu          sync.Mutex
	name        string
	scheme      string
	files       map[string][]types.GenomicsFile
	listErr     map[string]error
	validateErr map[string]error
	listCalls   int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Matches(location string) bool {
	return strings.HasPrefix(location, f.scheme)
}

func (f *fakeEngine) List(ctx context.Context, location string, opts storage.ListOptions) (storage.Page, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if err := f.listErr[location]; err != nil {
		return storage.Page{}, err
	}

	var candidates []types.GenomicsFile
	for _, gf := range f.files[location] {
		if opts.FileType != "" && gf.FileType != opts.FileType {
			continue
		}
		candidates = append(candidates, gf)
	}

	start := 0
	if opts.PageToken != "" {
		var err error
		start, err = strconv.Atoi(opts.PageToken)
		if err != nil {
			return storage.Page{}, err
		}
	}
	if start >= len(candidates) {
		return storage.Page{}, nil
	}

	end := len(candidates)
	if opts.PageSize > 0 && start+int(opts.PageSize) < end {
		end = start + int(opts.PageSize)
	}

	page := storage.Page{Files: candidates[start:end]}
	if end < len(candidates) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeEngine) ValidateAccess(ctx context.Context, location string) error {
	if err := f.validateErr[location]; err != nil {
		return err
	}
	return nil
}

func file(path string, ft types.FileType) types.GenomicsFile {
	return types.GenomicsFile{
		Path:         path,
		FileType:     ft,
		SizeBytes:    1024,
		LastModified: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		SourceSystem: "s3",
	}
}

func testConfig(locations ...string) config.SearchConfig {
	cfg := *config.NewDefault()
	cfg.Locations = locations
	return cfg
}

// fixtureEngine holds 3 fastq files matching "sample1" and 5 files
// that must not match it.
func fixtureEngine() *fakeEngine {
	loc := "s3://genomics-data/"
	return &fakeEngine{
		name:   "s3",
		scheme: "s3://",
		files: map[string][]types.GenomicsFile{
			loc: {
				file("s3://genomics-data/runs/sample1.fastq.gz", types.FileTypeFastq),
				file("s3://genomics-data/runs/sample1_R1.fastq.gz", types.FileTypeFastq),
				file("s3://genomics-data/runs/sample1_R2.fastq.gz", types.FileTypeFastq),
				file("s3://genomics-data/runs/control7.fastq.gz", types.FileTypeFastq),
				file("s3://genomics-data/runs/blank99.fastq.gz", types.FileTypeFastq),
				file("s3://genomics-data/refs/grch38.fasta", types.FileTypeFasta),
				file("s3://genomics-data/aligned/xyz.bam", types.FileTypeBam),
				file("s3://genomics-data/calls/qrs.vcf.gz", types.FileTypeVcf),
			},
		},
		listErr:     map[string]error{},
		validateErr: map[string]error{},
	}
}

func newTestOrchestrator(t *testing.T, cfg config.SearchConfig, engines ...storage.Engine) *Orchestrator {
	t.Helper()
	o, err := New(cfg, storage.NewRegistry(engines...), nil, nil, nil)
	require.NoError(t, err)
	return o
}

func TestSearchEndToEnd(t *testing.T) {
	engine := fixtureEngine()
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), engine)

	req := &types.SearchRequest{
		FileType:    types.FileTypeFastq,
		SearchTerms: []string{"sample1"},
		MaxResults:  10,
	}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	assert.Equal(t, 3, resp.TotalFound)
	assert.Equal(t, 3, resp.Returned)
	for i, r := range resp.Results {
		assert.Greater(t, r.RelevanceScore, 0.0, "result %d", i)
		assert.Equal(t, types.FileTypeFastq, r.PrimaryFile.FileType)
		assert.NotEmpty(t, r.MatchReasons)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].RelevanceScore, r.RelevanceScore,
				"scores must be non-increasing")
		}
	}
	assert.Equal(t, []string{"s3"}, resp.StorageSystemsSearched)
	assert.False(t, resp.Pagination.HasMore)
	assert.NotEmpty(t, resp.Diagnostics.RequestID)
}

func TestSearchEmptyTermsReturnsAllOfType(t *testing.T) {
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), fixtureEngine())

	req := &types.SearchRequest{FileType: types.FileTypeFastq}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 5, resp.TotalFound)
	for _, r := range resp.Results {
		assert.Equal(t, 1.0, r.RelevanceScore)
	}
}

func TestSearchOffsetSlicing(t *testing.T) {
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), fixtureEngine())

	req := &types.SearchRequest{
		FileType:   types.FileTypeFastq,
		MaxResults: 2,
		Offset:     4,
	}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.TotalFound)
	assert.Equal(t, 1, resp.Returned)
	assert.False(t, resp.Pagination.HasMore)

	// Past the end: empty page, not an error.
	req = &types.SearchRequest{
		FileType:   types.FileTypeFastq,
		MaxResults: 2,
		Offset:     50,
	}
	resp, err = o.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Returned)
	assert.False(t, resp.Pagination.HasMore)
}

func TestSearchAssociatedFiles(t *testing.T) {
	loc := "s3://genomics-data/"
	engine := &fakeEngine{
		name:   "s3",
		scheme: "s3://",
		files: map[string][]types.GenomicsFile{
			loc: {
				file("s3://genomics-data/aligned/sample1.bam", types.FileTypeBam),
				file("s3://genomics-data/aligned/sample1.bam.bai", types.FileTypeBai),
				file("s3://genomics-data/aligned/other2.bam", types.FileTypeBam),
			},
		},
	}
	o := newTestOrchestrator(t, testConfig(loc), engine)

	req := &types.SearchRequest{
		FileType:               types.FileTypeBam,
		SearchTerms:            []string{"sample1"},
		IncludeAssociatedFiles: true,
	}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	r := resp.Results[0]
	assert.Equal(t, "s3://genomics-data/aligned/sample1.bam", r.PrimaryFile.Path)
	require.Len(t, r.AssociatedFiles, 1)
	assert.Equal(t, "s3://genomics-data/aligned/sample1.bam.bai", r.AssociatedFiles[0].Path)
	assert.Equal(t, 1, resp.Metadata.ResultsWithAssociations)
	assert.Equal(t, 1, resp.Metadata.TotalAssociatedFiles)
}

func TestSearchAdHocValidationFailureDropsLocation(t *testing.T) {
	engine := fixtureEngine()
	engine.validateErr["s3://forbidden/"] = searcherrors.New(searcherrors.ErrCodeAccessDenied, "access denied")
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), engine)

	req := &types.SearchRequest{
		FileType:       types.FileTypeFastq,
		SearchTerms:    []string{"sample1"},
		AdHocLocations: []string{"s3://forbidden/"},
	}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err, "a bad ad hoc location must not fail the search")
	assert.Len(t, resp.Results, 3)

	found := false
	for _, note := range resp.Diagnostics.BackendNotes {
		if strings.Contains(note, "s3://forbidden/") {
			found = true
		}
	}
	assert.True(t, found, "dropped ad hoc location must appear in diagnostics: %v", resp.Diagnostics.BackendNotes)
}

func TestSearchNoUsableLocations(t *testing.T) {
	engine := fixtureEngine()
	engine.validateErr["s3://forbidden/"] = errors.New("denied")
	o := newTestOrchestrator(t, testConfig(), engine)

	req := &types.SearchRequest{
		FileType:       types.FileTypeFastq,
		AdHocLocations: []string{"s3://forbidden/"},
	}
	_, err := o.Search(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, searcherrors.ErrCodeNoUsableLocations, searcherrors.GetCode(err))
}

func TestSearchPartialBackendFailure(t *testing.T) {
	good := "s3://genomics-data/"
	bad := "s3://broken/"
	engine := fixtureEngine()
	engine.files[bad] = nil
	engine.listErr[bad] = searcherrors.New(searcherrors.ErrCodeBackendList, "listing failed")

	o := newTestOrchestrator(t, testConfig(good, bad), engine)

	req := &types.SearchRequest{
		FileType:    types.FileTypeFastq,
		SearchTerms: []string{"sample1"},
	}
	resp, err := o.Search(context.Background(), req)
	require.NoError(t, err, "partial failure must degrade, not abort")
	assert.Len(t, resp.Results, 3)
	require.NotEmpty(t, resp.Diagnostics.BackendNotes)
	assert.Contains(t, resp.Diagnostics.BackendNotes[0], bad)
}

func TestSearchResultCacheFirstPageOnly(t *testing.T) {
	engine := fixtureEngine()
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), engine)

	req := &types.SearchRequest{
		FileType:    types.FileTypeFastq,
		SearchTerms: []string{"sample1"},
	}
	first, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	callsAfterFirst := engine.listCalls

	second, err := o.Search(context.Background(), &types.SearchRequest{
		FileType:    types.FileTypeFastq,
		SearchTerms: []string{"sample1"},
	})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, engine.listCalls, "second identical request must be served from cache")
	assert.Equal(t, first.TotalFound, second.TotalFound)
	assert.NotEqual(t, first.Diagnostics.RequestID, second.Diagnostics.RequestID)

	// Deeper pages bypass the cache.
	_, err = o.Search(context.Background(), &types.SearchRequest{
		FileType:    types.FileTypeFastq,
		SearchTerms: []string{"sample1"},
		Offset:      1,
	})
	require.NoError(t, err)
	assert.Greater(t, engine.listCalls, callsAfterFirst)
}

func TestSearchPaginatedWalksWholeSet(t *testing.T) {
	loc := "s3://genomics-data/"
	var files []types.GenomicsFile
	for i := 0; i < 7; i++ {
		files = append(files, file(fmt.Sprintf("s3://genomics-data/runs/sample%d.fastq.gz", i), types.FileTypeFastq))
	}
	engine := &fakeEngine{
		name:   "s3",
		scheme: "s3://",
		files:  map[string][]types.GenomicsFile{loc: files},
	}
	o := newTestOrchestrator(t, testConfig(loc), engine)

	seen := make(map[string]bool)
	token := ""
	for page := 0; page < 10; page++ {
		req := &types.SearchRequest{
			FileType:                types.FileTypeFastq,
			MaxResults:              3,
			EnableStoragePagination: true,
			ContinuationToken:       token,
		}
		resp, err := o.SearchPaginated(context.Background(), req)
		require.NoError(t, err)

		for _, r := range resp.Results {
			assert.False(t, seen[r.PrimaryFile.Path], "result %s emitted twice", r.PrimaryFile.Path)
			seen[r.PrimaryFile.Path] = true
		}
		if !resp.Pagination.HasMore {
			break
		}
		require.NotEmpty(t, resp.Pagination.ContinuationToken)
		token = resp.Pagination.ContinuationToken
	}
	assert.Len(t, seen, 7, "pagination must eventually emit every file exactly once")
}

func TestSearchPaginatedRejectsForeignToken(t *testing.T) {
	engine := fixtureEngine()
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), engine)

	// Token minted for a different location set.
	state := cache.PaginationState{
		Cursors:       map[string]string{"s3://elsewhere/": "3"},
		LocationsHash: hashLocations([]string{"s3://elsewhere/"}),
	}
	token, err := encodeToken(state)
	require.NoError(t, err)

	_, err = o.SearchPaginated(context.Background(), &types.SearchRequest{
		FileType:                types.FileTypeFastq,
		EnableStoragePagination: true,
		ContinuationToken:       token,
	})
	require.Error(t, err)
	assert.Equal(t, searcherrors.ErrCodeInvalidToken, searcherrors.GetCode(err))
}

func TestSearchPaginatedRejectsGarbageToken(t *testing.T) {
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), fixtureEngine())

	_, err := o.SearchPaginated(context.Background(), &types.SearchRequest{
		FileType:                types.FileTypeFastq,
		EnableStoragePagination: true,
		ContinuationToken:       "not-a-token!!!",
	})
	require.Error(t, err)
	assert.Equal(t, searcherrors.ErrCodeInvalidToken, searcherrors.GetCode(err))
}

func TestPaginationCacheKeySeparatesAdHocSets(t *testing.T) {
	token := "shared-token"
	a := paginationCacheKey(token, hashLocations([]string{"s3://configured/"}))
	b := paginationCacheKey(token, hashLocations([]string{"s3://configured/", "s3://adhoc/"}))
	assert.NotEqual(t, a, b)
}

func TestSearchRoutesStoragePagination(t *testing.T) {
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), fixtureEngine())

	resp, err := o.Search(context.Background(), &types.SearchRequest{
		FileType:                types.FileTypeFastq,
		MaxResults:              2,
		EnableStoragePagination: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Pagination.HasMore)
	assert.NotEmpty(t, resp.Pagination.ContinuationToken)
	assert.Zero(t, resp.Pagination.NextOffset, "offset is ignored in storage-level mode")
}

func TestSearchNilRequest(t *testing.T) {
	o := newTestOrchestrator(t, testConfig("s3://genomics-data/"), fixtureEngine())

	_, err := o.Search(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, searcherrors.ErrCodeValidationFailed, searcherrors.GetCode(err))
}
