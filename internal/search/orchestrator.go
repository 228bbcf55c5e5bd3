// Package search implements the federated search orchestrator. It
// resolves the effective storage location set per request, fans out to
// backend engines under a concurrency cap and deadline, scores and
// ranks the merged candidates, and serves both offset-based and
// storage-level pagination behind one API.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/genomicsearch/genomicsearch/internal/cache"
	"github.com/genomicsearch/genomicsearch/internal/config"
	"github.com/genomicsearch/genomicsearch/internal/match"
	"github.com/genomicsearch/genomicsearch/internal/metrics"
	"github.com/genomicsearch/genomicsearch/internal/rank"
	"github.com/genomicsearch/genomicsearch/internal/storage"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// maxCursorRounds bounds listing rounds per storage-paginated call so
// a backend that keeps returning empty pages with fresh cursors cannot
// stall a request forever.
const maxCursorRounds = 32

// Orchestrator coordinates one search across all configured backends.
// Safe for concurrent use; the caches it holds are shared across
// requests.
type Orchestrator struct {
	cfg      config.SearchConfig
	registry *storage.Registry
	caches   *cache.Set
	metrics  *metrics.Collector
	logger   *slog.Logger
	sem      *semaphore.Weighted
}

// New builds an orchestrator. caches may be nil, in which case a fresh
// cache set is built from the configuration; collector may be nil for
// no metrics.
func New(cfg config.SearchConfig, registry *storage.Registry, caches *cache.Set, collector *metrics.Collector, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil || len(registry.Engines()) == 0 {
		return nil, searcherrors.New(searcherrors.ErrCodeInternal,
			"at least one storage engine is required")
	}
	if caches == nil {
		caches = cache.NewSet(cfg.Caches)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		caches:   caches,
		metrics:  collector,
		logger:   logger.With("component", "orchestrator"),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentSearches)),
	}, nil
}

// Search runs an offset-paginated search: the full candidate set is
// collected, ranked, and sliced at [offset, offset+max_results).
// Requests with storage-level pagination enabled are routed to
// SearchPaginated.
func (o *Orchestrator) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	if req != nil && req.EnableStoragePagination {
		return o.SearchPaginated(ctx, req)
	}

	start := time.Now()
	resp, err := o.searchOffset(ctx, req)
	o.metrics.RecordSearch(time.Since(start), returned(resp), err)
	return resp, err
}

// SearchPaginated runs a storage-level paginated search: candidates
// are pulled from backends in bounded buffers, ranked within the
// buffer, and a continuation token resumes from per-backend native
// cursors. Offset is ignored in this mode.
func (o *Orchestrator) SearchPaginated(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	resp, err := o.searchCursor(ctx, req)
	o.metrics.RecordSearch(time.Since(start), returned(resp), err)
	return resp, err
}

func (o *Orchestrator) searchOffset(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	logger := o.logger.With("request_id", requestID)

	locations, notes, err := o.resolveLocations(ctx, req.AdHocLocations)
	if err != nil {
		return nil, err
	}

	cacheKey := o.resultCacheKey(req, locations)
	if cacheKey != "" {
		if cached, ok := o.caches.Results.Get(cacheKey); ok {
			o.metrics.RecordCacheHit("results")
			resp := *cached
			resp.Duration = time.Since(start)
			resp.Diagnostics.RequestID = requestID
			return &resp, nil
		}
		o.metrics.RecordCacheMiss("results")
	}

	pool, searched, listNotes := o.collectAll(ctx, logger, req, locations)
	notes = append(notes, listNotes...)

	results := o.selectPrimaries(pool, req)
	if req.IncludeAssociatedFiles {
		results = attachAssociations(results, pool)
	}

	ranked := rank.RankResults(results, rank.SortByRelevance)
	total := len(ranked)
	page := rank.ApplyPagination(ranked, req.MaxResults, req.Offset)

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	resp := o.assemble(page, searched, notes, requestID)
	resp.TotalFound = total
	resp.Duration = time.Since(start)
	if offset+len(page) < total {
		resp.Pagination.HasMore = true
		resp.Pagination.NextOffset = offset + len(page)
	}

	if cacheKey != "" {
		o.caches.Results.Put(cacheKey, resp)
		o.metrics.UpdateCacheEntries("results", o.caches.Results.Len())
	}
	return resp, nil
}

func (o *Orchestrator) searchCursor(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	logger := o.logger.With("request_id", requestID)

	locations, notes, err := o.resolveLocations(ctx, req.AdHocLocations)
	if err != nil {
		return nil, err
	}
	locHash := hashLocations(locations)

	state, err := o.loadPaginationState(req.ContinuationToken, locHash)
	if err != nil {
		return nil, err
	}

	// The stored cursors mark where the current buffer begins; Emitted
	// is how far into that buffer's ranking the caller has read. The
	// base cursors only advance once a buffer is fully drained, so a
	// page never skips results the caller has not seen.
	pool, searched, listNotes, postCursors := o.collectBuffered(ctx, logger, req, locations, state.Cursors)
	notes = append(notes, listNotes...)

	results := o.selectPrimaries(pool, req)
	if req.IncludeAssociatedFiles {
		results = attachAssociations(results, pool)
	}

	// Ranking accuracy is bounded by the buffer: candidates beyond it
	// are not considered until a later buffer. Monotonic progress, not
	// exact top-K.
	ranked := rank.RankResults(results, rank.SortByRelevance)
	page := rank.ApplyPagination(ranked, req.MaxResults, state.Emitted)

	resp := o.assemble(page, searched, notes, requestID)
	resp.TotalFound = len(ranked)
	resp.Duration = time.Since(start)

	bufferDone := state.Emitted+len(page) >= len(ranked)
	var next cache.PaginationState
	switch {
	case !bufferDone:
		next = cache.PaginationState{
			Cursors:       state.Cursors,
			Emitted:       state.Emitted + len(page),
			LocationsHash: locHash,
		}
	case hasOpenCursor(postCursors):
		next = cache.PaginationState{
			Cursors:       postCursors,
			LocationsHash: locHash,
		}
	default:
		return resp, nil
	}

	token, err := encodeToken(next)
	if err != nil {
		return nil, err
	}
	resp.Pagination.HasMore = true
	resp.Pagination.ContinuationToken = token
	o.caches.Pagination.Put(paginationCacheKey(token, locHash), next)
	o.metrics.UpdateCacheEntries("pagination", o.caches.Pagination.Len())
	return resp, nil
}

// loadPaginationState resumes cursor state from the pagination cache
// or, on a miss, from the token itself. A token minted for a different
// location set is rejected.
func (o *Orchestrator) loadPaginationState(token, locHash string) (cache.PaginationState, error) {
	if token == "" {
		return cache.PaginationState{
			Cursors:       make(map[string]string),
			LocationsHash: locHash,
		}, nil
	}

	if state, ok := o.caches.Pagination.Get(paginationCacheKey(token, locHash)); ok {
		o.metrics.RecordCacheHit("pagination")
		return state, nil
	}
	o.metrics.RecordCacheMiss("pagination")

	state, err := decodeToken(token)
	if err != nil {
		return cache.PaginationState{}, err
	}
	if state.LocationsHash != locHash {
		return cache.PaginationState{}, searcherrors.New(searcherrors.ErrCodeInvalidToken,
			"continuation token does not match the requested location set")
	}
	return state, nil
}

type listOutcome struct {
	location string
	backend  string
	files    []types.GenomicsFile
	cursor   string
	err      error
}

// collectAll drains every page from every location. Used in offset
// mode, which ranks the complete candidate set.
func (o *Orchestrator) collectAll(ctx context.Context, logger *slog.Logger, req *types.SearchRequest, locations []string) ([]types.GenomicsFile, []string, []string) {
	outcomes := o.fanOut(ctx, locations, func(taskCtx context.Context, engine storage.Engine, location string) listOutcome {
		opts := o.listOptions(req)
		out := listOutcome{location: location, backend: engine.Name()}
		for {
			page, err := engine.List(taskCtx, location, opts)
			if err != nil {
				out.err = err
				return out
			}
			out.files = append(out.files, page.Files...)
			if page.NextToken == "" {
				return out
			}
			opts.PageToken = page.NextToken
		}
	})
	return o.mergeOutcomes(logger, outcomes)
}

// collectBuffered pulls at most the pagination buffer worth of
// candidates across locations, advancing each location's native
// cursor. A location with an empty-string cursor is already exhausted
// and is skipped. Returns the updated cursor map alongside the merged
// pool.
func (o *Orchestrator) collectBuffered(ctx context.Context, logger *slog.Logger, req *types.SearchRequest, locations []string, cursors map[string]string) ([]types.GenomicsFile, []string, []string, map[string]string) {
	next := make(map[string]string, len(locations))
	for k, v := range cursors {
		next[k] = v
	}

	active := make([]string, 0, len(locations))
	for _, loc := range locations {
		if cur, started := next[loc]; !started || cur != "" {
			active = append(active, loc)
		}
	}

	var (
		pool     []types.GenomicsFile
		searched []string
		notes    []string
	)
	seen := make(map[string]bool)

	pageSize := req.PaginationBufferSize / max(len(active), 1)
	if pageSize < 1 {
		pageSize = 1
	}

	for round := 0; round < maxCursorRounds && len(pool) < req.PaginationBufferSize && len(active) > 0; round++ {
		outcomes := o.fanOut(ctx, active, func(taskCtx context.Context, engine storage.Engine, location string) listOutcome {
			opts := o.listOptions(req)
			opts.PageToken = next[location]
			opts.PageSize = int32(pageSize)

			out := listOutcome{location: location, backend: engine.Name()}
			page, err := engine.List(taskCtx, location, opts)
			if err != nil {
				out.err = err
				return out
			}
			out.files = page.Files
			out.cursor = page.NextToken
			return out
		})

		stillActive := active[:0]
		for _, out := range outcomes {
			if out.err != nil {
				logger.Warn("backend search failed",
					"backend", out.backend,
					"location", out.location,
					"error", out.err)
				o.metrics.RecordBackendError(out.backend, string(searcherrors.GetCode(out.err)))
				notes = append(notes, fmt.Sprintf("%s: %v", out.location, out.err))
				next[out.location] = ""
				continue
			}
			pool = append(pool, out.files...)
			if !seen[out.backend] {
				seen[out.backend] = true
				searched = append(searched, out.backend)
			}
			next[out.location] = out.cursor
			if out.cursor != "" {
				stillActive = append(stillActive, out.location)
			}
		}
		active = stillActive
	}

	sort.Strings(searched)
	return pool, searched, notes, next
}

// fanOut runs one listing task per location, bounded by the configured
// concurrency limit, each under its own search deadline.
func (o *Orchestrator) fanOut(ctx context.Context, locations []string, task func(context.Context, storage.Engine, string) listOutcome) []listOutcome {
	outcomes := make([]listOutcome, len(locations))
	var wg sync.WaitGroup

	for i, loc := range locations {
		engine, ok := o.registry.EngineFor(loc)
		if !ok {
			outcomes[i] = listOutcome{
				location: loc,
				err: searcherrors.Newf(searcherrors.ErrCodeInvalidLocation,
					"no engine handles location %s", loc),
			}
			continue
		}

		wg.Add(1)
		go func(i int, engine storage.Engine, location string) {
			defer wg.Done()

			if err := o.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = listOutcome{location: location, backend: engine.Name(), err: err}
				return
			}
			defer o.sem.Release(1)

			taskCtx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
			defer cancel()

			started := time.Now()
			outcomes[i] = task(taskCtx, engine, location)
			o.metrics.RecordBackendList(engine.Name(), time.Since(started))
		}(i, engine, loc)
	}

	wg.Wait()
	return outcomes
}

// mergeOutcomes flattens fan-out outcomes into the candidate pool,
// recording failed locations as diagnostics notes rather than errors.
func (o *Orchestrator) mergeOutcomes(logger *slog.Logger, outcomes []listOutcome) ([]types.GenomicsFile, []string, []string) {
	var (
		pool     []types.GenomicsFile
		searched []string
		notes    []string
	)
	seen := make(map[string]bool)

	for _, out := range outcomes {
		if out.err != nil {
			logger.Warn("backend search failed",
				"backend", out.backend,
				"location", out.location,
				"error", out.err)
			o.metrics.RecordBackendError(out.backend, string(searcherrors.GetCode(out.err)))
			notes = append(notes, fmt.Sprintf("%s: %v", out.location, out.err))
			continue
		}
		pool = append(pool, out.files...)
		if out.backend != "" && !seen[out.backend] {
			seen[out.backend] = true
			searched = append(searched, out.backend)
		}
	}

	sort.Strings(searched)
	return pool, searched, notes
}

// listOptions translates request-level parameters into per-backend
// listing options. The file type is only pushed down when associated
// files are not wanted: association needs the unfiltered pool so index
// and pair files survive to the grouping pass.
func (o *Orchestrator) listOptions(req *types.SearchRequest) storage.ListOptions {
	opts := storage.ListOptions{
		TagBatchSize: o.cfg.MaxTagRetrievalBatchSize,
	}
	if !req.IncludeAssociatedFiles {
		opts.FileType = req.FileType
	}
	return opts
}

// selectPrimaries applies the file-type hard filter and scores every
// candidate. Candidates scoring zero are excluded. An empty term list
// means "all files of type": every candidate qualifies at full score.
func (o *Orchestrator) selectPrimaries(pool []types.GenomicsFile, req *types.SearchRequest) []types.GenomicsFileResult {
	terms := req.NormalizedTerms()
	results := make([]types.GenomicsFileResult, 0, len(pool))

	for _, f := range pool {
		if req.FileType != "" && f.FileType != req.FileType {
			continue
		}

		if len(terms) == 0 {
			results = append(results, types.GenomicsFileResult{
				PrimaryFile:    f,
				RelevanceScore: 1.0,
			})
			continue
		}

		pathScore, pathReasons := match.MatchFilePath(f.Path, terms)
		tagScore, tagReasons := match.MatchTags(f.Tags, terms)

		score := pathScore
		if tagScore > score {
			score = tagScore
		}
		if score <= 0 {
			continue
		}

		reasons := append(pathReasons, tagReasons...)
		results = append(results, types.GenomicsFileResult{
			PrimaryFile:    f,
			RelevanceScore: score,
			MatchReasons:   reasons,
		})
	}
	return results
}

// assemble builds the response shell shared by both pagination modes.
func (o *Orchestrator) assemble(page []types.GenomicsFileResult, searched, notes []string, requestID string) *types.SearchResponse {
	meta := types.ResponseMetadata{
		FileTypeDistribution:     make(map[string]int),
		SourceSystemDistribution: make(map[string]int),
	}
	for _, r := range page {
		meta.FileTypeDistribution[string(r.PrimaryFile.FileType)]++
		meta.SourceSystemDistribution[r.PrimaryFile.SourceSystem]++
		if len(r.AssociatedFiles) > 0 {
			meta.ResultsWithAssociations++
			meta.TotalAssociatedFiles += len(r.AssociatedFiles)
		}
	}

	return &types.SearchResponse{
		Results:                page,
		Returned:               len(page),
		StorageSystemsSearched: searched,
		Metadata:               meta,
		Diagnostics: types.Diagnostics{
			RequestID:    requestID,
			BackendNotes: notes,
		},
	}
}

// resultCacheKey produces the result-cache key for a request, or ""
// when the request is not cacheable. Only the first offset-mode page
// is cached; deeper pages and cursor-mode responses are not.
func (o *Orchestrator) resultCacheKey(req *types.SearchRequest, locations []string) string {
	if req.Offset != 0 || req.ContinuationToken != "" {
		return ""
	}

	sig := fmt.Sprintf("%s|%s|%d|%t|%s",
		req.FileType,
		strings.Join(req.NormalizedTerms(), ","),
		req.MaxResults,
		req.IncludeAssociatedFiles,
		hashLocations(locations))
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:16])
}

// paginationCacheKey keys cursor state by token and effective location
// set, so identical requests with different ad hoc locations never
// share a cached page.
func paginationCacheKey(token, locHash string) string {
	return locHash + ":" + token
}

func validateRequest(req *types.SearchRequest) error {
	if req == nil {
		return searcherrors.New(searcherrors.ErrCodeValidationFailed, "nil search request")
	}
	return req.Validate()
}

func hasOpenCursor(cursors map[string]string) bool {
	for _, c := range cursors {
		if c != "" {
			return true
		}
	}
	return false
}

func returned(resp *types.SearchResponse) int {
	if resp == nil {
		return 0
	}
	return resp.Returned
}
