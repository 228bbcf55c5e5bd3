package cache

import (
	"github.com/genomicsearch/genomicsearch/internal/config"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// PaginationState is the resumable cursor state for a storage-level
// paginated search: one native cursor per location still being
// drained, plus how many results have already been emitted.
type PaginationState struct {
	// Cursors maps location -> backend-native page token. A location
	// missing from the map has not been started; an empty-string value
	// means it is exhausted.
	Cursors map[string]string `json:"cursors"`
	Emitted int               `json:"emitted"`
	// LocationsHash fingerprints the effective location set the state
	// was built for, so a cursor is never resumed against a different
	// set.
	LocationsHash string `json:"locations_hash"`
}

// Set bundles the three independent caches shared across requests.
// Constructed once at startup and passed into the orchestrator; the
// caches are safe for concurrent use.
type Set struct {
	Tags       *TTLCache[map[string]string]
	Results    *TTLCache[*types.SearchResponse]
	Pagination *TTLCache[PaginationState]
}

// NewSet builds the cache set from configuration.
func NewSet(cfg config.CachesConfig) *Set {
	return &Set{
		Tags:       New[map[string]string](cfg.Tags.TTL, cfg.Tags.MaxEntries, cfg.CleanupKeepRatio),
		Results:    New[*types.SearchResponse](cfg.Results.TTL, cfg.Results.MaxEntries, cfg.CleanupKeepRatio),
		Pagination: New[PaginationState](cfg.Pagination.TTL, cfg.Pagination.MaxEntries, cfg.CleanupKeepRatio),
	}
}
