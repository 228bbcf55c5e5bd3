// Package storage defines the common capability every backend search
// engine implements: list candidate genomics files for a location,
// with optional native pagination and bounded tag retrieval. Engines
// are selected per location from a closed set configured at startup.
package storage

import (
	"context"

	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// ListOptions shapes one listing call against a backend.
type ListOptions struct {
	// FileType filters candidates before they are returned; empty means
	// no filter.
	FileType types.FileType

	// PageToken resumes a backend-native listing; empty starts from the
	// beginning.
	PageToken string

	// PageSize caps how many objects one backend page may return. Zero
	// lets the backend choose.
	PageSize int32

	// TagBatchSize bounds concurrent tag lookups for one page so tag
	// retrieval never becomes a per-file round trip storm.
	TagBatchSize int
}

// Page is one backend listing page. NextToken is empty when the
// listing is exhausted.
type Page struct {
	Files     []types.GenomicsFile
	NextToken string
}

// Engine lists candidate genomics files from one backend type.
type Engine interface {
	// Name identifies the backend in diagnostics and metrics.
	Name() string

	// Matches reports whether this engine handles the location URI.
	Matches(location string) bool

	// List returns one page of candidate files for a location. The
	// engine handles its own transient-error retries; the caller treats
	// any returned error as "this backend contributed nothing".
	List(ctx context.Context, location string, opts ListOptions) (Page, error)
}

// AccessValidator probes whether the caller can currently reach a
// location. Used for per-request ad hoc locations.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, location string) error
}

// TagCache memoizes per-file tag lookups. Satisfied by the tag cache
// in internal/cache; engines treat it as optional and best-effort.
type TagCache interface {
	Get(key string) (map[string]string, bool)
	Put(key string, value map[string]string)
}

// Registry holds the engines enabled by configuration and routes
// locations to them.
type Registry struct {
	engines []Engine
}

// NewRegistry builds a registry over the given engines.
func NewRegistry(engines ...Engine) *Registry {
	return &Registry{engines: engines}
}

// EngineFor returns the engine responsible for a location.
func (r *Registry) EngineFor(location string) (Engine, bool) {
	for _, e := range r.engines {
		if e.Matches(location) {
			return e, true
		}
	}
	return nil, false
}

// Engines returns all registered engines.
func (r *Registry) Engines() []Engine {
	return r.engines
}
