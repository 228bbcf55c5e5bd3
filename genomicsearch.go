// Package genomicsearch is a federated search engine for genomics
// data files spread across object storage buckets and biomedical data
// stores. It assembles the backend engines, caches, metrics, and the
// search orchestrator behind a single constructor; callers supply a
// SearchConfig and get back a Client serving offset- and
// storage-paginated searches.
package genomicsearch

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/genomicsearch/genomicsearch/internal/cache"
	"github.com/genomicsearch/genomicsearch/internal/config"
	"github.com/genomicsearch/genomicsearch/internal/metrics"
	"github.com/genomicsearch/genomicsearch/internal/search"
	"github.com/genomicsearch/genomicsearch/internal/storage"
	omicsengine "github.com/genomicsearch/genomicsearch/internal/storage/omics"
	s3engine "github.com/genomicsearch/genomicsearch/internal/storage/s3"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// Config is the process-wide search configuration.
type Config = config.SearchConfig

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config { return config.NewDefault() }

// LoadConfig layers a yaml configuration file (optional, "" to skip)
// and GFS_* environment overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Client is the assembled search engine. Safe for concurrent use.
type Client struct {
	orchestrator *search.Orchestrator
	caches       *cache.Set
	collector    *metrics.Collector
	logger       *slog.Logger
}

// New builds a Client from configuration, constructing backend clients
// from static credentials when configured and the default AWS
// credential chain otherwise.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var s3c s3engine.Client
	var omicsc omicsengine.Client
	var err error

	if cfg.Backends.S3Enabled {
		s3c, err = s3engine.NewClient(ctx, cfg.Backends)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Backends.OmicsEnabled {
		omicsc, err = omicsengine.NewClient(ctx, cfg.Backends)
		if err != nil {
			return nil, err
		}
	}

	return NewWithClients(cfg, s3c, omicsc)
}

// NewWithClients builds a Client around caller-supplied backend
// clients. Tests and callers with custom credential handling use this
// entry point; a nil client disables that backend regardless of the
// enable flags.
func NewWithClients(cfg *Config, s3c s3engine.Client, omicsc omicsengine.Client) (*Client, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)
	caches := cache.NewSet(cfg.Caches)

	collector, err := metrics.NewCollector(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var engines []storage.Engine
	if cfg.Backends.S3Enabled && s3c != nil {
		engines = append(engines, s3engine.NewEngine(s3c, caches.Tags, logger))
	}
	if cfg.Backends.OmicsEnabled && omicsc != nil {
		engines = append(engines, omicsengine.NewEngine(omicsc, caches.Tags, logger))
	}
	if len(engines) == 0 {
		return nil, searcherrors.New(searcherrors.ErrCodeInternal,
			"no storage backend available: check enable flags and clients")
	}

	orchestrator, err := search.New(*cfg, storage.NewRegistry(engines...), caches, collector, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("search engine ready",
		"backends", len(engines),
		"configured_locations", len(cfg.Locations))

	return &Client{
		orchestrator: orchestrator,
		caches:       caches,
		collector:    collector,
		logger:       logger,
	}, nil
}

// Search runs an offset-paginated search.
func (c *Client) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	return c.orchestrator.Search(ctx, req)
}

// SearchPaginated runs a storage-level paginated search driven by
// backend-native cursors and continuation tokens.
func (c *Client) SearchPaginated(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	return c.orchestrator.SearchPaginated(ctx, req)
}

// MetricsHandler serves the prometheus registry. Callers mount it on
// whatever transport they run.
func (c *Client) MetricsHandler() http.Handler {
	return c.collector.Handler()
}

// CacheStats reports hit/miss/eviction counters per cache.
func (c *Client) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"tags":       c.caches.Tags.Stats(),
		"results":    c.caches.Results.Stats(),
		"pagination": c.caches.Pagination.Stats(),
	}
}

// newLogger builds the component logger from configuration. Format
// "json" selects structured JSON output; anything else is text.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
