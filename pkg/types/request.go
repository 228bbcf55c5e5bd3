package types

import (
	"strings"

	"github.com/genomicsearch/genomicsearch/pkg/errors"
)

// Request limits. Requests outside these bounds are rejected at
// construction, before any I/O.
const (
	MaxResultsLimit     = 10000
	DefaultMaxResults   = 100
	MinPaginationBuffer = 100
	MaxPaginationBuffer = 50000
	DefaultPaginationBuffer = 500
	MaxAdHocLocations   = 50

	// ObjectStorageScheme is the URI scheme ad hoc locations must carry.
	ObjectStorageScheme = "s3://"
)

// SearchRequest is the caller's input to a search. Construct through
// NewSearchRequest so invalid requests are rejected before any I/O.
type SearchRequest struct {
	FileType                FileType `json:"file_type,omitempty"`
	SearchTerms             []string `json:"search_terms"`
	MaxResults              int      `json:"max_results"`
	IncludeAssociatedFiles  bool     `json:"include_associated_files"`
	Offset                  int      `json:"offset"`
	ContinuationToken       string   `json:"continuation_token,omitempty"`
	EnableStoragePagination bool     `json:"enable_storage_pagination"`
	PaginationBufferSize    int      `json:"pagination_buffer_size"`
	AdHocLocations          []string `json:"ad_hoc_locations,omitempty"`
}

// NewSearchRequest builds a validated request. fileType may be empty
// (no type filter); empty searchTerms means "all files of type".
func NewSearchRequest(fileType string, searchTerms []string) (*SearchRequest, error) {
	req := &SearchRequest{
		SearchTerms:          searchTerms,
		MaxResults:           DefaultMaxResults,
		PaginationBufferSize: DefaultPaginationBuffer,
	}
	if fileType != "" {
		ft, ok := ParseFileType(fileType)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidFileType,
				"unknown file type %q", fileType)
		}
		req.FileType = ft
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the request against its bounds and normalizes the ad
// hoc location list. It is called by NewSearchRequest and again by the
// orchestrator for requests built directly.
func (r *SearchRequest) Validate() error {
	if r.MaxResults == 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.MaxResults < 1 || r.MaxResults > MaxResultsLimit {
		return errors.Newf(errors.ErrCodeValidationFailed,
			"max_results %d out of range [1, %d]", r.MaxResults, MaxResultsLimit)
	}
	if r.PaginationBufferSize == 0 {
		r.PaginationBufferSize = DefaultPaginationBuffer
	}
	if r.PaginationBufferSize < MinPaginationBuffer || r.PaginationBufferSize > MaxPaginationBuffer {
		return errors.Newf(errors.ErrCodeValidationFailed,
			"pagination_buffer_size %d out of range [%d, %d]",
			r.PaginationBufferSize, MinPaginationBuffer, MaxPaginationBuffer)
	}
	if r.FileType != "" && !fileTypeSet[r.FileType] {
		return errors.Newf(errors.ErrCodeInvalidFileType,
			"unknown file type %q", r.FileType)
	}
	if len(r.AdHocLocations) > MaxAdHocLocations {
		return errors.Newf(errors.ErrCodeTooManyLocations,
			"%d ad hoc locations exceeds limit of %d",
			len(r.AdHocLocations), MaxAdHocLocations)
	}

	normalized := make([]string, 0, len(r.AdHocLocations))
	for _, loc := range r.AdHocLocations {
		n, err := NormalizeLocation(loc)
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}
	r.AdHocLocations = normalized
	return nil
}

// NormalizeLocation canonicalizes an ad hoc storage location: trims
// whitespace, requires the object-storage URI scheme, and appends a
// trailing slash. Invalid locations are a validation error, never
// silently dropped.
func NormalizeLocation(location string) (string, error) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return "", errors.New(errors.ErrCodeInvalidLocation, "empty storage location")
	}
	if !strings.HasPrefix(loc, ObjectStorageScheme) {
		return "", errors.Newf(errors.ErrCodeInvalidLocation,
			"location %q must start with %s", location, ObjectStorageScheme)
	}
	if len(loc) == len(ObjectStorageScheme) {
		return "", errors.Newf(errors.ErrCodeInvalidLocation,
			"location %q has no bucket", location)
	}
	if !strings.HasSuffix(loc, "/") {
		loc += "/"
	}
	return loc, nil
}

// NormalizedTerms returns the search terms lowercased with blank
// entries removed. An empty slice means "all files of type".
func (r *SearchRequest) NormalizedTerms() []string {
	terms := make([]string, 0, len(r.SearchTerms))
	for _, t := range r.SearchTerms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
