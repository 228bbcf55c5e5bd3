package search

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/genomicsearch/genomicsearch/internal/cache"
	searcherrors "github.com/genomicsearch/genomicsearch/pkg/errors"
)

// encodeToken serializes pagination state into an opaque continuation
// token.
func encodeToken(state cache.PaginationState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", searcherrors.New(searcherrors.ErrCodeInternal,
			"failed to encode continuation token").WithCause(err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// decodeToken parses a continuation token back into pagination state.
// Any malformed token is a validation failure, not an internal error.
func decodeToken(token string) (cache.PaginationState, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return cache.PaginationState{}, searcherrors.New(searcherrors.ErrCodeInvalidToken,
			"continuation token is not valid base64").WithCause(err)
	}

	var state cache.PaginationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return cache.PaginationState{}, searcherrors.New(searcherrors.ErrCodeInvalidToken,
			"continuation token payload is malformed").WithCause(err)
	}
	if state.Cursors == nil {
		state.Cursors = make(map[string]string)
	}
	if state.Emitted < 0 {
		return cache.PaginationState{}, searcherrors.New(searcherrors.ErrCodeInvalidToken,
			"continuation token carries a negative emitted count")
	}
	return state, nil
}

// hashLocations fingerprints the effective location set. Two requests
// that differ only in ad hoc locations must never share pagination
// state.
func hashLocations(locations []string) string {
	sorted := make([]string, len(locations))
	copy(sorted, locations)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}
