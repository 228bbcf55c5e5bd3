// Package rank sorts, paginates, and summarizes scored search results.
// Pure functions over in-memory slices; no I/O.
package rank

import (
	"log/slog"
	"sort"

	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// SortByRelevance is the default and fallback sort field.
const SortByRelevance = "relevance_score"

// DefaultPageSize is applied when pagination is asked for a
// non-positive page size.
const DefaultPageSize = 100

// RankResults returns the results in stable descending order of the
// given field. Unknown sort fields fall back to relevance score with a
// logged warning, never an error. The input slice is not modified.
func RankResults(results []types.GenomicsFileResult, sortBy string) []types.GenomicsFileResult {
	out := make([]types.GenomicsFileResult, len(results))
	copy(out, results)

	less := lessFunc(sortBy)
	if less == nil {
		slog.Warn("unknown sort field, falling back to relevance score", "sort_by", sortBy)
		less = lessFunc(SortByRelevance)
	}
	sort.SliceStable(out, less(out))
	return out
}

func lessFunc(sortBy string) func([]types.GenomicsFileResult) func(i, j int) bool {
	switch sortBy {
	case SortByRelevance, "":
		return func(rs []types.GenomicsFileResult) func(i, j int) bool {
			return func(i, j int) bool { return rs[i].RelevanceScore > rs[j].RelevanceScore }
		}
	case "size_bytes":
		return func(rs []types.GenomicsFileResult) func(i, j int) bool {
			return func(i, j int) bool { return rs[i].PrimaryFile.SizeBytes > rs[j].PrimaryFile.SizeBytes }
		}
	case "last_modified":
		return func(rs []types.GenomicsFileResult) func(i, j int) bool {
			return func(i, j int) bool { return rs[i].PrimaryFile.LastModified.After(rs[j].PrimaryFile.LastModified) }
		}
	default:
		return nil
	}
}

// ApplyPagination slices a page out of ranked results. Negative
// offsets are clamped to zero, an offset past the end yields an empty
// page, and a non-positive maxResults is corrected to DefaultPageSize.
func ApplyPagination(results []types.GenomicsFileResult, maxResults, offset int) []types.GenomicsFileResult {
	if maxResults <= 0 {
		maxResults = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []types.GenomicsFileResult{}
	}
	end := offset + maxResults
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

// Statistics summarizes the score distribution of a result set.
type Statistics struct {
	Count      int     `json:"count"`
	MinScore   float64 `json:"min_score"`
	MaxScore   float64 `json:"max_score"`
	MeanScore  float64 `json:"mean_score"`
	ScoreRange float64 `json:"score_range"`
	// Distribution buckets scores as high/medium/low over thresholds
	// computed from the observed range. A zero range classifies every
	// result high.
	Distribution map[string]int `json:"distribution"`
}

// GetRankingStatistics computes summary statistics for a result set.
func GetRankingStatistics(results []types.GenomicsFileResult) Statistics {
	stats := Statistics{
		Distribution: map[string]int{"high": 0, "medium": 0, "low": 0},
	}
	if len(results) == 0 {
		return stats
	}

	stats.Count = len(results)
	stats.MinScore = results[0].RelevanceScore
	stats.MaxScore = results[0].RelevanceScore
	sum := 0.0
	for _, r := range results {
		s := r.RelevanceScore
		sum += s
		if s < stats.MinScore {
			stats.MinScore = s
		}
		if s > stats.MaxScore {
			stats.MaxScore = s
		}
	}
	stats.MeanScore = sum / float64(len(results))
	stats.ScoreRange = stats.MaxScore - stats.MinScore

	// Bucket thresholds split the observed range into thirds.
	highCut := stats.MinScore + stats.ScoreRange*2.0/3.0
	mediumCut := stats.MinScore + stats.ScoreRange/3.0
	for _, r := range results {
		switch {
		case stats.ScoreRange == 0 || r.RelevanceScore >= highCut:
			stats.Distribution["high"]++
		case r.RelevanceScore >= mediumCut:
			stats.Distribution["medium"]++
		default:
			stats.Distribution["low"]++
		}
	}
	return stats
}
