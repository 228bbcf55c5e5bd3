// Package match implements the pure relevance scoring used by the
// search orchestrator: exact, substring, and fuzzy text matching over
// file paths and tags, plus filename decomposition. No I/O.
package match

import (
	"fmt"
	"sort"
	"strings"
)

// Scoring constants. Substring matches can never reach the exact-match
// ceiling, fuzzy matches can never reach the substring ceiling, and tag
// matches are penalized so an equivalent path match always outranks
// them.
const (
	substringFloor = 0.4
	substringCap   = 0.8
	fuzzyThreshold = 0.6
	fuzzyCap       = 0.6
	tagPenalty     = 0.9
	multiTermBonus = 0.05
)

// ExactMatchScore returns 1.0 when text equals pattern case-folded,
// else 0.0.
func ExactMatchScore(text, pattern string) float64 {
	if text == "" || pattern == "" {
		return 0.0
	}
	if strings.EqualFold(text, pattern) {
		return 1.0
	}
	return 0.0
}

// SubstringMatchScore returns 0.0 when pattern is absent from text;
// otherwise a coverage-based score in (substringFloor, substringCap],
// rising as the pattern covers more of the text.
func SubstringMatchScore(text, pattern string) float64 {
	if text == "" || pattern == "" {
		return 0.0
	}
	t := strings.ToLower(text)
	p := strings.ToLower(pattern)
	if !strings.Contains(t, p) {
		return 0.0
	}
	coverage := float64(len(p)) / float64(len(t))
	return substringFloor + (substringCap-substringFloor)*coverage
}

// FuzzyMatchScore returns a similarity-based score in (0, fuzzyCap]
// for strings whose normalized edit-distance similarity meets the
// threshold, and exactly 0.0 below it.
func FuzzyMatchScore(text, pattern string) float64 {
	if text == "" || pattern == "" {
		return 0.0
	}
	sim := similarity(strings.ToLower(text), strings.ToLower(pattern))
	if sim < fuzzyThreshold {
		return 0.0
	}
	return sim * fuzzyCap
}

// similarity is a Levenshtein ratio in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	dist := levenshtein(a, b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// scorePattern returns the best single-technique score for one pattern
// against one text, with a reason describing how it matched.
func scorePattern(text, pattern string) (float64, string) {
	if s := ExactMatchScore(text, pattern); s > 0 {
		return s, fmt.Sprintf("exact match on %q", pattern)
	}
	if s := SubstringMatchScore(text, pattern); s > 0 {
		return s, fmt.Sprintf("contains %q", pattern)
	}
	if s := FuzzyMatchScore(text, pattern); s > 0 {
		return s, fmt.Sprintf("similar to %q", pattern)
	}
	return 0.0, ""
}

// CalculateMatchScore scores text against multiple patterns: the best
// single-pattern score is the base, with a bonus per additional
// matching pattern, capped at 1.0. Blank patterns are ignored; empty
// text or an effectively empty pattern list yields 0.0 and no reasons.
func CalculateMatchScore(text string, patterns []string) (float64, []string) {
	if text == "" {
		return 0.0, nil
	}

	best := 0.0
	matched := 0
	var reasons []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		s, reason := scorePattern(text, p)
		if s <= 0 {
			continue
		}
		matched++
		reasons = append(reasons, reason)
		if s > best {
			best = s
		}
	}
	if matched == 0 {
		return 0.0, nil
	}

	score := best + multiTermBonus*float64(matched-1)
	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// MatchFilePath scores a path against the patterns, trying the full
// path, the filename, and the base name in that priority order and
// taking the best result across the three representations.
func MatchFilePath(path string, patterns []string) (float64, []string) {
	c := ExtractFilenameComponents(path)

	representations := []struct {
		label string
		text  string
	}{
		{"path", c.FullPath},
		{"filename", c.Filename},
		{"base name", c.BaseName},
	}

	best := 0.0
	var bestReasons []string
	for _, rep := range representations {
		score, reasons := CalculateMatchScore(rep.text, patterns)
		if score > best {
			best = score
			bestReasons = label(rep.label, reasons)
		}
	}
	return best, bestReasons
}

// MatchTags scores a tag map against the patterns, matching tag
// values, tag keys, and combined "key:value" strings. Structurally the
// same as path matching but with a fixed penalty so an equivalent tag
// match never outranks an equivalent path match.
func MatchTags(tags map[string]string, patterns []string) (float64, []string) {
	if len(tags) == 0 {
		return 0.0, nil
	}

	// Deterministic iteration so repeated scoring yields identical
	// reasons.
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := 0.0
	var bestReasons []string
	for _, k := range keys {
		v := tags[k]
		for _, text := range []string{v, k, k + ":" + v} {
			score, reasons := CalculateMatchScore(text, patterns)
			if score > best {
				best = score
				bestReasons = label(fmt.Sprintf("tag %s", k), reasons)
			}
		}
	}
	return best * tagPenalty, bestReasons
}

func label(prefix string, reasons []string) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = prefix + " " + r
	}
	return out
}
