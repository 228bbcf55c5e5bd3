package search

import (
	"sort"

	"github.com/genomicsearch/genomicsearch/internal/match"
	"github.com/genomicsearch/genomicsearch/pkg/types"
)

// attachAssociations groups candidate files onto the selected primary
// results: files sharing an association key (same base name after
// stripping type and compression suffixes, paired-end markers folded
// together) become the primary's associated files. Associated files
// carry no score of their own; they inherit visibility from the
// primary.
func attachAssociations(primaries []types.GenomicsFileResult, pool []types.GenomicsFile) []types.GenomicsFileResult {
	if len(primaries) == 0 || len(pool) == 0 {
		return primaries
	}

	groups := make(map[string][]types.GenomicsFile)
	for _, f := range pool {
		key := match.AssociationKey(f.Path)
		groups[key] = append(groups[key], f)
	}

	for i := range primaries {
		key := match.AssociationKey(primaries[i].PrimaryFile.Path)
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		associated := make([]types.GenomicsFile, 0, len(group)-1)
		for _, f := range group {
			if f.Path == primaries[i].PrimaryFile.Path {
				continue
			}
			associated = append(associated, f)
		}
		sort.Slice(associated, func(a, b int) bool {
			return associated[a].Path < associated[b].Path
		})
		primaries[i].AssociatedFiles = associated
	}
	return primaries
}
