package search

import "sort"

// mergeHybrid combines the semantic and structured result sets by file path.
//
// Semantic scores are scaled by semanticWeight; every structured match adds
// the flat structuredBonus. A file present in both legs sums the two, which
// ranks it above either leg alone.
func mergeHybrid(semantic, structured []Result) []Result {
	byPath := make(map[string]*Result, len(semantic)+len(structured))
	order := make([]string, 0, len(semantic)+len(structured))

	for i := range semantic {
		r := semantic[i]
		r.Score = r.Score * semanticWeight
		byPath[r.Path] = &r
		order = append(order, r.Path)
	}
	for i := range structured {
		r := structured[i]
		if existing, ok := byPath[r.Path]; ok {
			existing.Score += structuredBonus
			continue
		}
		r.Score = structuredBonus
		byPath[r.Path] = &r
		order = append(order, r.Path)
	}

	merged := make([]Result, 0, len(order))
	for _, path := range order {
		merged = append(merged, *byPath[path])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}
