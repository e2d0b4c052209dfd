package search

// DefaultMaxPerFile is the default number of results kept per file.
const DefaultMaxPerFile = 2

// CapPerFile keeps at most maxPerFile results per originating file and
// drops the rest, preserving the order of the survivors. Results without a
// file (persona documents) are never capped. maxPerFile <= 0 disables the
// cap.
func CapPerFile(results []*FusedResult, maxPerFile int) []*FusedResult {
	if maxPerFile <= 0 {
		return results
	}

	counts := make(map[string]int)
	out := make([]*FusedResult, 0, len(results))
	for _, r := range results {
		path := r.FilePath()
		if path == "" {
			out = append(out, r)
			continue
		}
		if counts[path] >= maxPerFile {
			continue
		}
		counts[path]++
		out = append(out, r)
	}
	return out
}
