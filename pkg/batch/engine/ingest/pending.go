package ingest

import "sort"

// PendingFolders returns the candidates strictly greater than watermark, de-duplicated and in
// ascending lexicographic order. An empty watermark sorts before every folder name.
func PendingFolders(candidates []string, watermark string) []string {
	seen := make(map[string]struct{}, len(candidates))
	pending := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c <= watermark {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		pending = append(pending, c)
	}
	sort.Strings(pending)
	return pending
}
