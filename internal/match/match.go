package match

import (
	"os"
	"path/filepath"
	"strings"

	"asset-browser/internal/assettypes"
	"asset-browser/internal/logging"
)

// stem returns the lowercased file name without its extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// bestMatch picks the highest-priority image among candidate sibling names
// that share the model's stem. Returns "" when nothing matches.
func bestMatch(modelStem string, siblings []string) string {
	best := ""
	bestRank := len(assettypes.MatchPriority)

	for _, name := range siblings {
		ext := strings.ToLower(filepath.Ext(name))
		rank := assettypes.MatchRank(ext)
		if rank >= bestRank {
			continue
		}
		if stem(name) != modelStem {
			continue
		}
		best = name
		bestRank = rank
		if bestRank == 0 {
			break
		}
	}
	return best
}

// FindMatchingImage looks for a preview image next to modelPath: a sibling
// whose stem equals the model's stem (case-insensitive), preferring
// extensions in assettypes.MatchPriority order. A directory listing
// failure is treated as no match, not an error.
func FindMatchingImage(modelPath string) (string, bool) {
	dir := filepath.Dir(modelPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debug("Could not list %s while matching: %v", dir, err)
		return "", false
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	if name := bestMatch(stem(modelPath), names); name != "" {
		return filepath.Join(dir, name), true
	}
	return "", false
}

// Index caches directory listings for batch resolution. Not safe for
// concurrent use; each scan run builds its own.
type Index struct {
	listings map[string][]string
}

// NewIndex returns an empty listing cache.
func NewIndex() *Index {
	return &Index{listings: make(map[string][]string)}
}

// FindMatchingImage resolves like the package-level function but reads
// each directory at most once per Index lifetime.
func (ix *Index) FindMatchingImage(modelPath string) (string, bool) {
	dir := filepath.Dir(modelPath)

	names, ok := ix.listings[dir]
	if !ok {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Debug("Could not list %s while matching: %v", dir, err)
			// Cache the failure too; the directory won't get better
			// mid-scan.
			ix.listings[dir] = nil
			return "", false
		}
		names = make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			names = append(names, entry.Name())
		}
		ix.listings[dir] = names
	}

	if name := bestMatch(stem(modelPath), names); name != "" {
		return filepath.Join(dir, name), true
	}
	return "", false
}

// Directories returns how many directory listings the index holds.
func (ix *Index) Directories() int {
	return len(ix.listings)
}
