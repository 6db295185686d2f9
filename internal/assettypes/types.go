package assettypes

import (
	"path/filepath"
	"strings"
)

// ModelExtensions maps file extensions to whether they are recognized 3D model formats.
var ModelExtensions = map[string]bool{
	".fbx":   true,
	".obj":   true,
	".max":   true,
	".abc":   true,
	".blend": true,
	".gltf":  true,
	".glb":   true,
}

// ImageExtensions maps file extensions to whether they can serve as a
// thumbnail source for a same-stem model file.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tga":  true,
	".bmp":  true,
}

// MatchPriority is the preference order used when several same-stem sibling
// images exist. Lower index wins.
var MatchPriority = []string{".png", ".jpg", ".jpeg", ".tga", ".bmp"}

// HiddenFolders maps directory names (lowercased) that scans never descend
// into: version control, editor state, build artifacts, OS litter.
var HiddenFolders = map[string]bool{
	".git":         true,
	".svn":         true,
	".vscode":      true,
	".idea":        true,
	"__pycache__":  true,
	"node_modules": true,
	"temp":         true,
	"tmp":          true,
	"cache":        true,
	"backup":       true,
	"$recycle.bin": true,
	"system volume information": true,
}

// IsModelFile reports whether path has a recognized model extension.
func IsModelFile(path string) bool {
	return ModelExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsImageFile reports whether path has a matchable image extension.
func IsImageFile(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// MatchRank returns the priority rank of an image extension (0 is best).
// Returns len(MatchPriority) for extensions outside the priority list so
// that known extensions always sort ahead of unknown ones.
func MatchRank(ext string) int {
	ext = strings.ToLower(ext)
	for i, e := range MatchPriority {
		if e == ext {
			return i
		}
	}
	return len(MatchPriority)
}

// ShouldSkipDir reports whether a directory with the given name should be
// skipped during a scan. Matching is case-insensitive; names starting with
// "." or "__" are always skipped.
func ShouldSkipDir(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__") {
		return true
	}
	return HiddenFolders[strings.ToLower(name)]
}
