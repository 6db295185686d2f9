package assettypes

import "testing"

// TestIsModelFile tests model extension recognition.
func TestIsModelFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"/assets/hero.fbx", true},
		{"/assets/hero.FBX", true},
		{"/assets/scene.blend", true},
		{"/assets/mesh.obj", true},
		{"/assets/rig.max", true},
		{"/assets/anim.abc", true},
		{"/assets/model.gltf", true},
		{"/assets/model.glb", true},
		{"/assets/hero.png", false},
		{"/assets/readme.txt", false},
		{"/assets/noext", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsModelFile(tt.path); got != tt.want {
			t.Errorf("IsModelFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// TestMatchRank tests the sibling image priority ordering.
func TestMatchRank(t *testing.T) {
	t.Parallel()

	if MatchRank(".png") >= MatchRank(".jpg") {
		t.Error("png should outrank jpg")
	}
	if MatchRank(".jpg") >= MatchRank(".jpeg") {
		t.Error("jpg should outrank jpeg")
	}
	if MatchRank(".jpeg") >= MatchRank(".tga") {
		t.Error("jpeg should outrank tga")
	}
	if MatchRank(".tga") >= MatchRank(".bmp") {
		t.Error("tga should outrank bmp")
	}
	if MatchRank(".PNG") != MatchRank(".png") {
		t.Error("rank should be case-insensitive")
	}
	if MatchRank(".gif") != len(MatchPriority) {
		t.Errorf("unknown extension rank = %d, want %d", MatchRank(".gif"), len(MatchPriority))
	}
}

// TestShouldSkipDir tests hidden/system folder filtering.
func TestShouldSkipDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{".git", true},
		{".hidden", true},
		{"__pycache__", true},
		{"__anything", true},
		{"node_modules", true},
		{"NODE_MODULES", true},
		{"Temp", true},
		{"Backup", true},
		{"$Recycle.Bin", true},
		{"characters", false},
		{"props", false},
		{"env_city", false},
		{"_drafts", false},
	}

	for _, tt := range tests {
		if got := ShouldSkipDir(tt.name); got != tt.want {
			t.Errorf("ShouldSkipDir(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
