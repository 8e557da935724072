package coldstore

import "testing"

func TestParseVirtualPath_Standard(t *testing.T) {
	v, err := ParseVirtualPath("aagt://trading/strategies/sol.md")
	if err != nil {
		t.Fatalf("ParseVirtualPath: %v", err)
	}
	if v.Collection != "trading" || v.Path != "strategies/sol.md" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVirtualPath_MissingPrefix(t *testing.T) {
	v, err := ParseVirtualPath("//trading/strategies/sol.md")
	if err != nil {
		t.Fatalf("ParseVirtualPath: %v", err)
	}
	if v.Collection != "trading" || v.Path != "strategies/sol.md" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVirtualPath_ExtraSlashes(t *testing.T) {
	v, err := ParseVirtualPath("aagt:////trading/strategies/sol.md")
	if err != nil {
		t.Fatalf("ParseVirtualPath: %v", err)
	}
	if v.Collection != "trading" || v.Path != "strategies/sol.md" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVirtualPath_CollectionOnly(t *testing.T) {
	v, err := ParseVirtualPath("aagt://trading")
	if err != nil {
		t.Fatalf("ParseVirtualPath: %v", err)
	}
	if v.Collection != "trading" || v.Path != "" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVirtualPath_Invalid(t *testing.T) {
	for _, input := range []string{"trading/sol.md", "/absolute/path.md", "aagt://"} {
		if _, err := ParseVirtualPath(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

// TestParseVirtualPath_RejectsTraversal covers the dedicated traversal
// invariant: any "." or ".." path segment is rejected outright.
func TestParseVirtualPath_RejectsTraversal(t *testing.T) {
	rejected := []string{
		"aagt://../etc/passwd",
		"aagt://collection/../secret.txt",
		"aagt://collection/subdir/../secret.txt",
		"aagt://collection/./secret.txt",
	}
	for _, input := range rejected {
		if _, err := ParseVirtualPath(input); err == nil {
			t.Fatalf("expected traversal rejection for %q", input)
		}
	}

	if _, err := ParseVirtualPath("aagt://collection/file.md"); err != nil {
		t.Fatalf("expected normal path to parse, got %v", err)
	}
}

func TestBuildVirtualPath(t *testing.T) {
	if got := BuildVirtualPath("trading", "strategies/sol.md"); got != "aagt://trading/strategies/sol.md" {
		t.Fatalf("got %q", got)
	}
	if got := BuildVirtualPath("trading", ""); got != "aagt://trading" {
		t.Fatalf("got %q", got)
	}
}

func TestIsVirtualPath(t *testing.T) {
	cases := map[string]bool{
		"aagt://trading/sol.md": true,
		"//trading/sol.md":      true,
		"trading/sol.md":        false,
		"/absolute/path.md":     false,
	}
	for input, want := range cases {
		if got := IsVirtualPath(input); got != want {
			t.Fatalf("IsVirtualPath(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestVirtualPath_DisplayPath(t *testing.T) {
	v := VirtualPath{Collection: "trading", Path: "strategies/sol.md"}
	if got := v.DisplayPath(); got != "trading/strategies/sol.md" {
		t.Fatalf("got %q", got)
	}

	root := VirtualPath{Collection: "trading"}
	if got := root.DisplayPath(); got != "trading" {
		t.Fatalf("got %q", got)
	}
}
