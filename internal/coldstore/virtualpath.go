package coldstore

import (
	"fmt"
	"strings"
)

// VirtualPathScheme is the URI-like scheme used to address documents
// independent of any on-disk layout: aagt://collection/path/to/file.md
const VirtualPathScheme = "aagt:"

// VirtualPath is a parsed aagt:// reference into the cold store: a
// collection name plus a path within it.
type VirtualPath struct {
	Collection string
	Path       string
}

// ParseVirtualPath parses the forms:
//   - "aagt://collection/path.md"
//   - "//collection/path.md" (missing scheme)
//   - "aagt:////collection/path.md" (extra slashes)
//
// and rejects any input whose path segments contain "." or ".." to
// close off traversal outside a collection's root.
func ParseVirtualPath(input string) (VirtualPath, error) {
	trimmed := strings.TrimSpace(input)

	var normalized string
	switch {
	case strings.HasPrefix(trimmed, VirtualPathScheme):
		normalized = "aagt://" + strings.TrimLeft(strings.TrimPrefix(trimmed, VirtualPathScheme), "/")
	case strings.HasPrefix(trimmed, "//"):
		normalized = "aagt://" + strings.TrimPrefix(trimmed, "//")
	default:
		normalized = trimmed
	}

	for _, part := range strings.Split(normalized, "/") {
		if part == "." || part == ".." {
			return VirtualPath{}, fmt.Errorf("coldstore: path traversal detected in virtual path: %s", input)
		}
	}

	rest, ok := strings.CutPrefix(normalized, "aagt://")
	if !ok {
		return VirtualPath{}, fmt.Errorf("coldstore: invalid virtual path format: %s", input)
	}

	collection, path, _ := strings.Cut(rest, "/")
	if collection == "" {
		return VirtualPath{}, fmt.Errorf("coldstore: empty collection name in virtual path: %s", input)
	}

	return VirtualPath{Collection: collection, Path: path}, nil
}

// BuildVirtualPath formats collection/path as an aagt:// reference.
func BuildVirtualPath(collection, path string) string {
	if path == "" {
		return "aagt://" + collection
	}
	return "aagt://" + collection + "/" + path
}

// IsVirtualPath reports whether s looks like an aagt:// reference
// rather than a plain filesystem-style path.
func IsVirtualPath(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, VirtualPathScheme) || strings.HasPrefix(trimmed, "//")
}

// String renders the virtual path back to its aagt:// form.
func (v VirtualPath) String() string {
	return BuildVirtualPath(v.Collection, v.Path)
}

// DisplayPath renders collection/path without the scheme, for
// human-facing output.
func (v VirtualPath) DisplayPath() string {
	if v.Path == "" {
		return v.Collection
	}
	return v.Collection + "/" + v.Path
}
