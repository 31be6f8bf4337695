package docstore

import (
	"fmt"
	"strings"
)

// Join builds a slash separated path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath returns the parent collection and id of a document path.
// Document paths have an even number of segments.
func SplitPath(path string) (collection string, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

// ValidCollection reports whether path names a collection (odd number of
// non-empty segments).
func ValidCollection(path string) bool {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

// IsDescendant reports whether path lives below the document at parent.
func IsDescendant(path, parent string) bool {
	return strings.HasPrefix(path, parent+"/")
}
