package valueobjects

import (
	"strings"

	pkgerrors "contentforge/pkg/errors"
)

// NodePath is a value object for a hierarchical, slug-normalized node path.
// Paths are case-folded, non-alphanumeric runs collapse to a single dash,
// segments are joined by "/", and there are no leading or trailing
// separators. Two inputs that normalize to the same slug address the same
// node regardless of how the caller spelled them.
type NodePath struct {
	value string
}

// NewNodePath normalizes the given raw path into a NodePath
func NewNodePath(raw string) (NodePath, error) {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return NodePath{}, pkgerrors.NewValidationError("path cannot be empty")
	}
	return NodePath{value: normalized}, nil
}

// String returns the normalized string representation of the path
func (p NodePath) String() string {
	return p.value
}

// Segments returns the individual path segments
func (p NodePath) Segments() []string {
	if p.value == "" {
		return nil
	}
	return strings.Split(p.value, "/")
}

// Parent returns the parent path and true, or the zero path and false when
// the path is a top-level segment.
func (p NodePath) Parent() (NodePath, bool) {
	idx := strings.LastIndex(p.value, "/")
	if idx < 0 {
		return NodePath{}, false
	}
	return NodePath{value: p.value[:idx]}, true
}

// Base returns the final path segment
func (p NodePath) Base() string {
	idx := strings.LastIndex(p.value, "/")
	if idx < 0 {
		return p.value
	}
	return p.value[idx+1:]
}

// Child returns the path extended by one slug-normalized segment
func (p NodePath) Child(segment string) (NodePath, error) {
	slug := slugify(segment)
	if slug == "" {
		return NodePath{}, pkgerrors.NewValidationError("path segment cannot be empty")
	}
	if p.value == "" {
		return NodePath{value: slug}, nil
	}
	return NodePath{value: p.value + "/" + slug}, nil
}

// Equals checks if two paths address the same node
func (p NodePath) Equals(other NodePath) bool {
	return p.value == other.value
}

// IsZero checks if the path is the zero value
func (p NodePath) IsZero() bool {
	return p.value == ""
}

// MarshalJSON implements json.Marshaler
func (p NodePath) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *NodePath) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return pkgerrors.NewValidationError("NodePath must be a string")
	}
	p.value = NormalizePath(string(data[1 : len(data)-1]))
	return nil
}

// NormalizePath slug-normalizes every segment of a raw path. Empty segments
// produced by doubled or surrounding separators are dropped.
func NormalizePath(raw string) string {
	segments := []string{}
	for _, segment := range strings.Split(raw, "/") {
		slug := slugify(segment)
		if slug != "" {
			segments = append(segments, slug)
		}
	}
	return strings.Join(segments, "/")
}

// slugify lowercases a segment and collapses every run of non-alphanumeric
// characters into a single dash.
func slugify(segment string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(segment) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		} else {
			pendingDash = true
		}
	}
	return b.String()
}
