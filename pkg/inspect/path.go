// Package inspect provides observer tree inspection and property utilities.
//
// The inspect package offers a unified interface for:
//   - Parsing path expressions (e.g., "projects/#2/notes@color")
//   - Resolving policy, access mode and kind names
//   - Reading and writing per-context properties
//   - Formatting observer trees for display
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath     = errors.New("empty path")
	ErrInvalidPath   = errors.New("invalid path format")
	ErrInvalidNumber = errors.New("invalid numeric value in path")
)

// Segment is one step of a path: a subject addressed by display name or by
// its subject ID within the current observer.
type Segment struct {
	// Name is the display name (empty when ByID is set).
	Name string

	// ID is the subject ID (when ByID is true).
	ID int

	// ByID indicates the segment was written as "#id".
	ByID bool
}

// String returns the segment as written.
func (s Segment) String() string {
	if s.ByID {
		return "#" + strconv.Itoa(s.ID)
	}
	return s.Name
}

// Path represents a parsed inspection path.
// Format: [segment/...]segment[@property], or "." for the root observer.
type Path struct {
	// Segments lead from the root observer to the addressed subject. Every
	// segment except the last must expose a child observer.
	Segments []Segment

	// Property is the property name after "@" (empty if none).
	Property string

	// Raw stores the original input string.
	Raw string
}

// IsRoot returns true if the path addresses the root observer itself.
func (p *Path) IsRoot() bool { return len(p.Segments) == 0 }

// ParsePath parses a path string into a Path struct.
//
// Supported formats:
//   - "." - the root observer
//   - "docs/notes" - subject "notes" inside the child observer of "docs"
//   - "docs/#3" - subject ID 3 inside the child observer of "docs"
//   - "docs/notes@color" - property "color" of "notes" in the docs context
//
// Subject IDs can be decimal or hex (0x prefix).
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}

	p := &Path{Raw: input}

	if i := strings.LastIndex(input, "@"); i >= 0 {
		p.Property = input[i+1:]
		input = input[:i]
		if p.Property == "" || strings.Contains(p.Property, "/") {
			return nil, fmt.Errorf("%w: property name", ErrInvalidPath)
		}
	}

	if input == "." {
		if p.Property != "" {
			return nil, fmt.Errorf("%w: the root observer has no context properties", ErrInvalidPath)
		}
		return p, nil
	}

	// Check for invalid patterns
	if input == "" || strings.HasPrefix(input, "/") || strings.HasSuffix(input, "/") || strings.Contains(input, "//") {
		return nil, ErrInvalidPath
	}

	for _, part := range strings.Split(input, "/") {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		p.Segments = append(p.Segments, seg)
	}
	return p, nil
}

func parseSegment(s string) (Segment, error) {
	if !strings.HasPrefix(s, "#") {
		return Segment{Name: s}, nil
	}
	id, err := parseID(s[1:])
	if err != nil {
		return Segment{}, fmt.Errorf("subject ID %q: %w", s, err)
	}
	return Segment{ID: id, ByID: true}, nil
}

func parseID(s string) (int, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 31)
	if err != nil || v == 0 {
		return 0, ErrInvalidNumber
	}
	return int(v), nil
}

// Parent returns the path without its last segment and property.
func (p *Path) Parent() *Path {
	if p.IsRoot() {
		return &Path{Raw: "."}
	}
	parent := &Path{Segments: append([]Segment(nil), p.Segments[:len(p.Segments)-1]...)}
	parent.Raw = parent.String()
	return parent
}

// String returns the path as a string.
func (p *Path) String() string {
	if p.IsRoot() {
		return "."
	}
	var sb strings.Builder
	for i, s := range p.Segments {
		if i > 0 {
			sb.WriteString("/")
		}
		sb.WriteString(s.String())
	}
	if p.Property != "" {
		sb.WriteString("@")
		sb.WriteString(p.Property)
	}
	return sb.String()
}
