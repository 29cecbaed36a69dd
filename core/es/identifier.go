package es

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// IdentifierSeparator joins path segments and id in the textual form of an Identifier.
const IdentifierSeparator = "/"

// Identifier addresses exactly one cached value. It consists of an ordered
// list of path segments and a leaf id.
//
// Identifier is comparable and can be used as a map key directly. The path is
// stored in its joined form to keep the type comparable; use Path to obtain
// the segments.
type Identifier struct {
	path string
	id   string
	// set when a segment contains the separator; such an identifier equals
	// no identifier built from plain segments and fails Validate
	ambiguous bool
}

// NewIdentifier creates an identifier from a leaf id and its path segments.
// Segments must not contain IdentifierSeparator, see Validate.
func NewIdentifier(id string, path ...string) Identifier {
	return Identifier{
		path:      strings.Join(path, IdentifierSeparator),
		id:        id,
		ambiguous: strings.Contains(id, IdentifierSeparator) || slices.ContainsFunc(path, containsSeparator),
	}
}

func containsSeparator(s string) bool { return strings.Contains(s, IdentifierSeparator) }

// IdentifierFrom is like NewIdentifier but trims separators from both ends
// of every segment and drops empty ones. Identifiers built from URL segments
// go through here.
func IdentifierFrom(id string, path ...string) Identifier {
	segs := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.Trim(p, IdentifierSeparator)
		if p == "" {
			continue
		}
		segs = append(segs, p)
	}
	return NewIdentifier(strings.Trim(id, IdentifierSeparator), segs...)
}

// ParseIdentifier parses the textual form {path...}/{id}.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.Trim(s, IdentifierSeparator)
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty identifier", ErrInvalidArgument)
	}
	segs := strings.Split(s, IdentifierSeparator)
	for _, seg := range segs {
		if seg == "" {
			return Identifier{}, fmt.Errorf("%w: empty segment in identifier %q", ErrInvalidArgument, s)
		}
	}
	return NewIdentifier(segs[len(segs)-1], segs[:len(segs)-1]...), nil
}

func (i Identifier) ID() string { return i.id }

// Validate fails with ErrInvalidArgument when a segment of the identifier
// contains IdentifierSeparator.
func (i Identifier) Validate() error {
	if i.ambiguous {
		return fmt.Errorf("%w: segment of %q contains %q", ErrInvalidArgument, i.String(), IdentifierSeparator)
	}
	return nil
}

// Path returns a copy of the path segments.
func (i Identifier) Path() []string {
	if i.path == "" {
		return nil
	}
	return strings.Split(i.path, IdentifierSeparator)
}

// PathLen returns the number of path segments.
func (i Identifier) PathLen() int {
	if i.path == "" {
		return 0
	}
	return strings.Count(i.path, IdentifierSeparator) + 1
}

// First returns the first path segment or "" for an identifier without path.
func (i Identifier) First() string {
	first, _, _ := strings.Cut(i.path, IdentifierSeparator)
	return first
}

// Segments returns path and id as one slice.
func (i Identifier) Segments() []string { return append(i.Path(), i.id) }

func (i Identifier) IsZero() bool { return i.path == "" && i.id == "" }

// HasPath reports whether the identifier's path equals the given segments.
func (i Identifier) HasPath(path ...string) bool {
	return slices.Equal(i.Path(), path)
}

// HasPrefix reports whether the identifier's path starts with the given segments.
func (i Identifier) HasPrefix(path ...string) bool {
	p := i.Path()
	return len(p) >= len(path) && slices.Equal(p[:len(path)], path)
}

// WithID returns an identifier with the same path and a different id.
func (i Identifier) WithID(id string) Identifier {
	return Identifier{path: i.path, id: id, ambiguous: i.ambiguous || containsSeparator(id)}
}

func (i Identifier) String() string {
	if i.path == "" {
		return i.id
	}
	return i.path + IdentifierSeparator + i.id
}

func (i Identifier) SlogAttr() slog.Attr { return slog.String("identifier", i.String()) }

// Compare orders identifiers by path, segment by segment, then by id.
// A path that is a prefix of another sorts first.
func (i Identifier) Compare(o Identifier) int {
	if c := slices.Compare(i.Path(), o.Path()); c != 0 {
		return c
	}
	return strings.Compare(i.id, o.id)
}

func (i Identifier) Less(o Identifier) bool { return i.Compare(o) < 0 }

func (i Identifier) MarshalText() ([]byte, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return []byte(i.String()), nil
}

func (i *Identifier) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentifier(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
