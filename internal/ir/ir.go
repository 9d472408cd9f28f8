// Package ir is the format-neutral representation shared by all format
// adapters. A source adapter fills a Set with bundles, a target adapter
// drains it; neither knows about the other's on-disk layout.
package ir

import "fmt"

// Type is the value type carried by a bundle.
type Type string

const (
	String Type = "string"
	Real   Type = "real"
	Int    Type = "int"
	Vector Type = "vector" // three reals
	Frame  Type = "frame"  // 2-D int32 image
)

func (t Type) Valid() bool {
	switch t {
	case String, Real, Int, Vector, Frame:
		return true
	}
	return false
}

// Image is one detector frame, row-major. Bundles of type Frame hold Images.
type Image struct {
	Rows int
	Cols int
	Data []int32
}

func (f Image) Validate() error {
	if f.Rows < 0 || f.Cols < 0 {
		return fmt.Errorf("image: negative shape %dx%d", f.Rows, f.Cols)
	}
	if len(f.Data) != f.Rows*f.Cols {
		return fmt.Errorf("image: %d values for shape %dx%d", len(f.Data), f.Rows, f.Cols)
	}
	return nil
}

// Bundle is a named column of values. Only the slice matching Type is used.
type Bundle struct {
	Name string
	Type Type

	Strings []string
	Reals   []float64
	Ints    []int64
	Vectors [][3]float64
	Frames  []Image
}

func (b *Bundle) Len() int {
	switch b.Type {
	case String:
		return len(b.Strings)
	case Real:
		return len(b.Reals)
	case Int:
		return len(b.Ints)
	case Vector:
		return len(b.Vectors)
	case Frame:
		return len(b.Frames)
	}
	return 0
}

// Set is an ordered collection of bundles keyed by name.
type Set struct {
	order   []string
	bundles map[string]*Bundle
}

func NewSet() *Set { return &Set{bundles: map[string]*Bundle{}} }

// Add stores b. A bundle with the same name is replaced in place.
func (s *Set) Add(b *Bundle) {
	if _, ok := s.bundles[b.Name]; !ok {
		s.order = append(s.order, b.Name)
	}
	s.bundles[b.Name] = b
}

func (s *Set) Get(name string) (*Bundle, bool) {
	b, ok := s.bundles[name]
	return b, ok
}

func (s *Set) Names() []string { return append([]string(nil), s.order...) }

func (s *Set) Len() int { return len(s.order) }
