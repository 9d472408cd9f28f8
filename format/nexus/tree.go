package nexus

import (
	"fmt"
	"math"
	"path"
	"strings"
)

// DataType is a NAPI type name.
type DataType string

const (
	Char    DataType = "NX_CHAR"
	Float64 DataType = "NX_FLOAT64"
	Int64   DataType = "NX_INT64"
	Int32   DataType = "NX_INT32"
)

// Values is a typed n-dimensional array. Shape nil means a scalar.
type Values struct {
	Type    DataType
	Shape   []int
	Strings []string
	Floats  []float64
	Ints    []int64
	Int32s  []int32
}

func (v Values) Len() int {
	switch v.Type {
	case Char:
		return len(v.Strings)
	case Float64:
		return len(v.Floats)
	case Int64:
		return len(v.Ints)
	case Int32:
		return len(v.Int32s)
	}
	return 0
}

// Check verifies that the element count matches the shape.
func (v Values) Check() error {
	want := 1
	for _, d := range v.Shape {
		want *= d
	}
	if v.Len() != want {
		return fmt.Errorf("%s%v holds %d values, want %d", v.Type, v.Shape, v.Len(), want)
	}
	return nil
}

// AsFloats widens any numeric type to float64.
func (v Values) AsFloats() ([]float64, error) {
	switch v.Type {
	case Float64:
		return v.Floats, nil
	case Int64:
		out := make([]float64, len(v.Ints))
		for i, n := range v.Ints {
			out[i] = float64(n)
		}
		return out, nil
	case Int32:
		out := make([]float64, len(v.Int32s))
		for i, n := range v.Int32s {
			out[i] = float64(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not numeric", v.Type)
}

// AsInts converts integer types, and floats holding whole numbers.
func (v Values) AsInts() ([]int64, error) {
	switch v.Type {
	case Int64:
		return v.Ints, nil
	case Int32:
		out := make([]int64, len(v.Int32s))
		for i, n := range v.Int32s {
			out[i] = int64(n)
		}
		return out, nil
	case Float64:
		out := make([]int64, len(v.Floats))
		for i, f := range v.Floats {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%v is not a whole number", f)
			}
			out[i] = int64(f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not numeric", v.Type)
}

type Attr struct {
	Name string
	Values
}

type attrs []*Attr

func (as attrs) get(name string) (*Attr, bool) {
	for _, a := range as {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (as *attrs) set(name string, v Values) {
	if a, ok := as.get(name); ok {
		a.Values = v
		return
	}
	*as = append(*as, &Attr{Name: name, Values: v})
}

// Node is a *Group or a *Dataset.
type Node interface {
	NodeName() string
	Attr(name string) (*Attr, bool)
	SetAttr(name string, v Values)
}

type Dataset struct {
	Name string
	Values
	Attrs attrs
}

func (d *Dataset) NodeName() string               { return d.Name }
func (d *Dataset) Attr(name string) (*Attr, bool) { return d.Attrs.get(name) }
func (d *Dataset) SetAttr(name string, v Values)  { d.Attrs.set(name, v) }

type Group struct {
	Name     string
	Class    string
	Attrs    attrs
	Children []Node
}

func (g *Group) NodeName() string               { return g.Name }
func (g *Group) Attr(name string) (*Attr, bool) { return g.Attrs.get(name) }
func (g *Group) SetAttr(name string, v Values)  { g.Attrs.set(name, v) }

// Child returns the direct child called name.
func (g *Group) Child(name string) (Node, bool) { return g.child(name) }

// AddDataset stores d, replacing a child of the same name.
func (g *Group) AddDataset(d *Dataset) { g.replace(d) }

// AddGroup returns the child group name, creating it with class if needed.
func (g *Group) AddGroup(name, class string) *Group { return g.ensure(name, class) }

func NewRoot() *Group { return &Group{Class: "NXroot"} }

func (g *Group) child(name string) (Node, bool) {
	for _, c := range g.Children {
		if c.NodeName() == name {
			return c, true
		}
	}
	return nil, false
}

func (g *Group) replace(n Node) {
	for i, c := range g.Children {
		if c.NodeName() == n.NodeName() {
			g.Children[i] = n
			return
		}
	}
	g.Children = append(g.Children, n)
}

func (g *Group) ensure(name, class string) *Group {
	if c, ok := g.child(name); ok {
		if sub, ok := c.(*Group); ok {
			return sub
		}
	}
	sub := &Group{Name: name, Class: class}
	g.replace(sub)
	return sub
}

// Datasets returns the direct dataset children in order.
func (g *Group) Datasets() []*Dataset {
	var out []*Dataset
	for _, c := range g.Children {
		if d, ok := c.(*Dataset); ok {
			out = append(out, d)
		}
	}
	return out
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Lookup resolves an absolute path below g.
func (g *Group) Lookup(p string) (Node, bool) {
	var cur Node = g
	for _, part := range splitPath(p) {
		grp, ok := cur.(*Group)
		if !ok {
			return nil, false
		}
		if cur, ok = grp.child(part); !ok {
			return nil, false
		}
	}
	return cur, true
}

// MkdirAll creates every missing group on p, asking classOf for the
// NX_class of each new group.
func (g *Group) MkdirAll(p string, classOf func(string) string) (*Group, error) {
	cur := g
	prefix := ""
	for _, part := range splitPath(p) {
		prefix += "/" + part
		if c, ok := cur.child(part); ok {
			sub, isGroup := c.(*Group)
			if !isGroup {
				return nil, fmt.Errorf("nexus: %s is a dataset, not a group", prefix)
			}
			cur = sub
			continue
		}
		cur = cur.ensure(part, classOf(prefix))
	}
	return cur, nil
}
