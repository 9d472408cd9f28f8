// Package nexus maps bundles onto NeXus trees and persists them through a
// pluggable codec. It registers itself under the "nexus" tag.
//
// Endpoint options:
//
//	codec   xml (default) or hdf5 when built with -tags hdf5
package nexus

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"formattransformer/format"
	"formattransformer/internal/dictionary"
	"formattransformer/internal/ir"
	"formattransformer/internal/logging"
)

const Tag = "nexus"

type Adapter struct {
	opts  format.Options
	codec Codec
}

func init() { format.Register(Tag, func() format.Adapter { return &Adapter{} }) }

func (a *Adapter) Configure(o format.Options) error {
	if o.Dictionary == nil {
		return errors.New("nexus: no dictionary")
	}
	c, err := CodecFor(o.Param("codec", ""))
	if err != nil {
		return err
	}
	a.opts, a.codec = o, c
	return nil
}

/*──────── read ───────*/

func (a *Adapter) Read(ctx context.Context, p string, names []string) (*ir.Set, error) {
	root, err := a.codec.Load(a.opts.FS(), p)
	if err != nil {
		return nil, err
	}
	return a.FromTree(ctx, root, names)
}

// FromTree extracts the requested bundles from an in-memory tree.
func (a *Adapter) FromTree(ctx context.Context, root *Group, names []string) (*ir.Set, error) {
	set := ir.NewSet()
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := a.opts.Dictionary.Lookup(n)
		if err != nil {
			return nil, fmt.Errorf("nexus: %w", err)
		}
		if e.NeXus == nil {
			logging.L().Debug("nexus: bundle has no nexus location", "bundle", n)
			continue
		}
		b, ok, err := a.readBundle(root, e)
		if err != nil {
			return nil, fmt.Errorf("nexus: bundle %q: %w", n, err)
		}
		if ok {
			set.Add(b)
		}
	}
	return set, nil
}

func (a *Adapter) readBundle(root *Group, e dictionary.Entry) (*ir.Bundle, bool, error) {
	loc := e.NeXus
	switch loc.Form() {
	case dictionary.FormDataset:
		n, ok := root.Lookup(loc.Path)
		if !ok {
			return nil, false, nil
		}
		d, isDS := n.(*Dataset)
		if !isDS {
			return nil, false, fmt.Errorf("%s is a group", loc.Path)
		}
		b, err := bundleFromValues(e, d.Values)
		return b, err == nil, err

	case dictionary.FormAttribute:
		n, ok := root.Lookup(loc.Path)
		if !ok {
			return nil, false, nil
		}
		at, ok := n.Attr(loc.Attribute)
		if !ok {
			return nil, false, nil
		}
		b, err := bundleFromValues(e, at.Values)
		return b, err == nil, err

	case dictionary.FormMembers:
		g, ok := lookupGroup(root, loc.Group)
		if !ok {
			return nil, false, nil
		}
		members := g.Datasets()
		if len(members) == 0 {
			return nil, false, nil
		}
		if e.Type != ir.String {
			return nil, false, fmt.Errorf("members bundle must be of type string, is %s", e.Type)
		}
		b := &ir.Bundle{Name: e.Name, Type: ir.String}
		for _, m := range members {
			b.Strings = append(b.Strings, m.Name)
		}
		return b, true, nil

	case dictionary.FormKeyed:
		g, ok := lookupGroup(root, loc.Group)
		if !ok {
			return nil, false, nil
		}
		members := g.Datasets()
		b := &ir.Bundle{Name: e.Name, Type: e.Type}
		found := 0
		for _, m := range members {
			if _, ok := m.Attr(loc.Attribute); ok {
				found++
			}
		}
		if found == 0 {
			return nil, false, nil
		}
		if found != len(members) {
			return nil, false, fmt.Errorf("attribute %s present on %d of %d members of %s", loc.Attribute, found, len(members), loc.Group)
		}
		for _, m := range members {
			at, _ := m.Attr(loc.Attribute)
			one, err := bundleFromValues(e, asRow(e.Type, at.Values))
			if err != nil {
				return nil, false, fmt.Errorf("member %s: %w", m.Name, err)
			}
			appendBundle(b, one)
		}
		return b, true, nil
	}
	return nil, false, fmt.Errorf("invalid nexus location")
}

func lookupGroup(root *Group, p string) (*Group, bool) {
	n, ok := root.Lookup(p)
	if !ok {
		return nil, false
	}
	g, ok := n.(*Group)
	return g, ok
}

// asRow turns a per-member attribute into a one-row array.
func asRow(t ir.Type, v Values) Values {
	if t == ir.Vector {
		v.Shape = []int{1, 3}
	} else {
		v.Shape = []int{1}
	}
	return v
}

func appendBundle(dst, src *ir.Bundle) {
	dst.Strings = append(dst.Strings, src.Strings...)
	dst.Reals = append(dst.Reals, src.Reals...)
	dst.Ints = append(dst.Ints, src.Ints...)
	dst.Vectors = append(dst.Vectors, src.Vectors...)
	dst.Frames = append(dst.Frames, src.Frames...)
}

func bundleFromValues(e dictionary.Entry, v Values) (*ir.Bundle, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	b := &ir.Bundle{Name: e.Name, Type: e.Type}
	switch e.Type {
	case ir.String:
		if v.Type != Char {
			return nil, fmt.Errorf("want %s, found %s", Char, v.Type)
		}
		b.Strings = append([]string{}, v.Strings...)
	case ir.Real:
		f, err := v.AsFloats()
		if err != nil {
			return nil, err
		}
		b.Reals = append([]float64{}, f...)
	case ir.Int:
		n, err := v.AsInts()
		if err != nil {
			return nil, err
		}
		b.Ints = append([]int64{}, n...)
	case ir.Vector:
		f, err := v.AsFloats()
		if err != nil {
			return nil, err
		}
		if len(v.Shape) != 2 || v.Shape[1] != 3 {
			return nil, fmt.Errorf("vector data has shape %v, want [n,3]", v.Shape)
		}
		for i := 0; i+2 < len(f); i += 3 {
			b.Vectors = append(b.Vectors, [3]float64{f[i], f[i+1], f[i+2]})
		}
	case ir.Frame:
		if len(v.Shape) != 3 {
			return nil, fmt.Errorf("image stack has shape %v, want [n,rows,cols]", v.Shape)
		}
		n, err := v.AsInts()
		if err != nil {
			return nil, err
		}
		rows, cols := v.Shape[1], v.Shape[2]
		size := rows * cols
		for i := 0; i < v.Shape[0]; i++ {
			img := ir.Image{Rows: rows, Cols: cols, Data: make([]int32, size)}
			for j, x := range n[i*size : (i+1)*size] {
				img.Data[j] = int32(x)
			}
			b.Frames = append(b.Frames, img)
		}
	default:
		return nil, fmt.Errorf("unsupported type %q", e.Type)
	}
	return b, nil
}

/*──────── write ───────*/

func (a *Adapter) Write(ctx context.Context, p string, set *ir.Set) error {
	root, err := a.ToTree(ctx, set)
	if err != nil {
		return err
	}
	return a.codec.Save(a.opts.FS(), p, root)
}

// ToTree builds the NeXus tree for set. Keyed bundles are placed after
// every other bundle so that their member datasets already exist.
func (a *Adapter) ToTree(ctx context.Context, set *ir.Set) (*Group, error) {
	dict := a.opts.Dictionary
	root := NewRoot()
	if _, err := root.MkdirAll("/entry", dict.ClassOf); err != nil {
		return nil, err
	}

	var keyed []dictionary.Entry
	for _, name := range set.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := dict.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("nexus: %w", err)
		}
		if e.NeXus == nil {
			logging.L().Warn("nexus: bundle has no nexus location, skipped", "bundle", name)
			continue
		}
		if e.NeXus.Form() == dictionary.FormKeyed {
			keyed = append(keyed, e)
			continue
		}
		b, _ := set.Get(name)
		if err := a.place(root, e, b); err != nil {
			return nil, fmt.Errorf("nexus: bundle %q: %w", name, err)
		}
	}
	for _, e := range keyed {
		b, _ := set.Get(e.Name)
		key, ok := set.Get(e.NeXus.Key)
		if !ok {
			return nil, fmt.Errorf("nexus: bundle %q needs bundle %q to name its members", e.Name, e.NeXus.Key)
		}
		if err := a.placeKeyed(root, e, b, key); err != nil {
			return nil, fmt.Errorf("nexus: bundle %q: %w", e.Name, err)
		}
	}
	return root, nil
}

func (a *Adapter) place(root *Group, e dictionary.Entry, b *ir.Bundle) error {
	loc := e.NeXus
	switch loc.Form() {
	case dictionary.FormDataset:
		parent, err := root.MkdirAll(path.Dir(loc.Path), a.opts.Dictionary.ClassOf)
		if err != nil {
			return err
		}
		v, err := valuesFromBundle(e, b)
		if err != nil {
			return err
		}
		d := &Dataset{Name: path.Base(loc.Path), Values: v}
		if loc.Units != "" {
			d.SetAttr("units", charScalar(loc.Units))
		}
		for _, k := range sortedKeys(loc.Attrs) {
			d.SetAttr(k, charScalar(loc.Attrs[k]))
		}
		parent.AddDataset(d)

	case dictionary.FormAttribute:
		v, err := valuesFromBundle(e, b)
		if err != nil {
			return err
		}
		if v.Type == Int32 {
			return fmt.Errorf("images cannot be stored as attributes")
		}
		n, ok := root.Lookup(loc.Path)
		if !ok {
			if n, err = root.MkdirAll(loc.Path, a.opts.Dictionary.ClassOf); err != nil {
				return err
			}
		}
		n.SetAttr(loc.Attribute, v)

	case dictionary.FormMembers:
		if b.Type != ir.String {
			return fmt.Errorf("members bundle must be of type string, is %s", b.Type)
		}
		g, err := root.MkdirAll(loc.Group, a.opts.Dictionary.ClassOf)
		if err != nil {
			return err
		}
		if err := uniqueMembers(b.Strings); err != nil {
			return err
		}
		for _, name := range b.Strings {
			if name == "" {
				return fmt.Errorf("empty member name")
			}
			if _, exists := g.Child(name); exists {
				continue
			}
			g.AddDataset(&Dataset{Name: name, Values: Values{Type: Float64, Floats: []float64{0}}})
		}
	default:
		return fmt.Errorf("invalid nexus location")
	}
	return nil
}

func (a *Adapter) placeKeyed(root *Group, e dictionary.Entry, b, key *ir.Bundle) error {
	loc := e.NeXus
	if key.Len() != b.Len() {
		return fmt.Errorf("%d values for %d members", b.Len(), key.Len())
	}
	if err := uniqueMembers(key.Strings); err != nil {
		return err
	}
	g, ok := lookupGroup(root, loc.Group)
	if !ok {
		return fmt.Errorf("group %s was not created", loc.Group)
	}
	v, err := valuesFromBundle(e, b)
	if err != nil {
		return err
	}
	if v.Type == Int32 {
		return fmt.Errorf("images cannot be stored as attributes")
	}
	for i, name := range key.Strings {
		n, ok := g.Child(name)
		if !ok {
			return fmt.Errorf("member %s missing from %s", name, loc.Group)
		}
		n.SetAttr(loc.Attribute, rowOf(v, i))
	}
	return nil
}

// uniqueMembers rejects repeated names; each member is one dataset and
// carries one value per keyed attribute.
func uniqueMembers(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("member %q named twice", n)
		}
		seen[n] = true
	}
	return nil
}

// rowOf slices row i out of a [n] or [n,3] array.
func rowOf(v Values, i int) Values {
	out := Values{Type: v.Type}
	switch v.Type {
	case Char:
		out.Strings = []string{v.Strings[i]}
	case Int64:
		out.Ints = []int64{v.Ints[i]}
	case Float64:
		if len(v.Shape) == 2 {
			w := v.Shape[1]
			out.Floats = append([]float64{}, v.Floats[i*w:(i+1)*w]...)
			out.Shape = []int{w}
			return out
		}
		out.Floats = []float64{v.Floats[i]}
	}
	return out
}

func valuesFromBundle(e dictionary.Entry, b *ir.Bundle) (Values, error) {
	if b.Type != e.Type {
		return Values{}, fmt.Errorf("bundle type %s, dictionary says %s", b.Type, e.Type)
	}
	n := b.Len()
	switch b.Type {
	case ir.String:
		return Values{Type: Char, Shape: []int{n}, Strings: append([]string{}, b.Strings...)}, nil
	case ir.Real:
		return Values{Type: Float64, Shape: []int{n}, Floats: append([]float64{}, b.Reals...)}, nil
	case ir.Int:
		return Values{Type: Int64, Shape: []int{n}, Ints: append([]int64{}, b.Ints...)}, nil
	case ir.Vector:
		v := Values{Type: Float64, Shape: []int{n, 3}}
		for _, vec := range b.Vectors {
			v.Floats = append(v.Floats, vec[:]...)
		}
		return v, nil
	case ir.Frame:
		v := Values{Type: Int32, Shape: []int{n, 0, 0}}
		for i, img := range b.Frames {
			if err := img.Validate(); err != nil {
				return Values{}, err
			}
			if i == 0 {
				v.Shape[1], v.Shape[2] = img.Rows, img.Cols
			} else if img.Rows != v.Shape[1] || img.Cols != v.Shape[2] {
				return Values{}, fmt.Errorf("image %d is %dx%d, first image is %dx%d", i+1, img.Rows, img.Cols, v.Shape[1], v.Shape[2])
			}
			v.Int32s = append(v.Int32s, img.Data...)
		}
		return v, nil
	}
	return Values{}, fmt.Errorf("unsupported type %q", b.Type)
}

func charScalar(s string) Values { return Values{Type: Char, Strings: []string{s}} }

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
