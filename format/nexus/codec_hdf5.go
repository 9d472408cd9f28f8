//go:build hdf5

package nexus

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gonum.org/v1/hdf5"
)

// hdf5Codec writes real NeXus HDF5 files. The HDF5 library only works on
// OS paths, so files are staged in a temporary file and copied to or from
// the afero filesystem.
//
// Attribute names and types are recorded in a formatx_attrs attribute on
// each object because the bindings cannot enumerate attributes.
type hdf5Codec struct{}

const attrIndex = "formatx_attrs"

func init() {
	RegisterCodec("hdf5", hdf5Codec{})
	defaultCodec = "hdf5"
}

type attrHolder interface {
	CreateAttribute(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Attribute, error)
	OpenAttribute(name string) (*hdf5.Attribute, error)
}

func (hdf5Codec) Save(fs afero.Fs, path string, root *Group) (err error) {
	tmp, err := os.CreateTemp("", "formatx-*.nxs")
	if err != nil {
		return fmt.Errorf("nexus: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := saveHDF5(name, root); err != nil {
		return fmt.Errorf("nexus %s: %w", path, err)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("nexus: %w", err)
	}
	return afero.WriteFile(fs, path, raw, 0o644)
}

func (hdf5Codec) Load(fs afero.Fs, path string) (*Group, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("nexus: %w", err)
	}
	tmp, err := os.CreateTemp("", "formatx-*.nxs")
	if err != nil {
		return nil, fmt.Errorf("nexus: %w", err)
	}
	defer os.Remove(tmp.Name())
	_, werr := tmp.Write(raw)
	if err := multierr.Append(werr, tmp.Close()); err != nil {
		return nil, fmt.Errorf("nexus: %w", err)
	}
	g, err := loadHDF5(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("nexus %s: %w", path, err)
	}
	return g, nil
}

/*──────── save ───────*/

func saveHDF5(name string, root *Group) (err error) {
	f, err := hdf5.CreateFile(name, hdf5.F_ACC_TRUNC)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	g, err := f.OpenGroup("/")
	if err != nil {
		return err
	}
	defer g.Close()
	return saveGroup(g, root)
}

func saveGroup(h *hdf5.Group, g *Group) error {
	as := append(attrs{{Name: "NX_class", Values: charScalar(g.Class)}}, g.Attrs...)
	if err := saveAttrs(h, as); err != nil {
		return fmt.Errorf("group %s: %w", g.Name, err)
	}
	for _, c := range g.Children {
		switch c := c.(type) {
		case *Group:
			sub, err := h.CreateGroup(c.Name)
			if err != nil {
				return err
			}
			err = saveGroup(sub, c)
			sub.Close()
			if err != nil {
				return err
			}
		case *Dataset:
			if err := saveDataset(h, c); err != nil {
				return fmt.Errorf("dataset %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func saveDataset(h *hdf5.Group, d *Dataset) error {
	if err := d.Check(); err != nil {
		return err
	}
	space, err := dataspace(d.Values)
	if err != nil {
		return err
	}
	defer space.Close()
	ds, err := h.CreateDataset(d.Name, h5type(d.Type), space)
	if err != nil {
		return err
	}
	defer ds.Close()
	if d.Len() > 0 {
		if err := ds.Write(dataOf(d.Values)); err != nil {
			return err
		}
	}
	return saveAttrs(ds, d.Attrs)
}

func saveAttrs(h attrHolder, as attrs) error {
	var index []string
	for _, a := range as {
		if err := a.Check(); err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		space, err := dataspace(a.Values)
		if err != nil {
			return err
		}
		at, err := h.CreateAttribute(a.Name, h5type(a.Type), space)
		space.Close()
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		if a.Len() > 0 {
			err = at.Write(dataOf(a.Values), h5type(a.Type))
		}
		at.Close()
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		index = append(index, a.Name+"="+napiType(a.Values))
	}
	if len(index) == 0 {
		return nil
	}
	return writeIndex(h, index)
}

func writeIndex(h attrHolder, index []string) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(index))}, nil)
	if err != nil {
		return err
	}
	defer space.Close()
	at, err := h.CreateAttribute(attrIndex, hdf5.T_GO_STRING, space)
	if err != nil {
		return err
	}
	defer at.Close()
	return at.Write(&index, hdf5.T_GO_STRING)
}

func dataspace(v Values) (*hdf5.Dataspace, error) {
	if v.Shape == nil {
		return hdf5.CreateScalarDataspace()
	}
	dims := make([]uint, len(v.Shape))
	for i, d := range v.Shape {
		dims[i] = uint(d)
	}
	return hdf5.CreateSimpleDataspace(dims, nil)
}

func h5type(t DataType) *hdf5.Datatype {
	switch t {
	case Float64:
		return hdf5.T_NATIVE_DOUBLE
	case Int64:
		return hdf5.T_NATIVE_INT64
	case Int32:
		return hdf5.T_NATIVE_INT32
	}
	return hdf5.T_GO_STRING
}

func dataOf(v Values) any {
	switch v.Type {
	case Float64:
		return &v.Floats
	case Int64:
		return &v.Ints
	case Int32:
		return &v.Int32s
	}
	return &v.Strings
}

/*──────── load ───────*/

func loadHDF5(name string) (*Group, error) {
	f, err := hdf5.OpenFile(name, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := f.OpenGroup("/")
	if err != nil {
		return nil, err
	}
	defer h.Close()
	g, err := loadGroup(h, "")
	if err != nil {
		return nil, err
	}
	g.Class = "NXroot"
	return g, nil
}

func loadGroup(h *hdf5.Group, name string) (*Group, error) {
	as, err := loadAttrs(h)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", name, err)
	}
	g := &Group{Name: name, Class: "NXcollection"}
	for _, a := range as {
		if a.Name == "NX_class" && len(a.Strings) == 1 {
			g.Class = a.Strings[0]
			continue
		}
		g.Attrs = append(g.Attrs, a)
	}

	n, err := h.NumObjects()
	if err != nil {
		return nil, err
	}
	for i := uint(0); i < n; i++ {
		child, err := h.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		kind, err := h.ObjectTypeByIndex(i)
		if err != nil {
			return nil, err
		}
		switch kind {
		case hdf5.H5G_GROUP:
			sh, err := h.OpenGroup(child)
			if err != nil {
				return nil, err
			}
			sub, err := loadGroup(sh, child)
			sh.Close()
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, sub)
		case hdf5.H5G_DATASET:
			d, err := loadDataset(h, child)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", child, err)
			}
			g.Children = append(g.Children, d)
		}
	}
	return g, nil
}

func loadDataset(h *hdf5.Group, name string) (*Dataset, error) {
	ds, err := h.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	dt, err := ds.Datatype()
	if err != nil {
		return nil, err
	}
	defer dt.Close()

	v := Values{}
	switch dt.Class() {
	case hdf5.T_FLOAT:
		v.Type = Float64
	case hdf5.T_INTEGER:
		v.Type = Int64
		if dt.Size() == 4 {
			v.Type = Int32
		}
	case hdf5.T_STRING:
		v.Type = Char
	default:
		return nil, fmt.Errorf("unsupported datatype class %v", dt.Class())
	}

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	count := 1
	if len(dims) > 0 {
		v.Shape = make([]int, len(dims))
		for i, d := range dims {
			v.Shape[i] = int(d)
			count *= int(d)
		}
	}
	allocate(&v, count)
	if count > 0 {
		if err := ds.Read(dataOf(v)); err != nil {
			return nil, err
		}
	}

	d := &Dataset{Name: name, Values: v}
	if d.Attrs, err = loadAttrs(ds); err != nil {
		return nil, err
	}
	return d, nil
}

func loadAttrs(h attrHolder) (attrs, error) {
	at, err := h.OpenAttribute(attrIndex)
	if err != nil {
		// objects without attributes carry no index
		return nil, nil
	}
	space := at.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil || len(dims) != 1 {
		at.Close()
		return nil, fmt.Errorf("bad %s attribute", attrIndex)
	}
	index := make([]string, dims[0])
	err = at.Read(&index, hdf5.T_GO_STRING)
	at.Close()
	if err != nil {
		return nil, err
	}

	var out attrs
	for _, entry := range index {
		name, napi, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("bad %s entry %q", attrIndex, entry)
		}
		dt, shape, err := parseNAPIType(napi)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		v := Values{Type: dt, Shape: shape}
		count := 1
		for _, d := range shape {
			count *= d
		}
		allocate(&v, count)
		if count > 0 {
			a, err := h.OpenAttribute(name)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", name, err)
			}
			err = a.Read(dataOf(v), h5type(dt))
			a.Close()
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", name, err)
			}
		}
		out = append(out, &Attr{Name: name, Values: v})
	}
	return out, nil
}

func allocate(v *Values, n int) {
	switch v.Type {
	case Float64:
		v.Floats = make([]float64, n)
	case Int64:
		v.Ints = make([]int64, n)
	case Int32:
		v.Int32s = make([]int32, n)
	default:
		v.Strings = make([]string, n)
	}
}
