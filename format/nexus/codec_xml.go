package nexus

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// xmlCodec writes the NeXus XML layout: a group is an element named after
// its NX_class with a name attribute, a dataset is an element named after
// the dataset with a NAPItype attribute such as NX_FLOAT64[4,3]. Numbers
// are whitespace separated; strings are <value> children so they may carry
// spaces.
type xmlCodec struct{}

func init() { RegisterCodec("xml", xmlCodec{}) }

type xmlAttr struct {
	Name     string   `xml:"name,attr"`
	NAPIType string   `xml:"NAPItype,attr"`
	Values   []string `xml:"value"`
	Text     string   `xml:",chardata"`
}

type xmlNode struct {
	XMLName  xml.Name
	Name     string    `xml:"name,attr,omitempty"`
	NAPIType string    `xml:"NAPItype,attr,omitempty"`
	Attrs    []xmlAttr `xml:"attribute"`
	Values   []string  `xml:"value"`
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

func (xmlCodec) Save(fs afero.Fs, path string, root *Group) (err error) {
	n, err := groupToXML(root)
	if err != nil {
		return err
	}
	n.XMLName = xml.Name{Local: "NXroot"}
	n.Name = ""

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("nexus: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	if _, err := f.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(n); err != nil {
		return fmt.Errorf("nexus %s: %w", path, err)
	}
	_, err = f.Write([]byte("\n"))
	return err
}

func (xmlCodec) Load(fs afero.Fs, path string) (*Group, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nexus: %w", err)
	}
	defer f.Close()

	var n xmlNode
	if err := xml.NewDecoder(f).Decode(&n); err != nil {
		return nil, fmt.Errorf("nexus %s: %w", path, err)
	}
	if n.XMLName.Local != "NXroot" {
		return nil, fmt.Errorf("nexus %s: root element %q, want NXroot", path, n.XMLName.Local)
	}
	g, err := groupFromXML(n)
	if err != nil {
		return nil, fmt.Errorf("nexus %s: %w", path, err)
	}
	g.Name = ""
	return g, nil
}

/*──────── encode ───────*/

func napiType(v Values) string {
	if len(v.Shape) == 0 {
		return string(v.Type)
	}
	dims := make([]string, len(v.Shape))
	for i, d := range v.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%s[%s]", v.Type, strings.Join(dims, ","))
}

func valuesText(v Values) (strs []string, text string) {
	var parts []string
	switch v.Type {
	case Char:
		return v.Strings, ""
	case Float64:
		for _, f := range v.Floats {
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		}
	case Int64:
		for _, n := range v.Ints {
			parts = append(parts, strconv.FormatInt(n, 10))
		}
	case Int32:
		for _, n := range v.Int32s {
			parts = append(parts, strconv.FormatInt(int64(n), 10))
		}
	}
	return nil, strings.Join(parts, " ")
}

func attrsToXML(as attrs) ([]xmlAttr, error) {
	out := make([]xmlAttr, 0, len(as))
	for _, a := range as {
		if err := a.Check(); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		strs, text := valuesText(a.Values)
		out = append(out, xmlAttr{Name: a.Name, NAPIType: napiType(a.Values), Values: strs, Text: text})
	}
	return out, nil
}

func groupToXML(g *Group) (xmlNode, error) {
	if g.Class == "" || !xmlName.MatchString(g.Class) {
		return xmlNode{}, fmt.Errorf("group %q: bad class %q", g.Name, g.Class)
	}
	n := xmlNode{XMLName: xml.Name{Local: g.Class}, Name: g.Name}
	var err error
	if n.Attrs, err = attrsToXML(g.Attrs); err != nil {
		return n, fmt.Errorf("group %s: %w", g.Name, err)
	}
	for _, c := range g.Children {
		var cn xmlNode
		switch c := c.(type) {
		case *Group:
			cn, err = groupToXML(c)
		case *Dataset:
			cn, err = datasetToXML(c)
		}
		if err != nil {
			return n, err
		}
		n.Children = append(n.Children, cn)
	}
	return n, nil
}

func datasetToXML(d *Dataset) (xmlNode, error) {
	if !xmlName.MatchString(d.Name) || strings.HasPrefix(d.Name, "NX") || d.Name == "attribute" || d.Name == "value" {
		return xmlNode{}, fmt.Errorf("dataset name %q cannot be stored as XML", d.Name)
	}
	if err := d.Check(); err != nil {
		return xmlNode{}, fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	attrs, err := attrsToXML(d.Attrs)
	if err != nil {
		return xmlNode{}, fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	strs, text := valuesText(d.Values)
	return xmlNode{
		XMLName:  xml.Name{Local: d.Name},
		NAPIType: napiType(d.Values),
		Attrs:    attrs,
		Values:   strs,
		Text:     text,
	}, nil
}

/*──────── decode ───────*/

func parseNAPIType(s string) (DataType, []int, error) {
	t, dims, hasDims := strings.Cut(s, "[")
	dt := DataType(t)
	switch dt {
	case Char, Float64, Int64, Int32:
	default:
		return "", nil, fmt.Errorf("unsupported NAPI type %q", s)
	}
	if !hasDims {
		return dt, nil, nil
	}
	dims = strings.TrimSuffix(dims, "]")
	var shape []int
	for _, p := range strings.Split(dims, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("bad dimension in %q", s)
		}
		shape = append(shape, n)
	}
	return dt, shape, nil
}

func valuesFromXML(napi string, strs []string, text string) (Values, error) {
	dt, shape, err := parseNAPIType(napi)
	if err != nil {
		return Values{}, err
	}
	v := Values{Type: dt, Shape: shape}
	fields := strings.Fields(text)
	switch dt {
	case Char:
		v.Strings = append([]string{}, strs...)
	case Float64:
		for _, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return v, fmt.Errorf("bad %s value %q", dt, f)
			}
			v.Floats = append(v.Floats, x)
		}
	case Int64, Int32:
		bits := 64
		if dt == Int32 {
			bits = 32
		}
		for _, f := range fields {
			x, err := strconv.ParseInt(f, 10, bits)
			if err != nil {
				return v, fmt.Errorf("bad %s value %q", dt, f)
			}
			if dt == Int32 {
				v.Int32s = append(v.Int32s, int32(x))
			} else {
				v.Ints = append(v.Ints, x)
			}
		}
	}
	return v, v.Check()
}

func attrsFromXML(xs []xmlAttr) (attrs, error) {
	var out attrs
	for _, x := range xs {
		v, err := valuesFromXML(x.NAPIType, x.Values, x.Text)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", x.Name, err)
		}
		out = append(out, &Attr{Name: x.Name, Values: v})
	}
	return out, nil
}

func groupFromXML(n xmlNode) (*Group, error) {
	g := &Group{Name: n.Name, Class: n.XMLName.Local}
	var err error
	if g.Attrs, err = attrsFromXML(n.Attrs); err != nil {
		return nil, fmt.Errorf("group %s: %w", g.Name, err)
	}
	for _, c := range n.Children {
		if c.NAPIType == "" {
			sub, err := groupFromXML(c)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, sub)
			continue
		}
		v, err := valuesFromXML(c.NAPIType, c.Values, c.Text)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", c.XMLName.Local, err)
		}
		d := &Dataset{Name: c.XMLName.Local, Values: v}
		if d.Attrs, err = attrsFromXML(c.Attrs); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		g.Children = append(g.Children, d)
	}
	return g, nil
}
