// Package dictionary maps bundle names to their location in every supported
// format. Adapters consult it to know which CIF tags or NeXus paths make up
// a bundle.
package dictionary

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"formattransformer/internal/coords"
	"formattransformer/internal/ir"
)

//go:embed default.yaml
var defaultYAML []byte

var ErrUnknownBundle = errors.New("unknown bundle")

type CIFLocation struct {
	Tags  []string          `yaml:"tags"`
	Where map[string]string `yaml:"where"`
	Frame coords.Frame      `yaml:"frame"`
}

// Category is the CIF category shared by every tag of the location.
func (c CIFLocation) Category() string {
	if len(c.Tags) == 0 {
		return ""
	}
	return CategoryOf(c.Tags[0])
}

// CategoryOf returns the part of a DDL2 tag before the first dot,
// or the whole tag when there is none.
func CategoryOf(tag string) string {
	if i := strings.IndexByte(tag, '.'); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}

// Form tells which NeXus construct holds a bundle.
type Form int

const (
	FormInvalid Form = iota
	FormDataset
	FormAttribute
	FormMembers
	FormKeyed
)

func (f Form) String() string {
	switch f {
	case FormDataset:
		return "dataset"
	case FormAttribute:
		return "attribute"
	case FormMembers:
		return "members"
	case FormKeyed:
		return "keyed"
	}
	return "invalid"
}

type NeXusLocation struct {
	Path      string            `yaml:"path"`
	Attribute string            `yaml:"attribute"`
	Units     string            `yaml:"units"`
	Attrs     map[string]string `yaml:"attrs"`
	Group     string            `yaml:"group"`
	Members   bool              `yaml:"members"`
	Key       string            `yaml:"key"`
}

func (n NeXusLocation) Form() Form {
	switch {
	case n.Path != "" && n.Group == "" && n.Attribute == "" && !n.Members && n.Key == "":
		return FormDataset
	case n.Path != "" && n.Group == "" && n.Attribute != "" && !n.Members && n.Key == "":
		return FormAttribute
	case n.Path == "" && n.Group != "" && n.Members && n.Key == "" && n.Attribute == "":
		return FormMembers
	case n.Path == "" && n.Group != "" && !n.Members && n.Key != "" && n.Attribute != "":
		return FormKeyed
	}
	return FormInvalid
}

type Entry struct {
	Name  string         `yaml:"name"`
	Type  ir.Type        `yaml:"type"`
	CIF   *CIFLocation   `yaml:"cif"`
	NeXus *NeXusLocation `yaml:"nexus"`
}

type Dictionary struct {
	Classes map[string]string `yaml:"nexus_classes"`
	Entries []Entry           `yaml:"bundles"`

	index map[string]int
}

// Default returns the embedded dictionary.
func Default() *Dictionary {
	d, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("dictionary: embedded default is invalid: %v", err))
	}
	return d
}

// Load reads a dictionary file, or returns Default when path is empty.
func Load(path string) (*Dictionary, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return d, nil
}

func Parse(raw []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the dictionary and builds its name index.
func (d *Dictionary) Validate() error {
	var errs error
	d.index = make(map[string]int, len(d.Entries))
	for i, e := range d.Entries {
		if e.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: empty name", i))
			continue
		}
		if _, dup := d.index[e.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%q: duplicate entry", e.Name))
			continue
		}
		d.index[e.Name] = i
		if !e.Type.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("%q: unknown type %q", e.Name, e.Type))
		}
		if e.CIF != nil {
			want := 1
			if e.Type == ir.Vector {
				want = 3
			}
			if len(e.CIF.Tags) != want {
				errs = multierr.Append(errs, fmt.Errorf("%q: %s bundle needs %d cif tags, has %d", e.Name, e.Type, want, len(e.CIF.Tags)))
			}
			for _, tag := range e.CIF.Tags {
				if CategoryOf(tag) != e.CIF.Category() {
					errs = multierr.Append(errs, fmt.Errorf("%q: cif tags span categories", e.Name))
					break
				}
			}
			if e.CIF.Frame != "" && e.Type != ir.Vector {
				errs = multierr.Append(errs, fmt.Errorf("%q: frame set on non-vector bundle", e.Name))
			}
		}
		if e.NeXus != nil && e.NeXus.Form() == FormInvalid {
			errs = multierr.Append(errs, fmt.Errorf("%q: nexus location must be exactly one of path, path+attribute, group+members, group+key+attribute", e.Name))
		}
	}
	// keyed entries refer to a members entry on the same group
	for _, e := range d.Entries {
		if e.NeXus == nil || e.NeXus.Form() != FormKeyed {
			continue
		}
		i, ok := d.index[e.NeXus.Key]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%q: key %q is not a bundle", e.Name, e.NeXus.Key))
			continue
		}
		k := d.Entries[i]
		if k.NeXus == nil || k.NeXus.Form() != FormMembers || k.NeXus.Group != e.NeXus.Group {
			errs = multierr.Append(errs, fmt.Errorf("%q: key %q must list the members of %s", e.Name, e.NeXus.Key, e.NeXus.Group))
		}
	}
	return errs
}

// Lookup returns the entry for name.
func (d *Dictionary) Lookup(name string) (Entry, error) {
	i, ok := d.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w %q", ErrUnknownBundle, name)
	}
	return d.Entries[i], nil
}

// Names lists every bundle in dictionary order.
func (d *Dictionary) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Name
	}
	return out
}

// ClassOf returns the NX_class for a group path, defaulting to NXcollection.
func (d *Dictionary) ClassOf(path string) string {
	if c, ok := d.Classes[path]; ok {
		return c
	}
	return "NXcollection"
}

// Groups returns the configured group paths, parents first.
func (d *Dictionary) Groups() []string {
	out := make([]string, 0, len(d.Classes))
	for p := range d.Classes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.Count(out[i], "/"), strings.Count(out[j], "/")
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}
