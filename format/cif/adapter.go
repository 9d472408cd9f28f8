// Package cif reads and writes Crystallographic Information Files and maps
// their items onto bundles. It registers itself under the "cif" tag.
package cif

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"formattransformer/format"
	"formattransformer/internal/coords"
	"formattransformer/internal/dictionary"
	"formattransformer/internal/ir"
	"formattransformer/internal/logging"
)

const Tag = "cif"

type Adapter struct {
	opts format.Options
}

func init() { format.Register(Tag, func() format.Adapter { return &Adapter{} }) }

func (a *Adapter) Configure(o format.Options) error {
	if o.Dictionary == nil {
		return errors.New("cif: no dictionary")
	}
	a.opts = o
	return nil
}

/*──────── read ───────*/

func (a *Adapter) Read(ctx context.Context, path string, names []string) (*ir.Set, error) {
	f, err := a.opts.FS().Open(path)
	if err != nil {
		return nil, fmt.Errorf("cif: %w", err)
	}
	defer f.Close()

	blocks, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cif %s: %w", path, err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("cif %s: no data block", path)
	}
	if len(blocks) > 1 {
		logging.L().Debug("cif: using first data block", "path", path, "block", blocks[0].Name, "ignored", len(blocks)-1)
	}
	return a.extract(ctx, blocks[0], names)
}

func (a *Adapter) extract(ctx context.Context, blk *Block, names []string) (*ir.Set, error) {
	set := ir.NewSet()
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := a.opts.Dictionary.Lookup(n)
		if err != nil {
			return nil, fmt.Errorf("cif: %w", err)
		}
		if e.CIF == nil {
			logging.L().Debug("cif: bundle has no cif location", "bundle", n)
			continue
		}
		b, ok, err := bundleFromBlock(blk, e)
		if err != nil {
			return nil, fmt.Errorf("cif: bundle %q: %w", n, err)
		}
		if ok {
			set.Add(b)
		}
	}
	return set, nil
}

// bundleFromBlock collects the rows of e's tags that satisfy its where
// filter. ok is false when the block does not carry the bundle.
func bundleFromBlock(blk *Block, e dictionary.Entry) (*ir.Bundle, bool, error) {
	loc := e.CIF
	cols := make([][]Value, len(loc.Tags))
	var missing []string
	for i, tag := range loc.Tags {
		c, ok := blk.Column(tag)
		if !ok {
			missing = append(missing, tag)
			continue
		}
		cols[i] = c
	}
	if len(missing) == len(loc.Tags) {
		return nil, false, nil
	}
	if len(missing) > 0 {
		return nil, false, fmt.Errorf("incomplete, missing %s", strings.Join(missing, ", "))
	}
	n := len(cols[0])
	for i, c := range cols {
		if len(c) != n {
			return nil, false, fmt.Errorf("%s has %d rows, %s has %d", loc.Tags[i], len(c), loc.Tags[0], n)
		}
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	for _, wtag := range sortedKeys(loc.Where) {
		wc, ok := blk.Column(wtag)
		if !ok {
			return nil, false, nil
		}
		if len(wc) != n {
			return nil, false, fmt.Errorf("filter %s has %d rows, want %d", wtag, len(wc), n)
		}
		kept := rows[:0]
		for _, r := range rows {
			if strings.EqualFold(wc[r].Text, loc.Where[wtag]) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	b := &ir.Bundle{Name: e.Name, Type: e.Type}
	for _, r := range rows {
		if err := appendRow(b, cols, r); err != nil {
			return nil, false, fmt.Errorf("row %d: %w", r+1, err)
		}
	}
	if e.Type == ir.Vector && loc.Frame != "" {
		v, err := coords.ConvertAll(b.Vectors, loc.Frame, coords.McStas)
		if err != nil {
			return nil, false, err
		}
		b.Vectors = v
	}
	return b, true, nil
}

func appendRow(b *ir.Bundle, cols [][]Value, r int) error {
	v := cols[0][r]
	switch b.Type {
	case ir.String:
		if v.IsNull() {
			b.Strings = append(b.Strings, "")
		} else {
			b.Strings = append(b.Strings, v.Text)
		}
	case ir.Real:
		f, err := parseReal(v)
		if err != nil {
			return err
		}
		b.Reals = append(b.Reals, f)
	case ir.Int:
		n, err := parseInt(v)
		if err != nil {
			return err
		}
		b.Ints = append(b.Ints, n)
	case ir.Vector:
		var vec [3]float64
		for i := range vec {
			f, err := parseReal(cols[i][r])
			if err != nil {
				return err
			}
			vec[i] = f
		}
		b.Vectors = append(b.Vectors, vec)
	case ir.Frame:
		img, err := parseImage(v)
		if err != nil {
			return err
		}
		b.Frames = append(b.Frames, img)
	default:
		return fmt.Errorf("unsupported type %q", b.Type)
	}
	return nil
}

/*──────── write ───────*/

// table gathers the columns of one CIF category before it becomes a loop.
type table struct {
	tags []string
	cols map[string][]Value
	rows int
}

func (t *table) set(tag string, col []Value) {
	if _, ok := t.cols[tag]; !ok {
		t.tags = append(t.tags, tag)
	}
	t.cols[tag] = col
}

func (a *Adapter) Write(ctx context.Context, path string, set *ir.Set) (err error) {
	blk, err := a.block(ctx, set)
	if err != nil {
		return err
	}
	f, err := a.opts.FS().Create(path)
	if err != nil {
		return fmt.Errorf("cif: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	if err := Write(f, blk); err != nil {
		return fmt.Errorf("cif %s: %w", path, err)
	}
	return nil
}

func (a *Adapter) block(ctx context.Context, set *ir.Set) (*Block, error) {
	var order []string
	tables := map[string]*table{}

	for _, name := range set.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, _ := set.Get(name)
		e, err := a.opts.Dictionary.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("cif: %w", err)
		}
		if e.CIF == nil {
			logging.L().Warn("cif: bundle has no cif location, skipped", "bundle", name)
			continue
		}
		cols, err := columnsFromBundle(b, e)
		if err != nil {
			return nil, fmt.Errorf("cif: bundle %q: %w", name, err)
		}

		cat := e.CIF.Category()
		t, ok := tables[cat]
		if !ok {
			t = &table{cols: map[string][]Value{}, rows: b.Len()}
			tables[cat] = t
			order = append(order, cat)
		}
		if t.rows != b.Len() {
			return nil, fmt.Errorf("cif: bundle %q has %d rows but category %s already has %d", name, b.Len(), cat, t.rows)
		}
		for i, tag := range e.CIF.Tags {
			t.set(tag, cols[i])
		}
		for _, wtag := range sortedKeys(e.CIF.Where) {
			col := make([]Value, t.rows)
			for i := range col {
				col[i] = Value{Text: e.CIF.Where[wtag]}
			}
			t.set(wtag, col)
		}
	}

	blk := NewBlock(a.opts.Param("block", "converted"))
	for _, cat := range order {
		t := tables[cat]
		if t.rows == 0 {
			continue
		}
		l := &Loop{Tags: t.tags, Single: t.rows == 1}
		for r := 0; r < t.rows; r++ {
			row := make([]Value, len(t.tags))
			for i, tag := range t.tags {
				row[i] = t.cols[tag][r]
			}
			l.Rows = append(l.Rows, row)
		}
		blk.AddLoop(l)
	}
	return blk, nil
}

func columnsFromBundle(b *ir.Bundle, e dictionary.Entry) ([][]Value, error) {
	if b.Type != e.Type {
		return nil, fmt.Errorf("bundle type %s, dictionary says %s", b.Type, e.Type)
	}
	n := b.Len()
	cols := make([][]Value, len(e.CIF.Tags))
	for i := range cols {
		cols[i] = make([]Value, n)
	}
	switch b.Type {
	case ir.String:
		for r, s := range b.Strings {
			cols[0][r] = stringValue(s)
		}
	case ir.Real:
		for r, f := range b.Reals {
			cols[0][r] = realValue(f)
		}
	case ir.Int:
		for r, v := range b.Ints {
			cols[0][r] = Value{Text: fmt.Sprint(v)}
		}
	case ir.Vector:
		vs := b.Vectors
		if e.CIF.Frame != "" {
			var err error
			if vs, err = coords.ConvertAll(vs, coords.McStas, e.CIF.Frame); err != nil {
				return nil, err
			}
		}
		for r, v := range vs {
			for i := range v {
				cols[i][r] = realValue(v[i])
			}
		}
	case ir.Frame:
		for r, img := range b.Frames {
			if err := img.Validate(); err != nil {
				return nil, err
			}
			cols[0][r] = imageValue(img)
		}
	default:
		return nil, fmt.Errorf("unsupported type %q", b.Type)
	}
	return cols, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
