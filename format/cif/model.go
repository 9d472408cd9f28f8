package cif

import "strings"

// Kind records how a value was written, which also decides how it is
// written back.
type Kind int

const (
	Plain Kind = iota
	Quoted
	TextField
	Unknown      // ?
	Inapplicable // .
)

type Value struct {
	Text string
	Kind Kind
}

func (v Value) IsNull() bool { return v.Kind == Unknown || v.Kind == Inapplicable }

// Loop is a table of values. Single items are one-row loops with Single set.
type Loop struct {
	Tags   []string
	Rows   [][]Value
	Single bool
}

func (l *Loop) column(i int) []Value {
	out := make([]Value, len(l.Rows))
	for r, row := range l.Rows {
		out[r] = row[i]
	}
	return out
}

type tagRef struct{ loop, col int }

// Block is one data_ block. Tags are matched case-insensitively.
type Block struct {
	Name  string
	Loops []*Loop

	byTag map[string]tagRef
}

func NewBlock(name string) *Block {
	return &Block{Name: name, byTag: map[string]tagRef{}}
}

// AddLoop appends l. Tags already present elsewhere in the block are
// shadowed by the new loop.
func (b *Block) AddLoop(l *Loop) {
	idx := len(b.Loops)
	b.Loops = append(b.Loops, l)
	for i, t := range l.Tags {
		b.byTag[strings.ToLower(t)] = tagRef{idx, i}
	}
}

// SetItem adds a single-valued item.
func (b *Block) SetItem(tag string, v Value) {
	b.AddLoop(&Loop{Tags: []string{tag}, Rows: [][]Value{{v}}, Single: true})
}

// Column returns every value stored under tag.
func (b *Block) Column(tag string) ([]Value, bool) {
	ref, ok := b.byTag[strings.ToLower(tag)]
	if !ok {
		return nil, false
	}
	return b.Loops[ref.loop].column(ref.col), true
}

// Has reports whether tag is present.
func (b *Block) Has(tag string) bool {
	_, ok := b.byTag[strings.ToLower(tag)]
	return ok
}
