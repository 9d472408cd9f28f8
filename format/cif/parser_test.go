package cif

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `#\#CIF_1.1
# comment line
data_first
_cell.length_a   5.431(1)
_cell.setting    'cubic F'
_publ.note
;
two lines
of text
;
loop_
_atom.id
_atom.label
_atom.note
1 Si ?
2 "O 2" .
global_
_ignored.tag 3
data_second
save_frame
_inside.frame 1
save_
_second.value x
`

func TestParse_Sample(t *testing.T) {
	blocks, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	b := blocks[0]
	assert.Equal(t, "first", b.Name)

	v, ok := b.Column("_CELL.LENGTH_A")
	require.True(t, ok)
	assert.Equal(t, []Value{{Text: "5.431(1)"}}, v)

	v, _ = b.Column("_cell.setting")
	assert.Equal(t, Value{Text: "cubic F", Kind: Quoted}, v[0])

	v, _ = b.Column("_publ.note")
	assert.Equal(t, Value{Text: "two lines\nof text", Kind: TextField}, v[0])

	labels, ok := b.Column("_atom.label")
	require.True(t, ok)
	assert.Equal(t, []Value{{Text: "Si"}, {Text: "O 2", Kind: Quoted}}, labels)
	notes, _ := b.Column("_atom.note")
	assert.Equal(t, Unknown, notes[0].Kind)
	assert.Equal(t, Inapplicable, notes[1].Kind)
	assert.False(t, b.Has("_ignored.tag"))

	assert.Equal(t, "second", blocks[1].Name)
	assert.False(t, blocks[1].Has("_inside.frame"))
	assert.True(t, blocks[1].Has("_second.value"))
}

func TestParse_QuoteInsideValue(t *testing.T) {
	blocks, err := Parse(strings.NewReader("data_q\n_a.b 'it's fine'\n"))
	require.NoError(t, err)
	v, _ := blocks[0].Column("_a.b")
	assert.Equal(t, "it's fine", v[0].Text)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		src  string
		line int
	}{
		"item before block":   {"_a.b 1\n", 1},
		"tag without value":   {"data_x\n_a.b\n_a.c 1\n", 2},
		"ragged loop":         {"data_x\n\nloop_\n_a.b\n_a.c\n1 2 3\n", 3},
		"unterminated text":   {"data_x\n_a.b\n;\nnever closed\n", 3},
		"unterminated quote":  {"data_x\n_a.b 'open\n", 2},
		"value without tag":   {"data_x\nfloating\n", 2},
		"loop without tags":   {"data_x\nloop_\n1 2\n", 2},
		"unclosed save frame": {"data_x\nsave_f\n_a.b 1\n", 4},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.src))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %T", err)
			assert.Equal(t, tc.line, pe.Line)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	b := NewBlock("out")
	b.SetItem("_diffrn.id", Value{Text: "MULTI"})
	b.SetItem("_x.spaced", Value{Text: "a b"})
	b.SetItem("_x.empty", Value{})
	b.SetItem("_x.reserved", Value{Text: "data_like"})
	b.SetItem("_x.both", Value{Text: "it' s \"odd\" "})
	b.AddLoop(&Loop{
		Tags: []string{"_array_data.array_id", "_array_data.data", "_array_data.tail"},
		Rows: [][]Value{
			{{Text: "IMAGE"}, {Text: "1 2\n3 4", Kind: TextField}, {Kind: Unknown}},
			{{Text: "IMAGE"}, {Text: "5 6\n7 8", Kind: TextField}, {Text: "#hash"}},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b))

	blocks, err := Parse(&buf)
	require.NoError(t, err, buf.String())
	require.Len(t, blocks, 1)
	got := blocks[0]
	assert.Equal(t, "out", got.Name)

	for _, tc := range []struct{ tag, want string }{
		{"_diffrn.id", "MULTI"},
		{"_x.spaced", "a b"},
		{"_x.empty", ""},
		{"_x.reserved", "data_like"},
		{"_x.both", "it' s \"odd\" "},
	} {
		v, ok := got.Column(tc.tag)
		require.True(t, ok, tc.tag)
		assert.Equal(t, tc.want, v[0].Text, tc.tag)
	}

	data, _ := got.Column("_array_data.data")
	require.Len(t, data, 2)
	assert.Equal(t, "1 2\n3 4", data[0].Text)
	assert.Equal(t, "5 6\n7 8", data[1].Text)
	tail, _ := got.Column("_array_data.tail")
	assert.Equal(t, Unknown, tail[0].Kind)
	assert.Equal(t, "#hash", tail[1].Text)
}

func TestWrite_RejectsSemicolonLine(t *testing.T) {
	for _, text := range []string{"line one\n;line two", "first\r;second"} {
		b := NewBlock("out")
		b.SetItem("_a.note", Value{Text: text})
		err := Write(&bytes.Buffer{}, b)
		require.ErrorIs(t, err, ErrUnrepresentable, "%q", text)
		assert.Contains(t, err.Error(), "_a.note")
	}

	b := NewBlock("out")
	b.AddLoop(&Loop{
		Tags: []string{"_a.id", "_a.note"},
		Rows: [][]Value{{{Text: "1"}, {Text: "ok"}}, {{Text: "2"}, {Text: "x\n;y", Kind: TextField}}},
	})
	assert.ErrorIs(t, Write(&bytes.Buffer{}, b), ErrUnrepresentable)

	// a leading ';' sits on the opening delimiter line and is safe
	b = NewBlock("out")
	b.SetItem("_a.note", Value{Text: ";starts\nends"})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b))
	blocks, err := Parse(&buf)
	require.NoError(t, err, buf.String())
	v, _ := blocks[0].Column("_a.note")
	assert.Equal(t, ";starts\nends", v[0].Text)
}
