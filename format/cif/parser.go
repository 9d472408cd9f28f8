package cif

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// ParseError locates a syntax problem in the input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("cif: line %d: %s", e.Line, e.Msg) }

type tokKind int

const (
	tokEOF tokKind = iota
	tokData
	tokLoop
	tokSave
	tokGlobal
	tokStop
	tokTag
	tokValue
)

type token struct {
	kind tokKind
	text string
	val  Value
	line int
}

type lexer struct {
	src  []byte
	pos  int
	line int
	bol  bool // at beginning of line
}

func newLexer(src []byte) *lexer {
	src = bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	return &lexer{src: src, line: 1, bol: true}
}

func (l *lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
			l.bol = true
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
			l.bol = false
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func (l *lexer) next() (token, error) {
	l.skipSpace()
	c, ok := l.peekByte()
	if !ok {
		return token{kind: tokEOF, line: l.line}, nil
	}
	line := l.line

	if c == ';' && l.bol {
		return l.textField()
	}
	l.bol = false

	if c == '\'' || c == '"' {
		return l.quoted(c)
	}

	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) {
		l.pos++
	}
	word := string(l.src[start:l.pos])
	low := strings.ToLower(word)

	switch {
	case strings.HasPrefix(low, "data_"):
		return token{kind: tokData, text: word[5:], line: line}, nil
	case low == "loop_":
		return token{kind: tokLoop, line: line}, nil
	case strings.HasPrefix(low, "save_"):
		return token{kind: tokSave, text: word[5:], line: line}, nil
	case low == "global_":
		return token{kind: tokGlobal, line: line}, nil
	case low == "stop_":
		return token{kind: tokStop, line: line}, nil
	case c == '_':
		return token{kind: tokTag, text: word, line: line}, nil
	case word == "?":
		return token{kind: tokValue, val: Value{Kind: Unknown}, line: line}, nil
	case word == ".":
		return token{kind: tokValue, val: Value{Kind: Inapplicable}, line: line}, nil
	case c == '[' || c == ']' || c == '$':
		return token{}, &ParseError{Line: line, Msg: fmt.Sprintf("unsupported value %q", word)}
	}
	return token{kind: tokValue, val: Value{Text: word, Kind: Plain}, line: line}, nil
}

// quoted reads a value delimited by q; the closing quote must be followed
// by whitespace or end of input.
func (l *lexer) quoted(q byte) (token, error) {
	line := l.line
	l.pos++
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' {
			return token{}, &ParseError{Line: line, Msg: "unterminated quoted value"}
		}
		if c == q && (l.pos+1 == len(l.src) || isSpace(l.src[l.pos+1])) {
			text := string(l.src[start:l.pos])
			l.pos++
			return token{kind: tokValue, val: Value{Text: text, Kind: Quoted}, line: line}, nil
		}
		l.pos++
	}
	return token{}, &ParseError{Line: line, Msg: "unterminated quoted value"}
}

// textField reads from a line-initial ';' up to the next line-initial ';'.
func (l *lexer) textField() (token, error) {
	line := l.line
	l.pos++ // opening ;
	start := l.pos
	for l.pos < len(l.src) {
		if l.src[l.pos] == '\n' {
			l.line++
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == ';' {
				text := string(l.src[start:l.pos])
				l.pos += 2
				l.bol = false
				text = strings.TrimPrefix(text, "\n")
				return token{kind: tokValue, val: Value{Text: text, Kind: TextField}, line: line}, nil
			}
		}
		l.pos++
	}
	return token{}, &ParseError{Line: line, Msg: "unterminated text field"}
}

// Parse reads every data block in r.
func Parse(r io.Reader) ([]*Block, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p := &parser{lex: newLexer(src)}
	return p.parse()
}

type parser struct {
	lex     *lexer
	peeked  *token
	blocks  []*Block
	current *Block
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) unread(t token) { p.peeked = &t }

func (p *parser) parse() ([]*Block, error) {
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokEOF:
			return p.blocks, nil
		case tokData:
			if t.text == "" {
				return nil, &ParseError{Line: t.line, Msg: "data block without a name"}
			}
			p.current = NewBlock(t.text)
			p.blocks = append(p.blocks, p.current)
		case tokGlobal:
			if err := p.skipUntil(tokData); err != nil {
				return nil, err
			}
		case tokSave:
			if t.text == "" {
				return nil, &ParseError{Line: t.line, Msg: "save_ without an open frame"}
			}
			if err := p.skipFrame(); err != nil {
				return nil, err
			}
		case tokTag:
			if err := p.item(t); err != nil {
				return nil, err
			}
		case tokLoop:
			if err := p.loop(t); err != nil {
				return nil, err
			}
		case tokStop:
			return nil, &ParseError{Line: t.line, Msg: "stop_ is not supported"}
		case tokValue:
			return nil, &ParseError{Line: t.line, Msg: "value without a tag"}
		}
	}
}

func (p *parser) needBlock(line int) error {
	if p.current == nil {
		return &ParseError{Line: line, Msg: "data item outside a data block"}
	}
	return nil
}

func (p *parser) item(tag token) error {
	if err := p.needBlock(tag.line); err != nil {
		return err
	}
	v, err := p.next()
	if err != nil {
		return err
	}
	if v.kind != tokValue {
		return &ParseError{Line: tag.line, Msg: fmt.Sprintf("tag %s has no value", tag.text)}
	}
	p.current.SetItem(tag.text, v.val)
	return nil
}

func (p *parser) loop(start token) error {
	if err := p.needBlock(start.line); err != nil {
		return err
	}
	l := &Loop{}
	var t token
	var err error
	for {
		if t, err = p.next(); err != nil {
			return err
		}
		if t.kind != tokTag {
			break
		}
		l.Tags = append(l.Tags, t.text)
	}
	if len(l.Tags) == 0 {
		return &ParseError{Line: start.line, Msg: "loop_ without tags"}
	}
	var vals []Value
	for t.kind == tokValue {
		vals = append(vals, t.val)
		if t, err = p.next(); err != nil {
			return err
		}
	}
	p.unread(t)
	if len(vals)%len(l.Tags) != 0 {
		return &ParseError{Line: start.line, Msg: fmt.Sprintf("loop has %d values for %d tags", len(vals), len(l.Tags))}
	}
	for i := 0; i < len(vals); i += len(l.Tags) {
		l.Rows = append(l.Rows, vals[i:i+len(l.Tags)])
	}
	p.current.AddLoop(l)
	return nil
}

func (p *parser) skipUntil(kind tokKind) error {
	for {
		t, err := p.next()
		if err != nil {
			return err
		}
		if t.kind == kind || t.kind == tokEOF {
			p.unread(t)
			return nil
		}
	}
}

// skipFrame discards a save frame; nested frames are not allowed in CIF 1.1.
func (p *parser) skipFrame() error {
	for {
		t, err := p.next()
		if err != nil {
			return err
		}
		switch {
		case t.kind == tokEOF:
			return &ParseError{Line: t.line, Msg: "unterminated save frame"}
		case t.kind == tokSave && t.text == "":
			return nil
		case t.kind == tokSave, t.kind == tokData:
			return &ParseError{Line: t.line, Msg: "save frame not closed"}
		}
	}
}
