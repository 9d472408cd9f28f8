package cif

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Write serialises blocks as CIF 1.1. A value CIF 1.1 cannot carry fails
// the write with ErrUnrepresentable.
func Write(w io.Writer, blocks ...*Block) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#\\#CIF_1.1")
	for _, b := range blocks {
		fmt.Fprintf(bw, "\ndata_%s\n", b.Name)
		for _, l := range b.Loops {
			if err := writeLoop(bw, l); err != nil {
				return fmt.Errorf("cif: block %s: %w", b.Name, err)
			}
		}
	}
	return bw.Flush()
}

func writeLoop(w *bufio.Writer, l *Loop) error {
	if l.Single && len(l.Rows) == 1 {
		for i, tag := range l.Tags {
			v, err := formatValue(l.Rows[0][i])
			if err != nil {
				return fmt.Errorf("%s: %w", tag, err)
			}
			if strings.HasPrefix(v, "\n") {
				fmt.Fprintf(w, "%s%s\n", tag, v)
			} else {
				fmt.Fprintf(w, "%-40s %s\n", tag, v)
			}
		}
		return nil
	}
	fmt.Fprintln(w, "\nloop_")
	for _, tag := range l.Tags {
		fmt.Fprintln(w, tag)
	}
	for _, row := range l.Rows {
		var line strings.Builder
		for i, v := range row {
			s, err := formatValue(v)
			if err != nil {
				return fmt.Errorf("%s: %w", l.Tags[i], err)
			}
			switch {
			case strings.HasPrefix(s, "\n"):
				line.WriteString(s)
			case line.Len() > 0 && !strings.HasSuffix(line.String(), "\n"):
				line.WriteString(" " + s)
			default:
				line.WriteString(s)
			}
		}
		fmt.Fprintln(w, line.String())
	}
	return nil
}

var reservedPrefixes = []string{"data_", "save_", "loop_", "global_", "stop_"}

// ErrUnrepresentable marks a value no CIF 1.1 syntax can carry: a line
// inside it starts with ';' and would close its text field early.
var ErrUnrepresentable = errors.New("value cannot be written as CIF 1.1")

// formatValue picks the lightest syntax that reads back as the same value.
// Text fields come back starting with a newline and ending with ";\n".
func formatValue(v Value) (string, error) {
	switch v.Kind {
	case Unknown:
		return "?", nil
	case Inapplicable:
		return ".", nil
	}
	s := v.Text
	if v.Kind == TextField || strings.ContainsAny(s, "\n\r") {
		return textField(s)
	}
	if s == "" {
		return "''", nil
	}
	if !needsQuotes(s) {
		return s, nil
	}
	if !strings.Contains(s, "' ") && !strings.HasSuffix(s, "'") {
		return "'" + s + "'", nil
	}
	if !strings.Contains(s, "\" ") && !strings.HasSuffix(s, "\"") {
		return "\"" + s + "\"", nil
	}
	return textField(s)
}

func textField(s string) (string, error) {
	if strings.Contains(s, "\n;") || strings.Contains(s, "\r;") {
		return "", fmt.Errorf("%w: a line starts with ';'", ErrUnrepresentable)
	}
	return "\n;" + s + "\n;\n", nil
}

func needsQuotes(s string) bool {
	if s == "?" || s == "." {
		return true
	}
	if strings.ContainsAny(s, " \t") {
		return true
	}
	switch s[0] {
	case '_', '#', '$', '\'', '"', '[', ']', ';':
		return true
	}
	low := strings.ToLower(s)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	return false
}
