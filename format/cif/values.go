package cif

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"formattransformer/internal/ir"
)

// stripSU drops a trailing standard uncertainty: "1.5418(2)" -> "1.5418".
func stripSU(s string) string {
	if i := strings.IndexByte(s, '('); i > 0 && strings.HasSuffix(s, ")") {
		return s[:i]
	}
	return s
}

func parseReal(v Value) (float64, error) {
	if v.IsNull() {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(stripSU(v.Text), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v.Text)
	}
	return f, nil
}

func parseInt(v Value) (int64, error) {
	if v.IsNull() {
		return 0, fmt.Errorf("missing integer value")
	}
	n, err := strconv.ParseInt(stripSU(v.Text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", v.Text)
	}
	return n, nil
}

func realValue(f float64) Value {
	if math.IsNaN(f) {
		return Value{Kind: Unknown}
	}
	return Value{Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func stringValue(s string) Value {
	if s == "" {
		return Value{Kind: Unknown}
	}
	return Value{Text: s}
}

// parseImage reads one image per text field: a row per line, columns
// separated by whitespace.
func parseImage(v Value) (ir.Image, error) {
	if v.IsNull() {
		return ir.Image{}, fmt.Errorf("missing image data")
	}
	var img ir.Image
	for _, line := range strings.Split(v.Text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if img.Rows == 0 {
			img.Cols = len(fields)
		} else if len(fields) != img.Cols {
			return ir.Image{}, fmt.Errorf("image row %d has %d columns, want %d", img.Rows+1, len(fields), img.Cols)
		}
		for _, f := range fields {
			n, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return ir.Image{}, fmt.Errorf("image row %d: %q is not an int32", img.Rows+1, f)
			}
			img.Data = append(img.Data, int32(n))
		}
		img.Rows++
	}
	return img, nil
}

func imageValue(img ir.Image) Value {
	var sb strings.Builder
	for r := 0; r < img.Rows; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < img.Cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatInt(int64(img.Data[r*img.Cols+c]), 10))
		}
	}
	return Value{Text: sb.String(), Kind: TextField}
}
