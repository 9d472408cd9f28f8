// Package bundle persists ordered bundle-name lists, one name per line.
package bundle

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// WriteNames truncates path and writes every name followed by a newline.
// The file is closed before WriteNames returns.
func WriteNames(fs afero.Fs, path string, names []string) (err error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("bundle names %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("bundle names %s: close: %w", path, cerr))
		}
	}()

	w := bufio.NewWriter(f)
	for _, n := range names {
		if _, err = w.WriteString(n + "\n"); err != nil {
			return fmt.Errorf("bundle names %s: %w", path, err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("bundle names %s: %w", path, err)
	}
	return nil
}

// ReadNames returns the names in path in file order. Surrounding
// whitespace is trimmed and blank lines are skipped.
func ReadNames(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bundle names %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if n := strings.TrimSpace(sc.Text()); n != "" {
			names = append(names, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bundle names %s: %w", path, err)
	}
	return names, nil
}
