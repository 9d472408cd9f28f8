package format

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"formattransformer/internal/dictionary"
	"formattransformer/internal/ir"
)

var ErrUnknownFormat = errors.New("unknown format")

// Options is handed to an adapter before use.
type Options struct {
	Dictionary *dictionary.Dictionary
	Params     map[string]string // endpoint options, adapter specific
	Fs         afero.Fs          // nil means the OS filesystem
}

func (o Options) FS() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

// Param returns Params[key] or def when unset.
func (o Options) Param(key, def string) string {
	if v, ok := o.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Adapter is the common behaviour every format exposes.
//
// Read returns only the requested bundles that the file carries; bundles the
// file lacks are left out of the set. Names the dictionary does not know
// fail with dictionary.ErrUnknownBundle.
type Adapter interface {
	Configure(Options) error
	Read(ctx context.Context, path string, names []string) (*ir.Set, error)
	Write(ctx context.Context, path string, set *ir.Set) error
}

/*──────── registry ───────*/

type Factory func() Adapter

var (
	mu  sync.RWMutex
	reg = map[string]Factory{}
)

// Register is called from each adapter's init().
func Register(tag string, f Factory) {
	mu.Lock()
	reg[tag] = f
	mu.Unlock()
}

func NewAdapter(tag string) (Adapter, error) {
	mu.RLock()
	f, ok := reg[tag]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, tag)
	}
	return f(), nil
}

// Formats lists the registered tags, sorted.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
