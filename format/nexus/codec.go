package nexus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// Codec persists a NeXus tree.
type Codec interface {
	Save(fs afero.Fs, path string, root *Group) error
	Load(fs afero.Fs, path string) (*Group, error)
}

var (
	codecMu      sync.RWMutex
	codecs       = map[string]Codec{}
	defaultCodec = "xml"
)

func RegisterCodec(name string, c Codec) {
	codecMu.Lock()
	codecs[name] = c
	codecMu.Unlock()
}

// CodecFor returns the named codec; "" selects the default.
func CodecFor(name string) (Codec, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	if name == "" {
		name = defaultCodec
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("nexus: unknown codec %q (have %v)", name, codecNames())
	}
	return c, nil
}

func codecNames() []string {
	out := make([]string, 0, len(codecs))
	for k := range codecs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
