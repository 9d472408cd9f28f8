package sink

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Event describes one finished transformation, successful or not.
type Event struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	SourceFormat string    `json:"source_format"`
	SourcePath   string    `json:"source_path"`
	TargetFormat string    `json:"target_format"`
	TargetPath   string    `json:"target_path"`
	Bundles      []string  `json:"bundles"`
	Missing      []string  `json:"missing,omitempty"`
	Error        string    `json:"error,omitempty"`
	Started      time.Time `json:"started"`
	DurationMS   int64     `json:"duration_ms"`
}

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error // driver-specific YAML ⇒ struct
	Push(*Event) error   // consume one event
	Close() error        // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var (
	mu  sync.RWMutex
	reg = map[string]factory{}
)

func Register(name string, f factory) {
	mu.Lock()
	reg[name] = f
	mu.Unlock()
}

func NewAdapter(name string) (Adapter, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// Names lists the registered sinks.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
