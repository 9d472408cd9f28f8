package stdout

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"formattransformer/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	PrintCounter bool `yaml:"print_counter" koanf:"print_counter"` // prepend seq#
	PrintBundles bool `yaml:"print_bundles" koanf:"print_bundles"` // list bundle names

	Out io.Writer `yaml:"-" koanf:"-"` // nil → os.Stdout
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config

	mu     sync.Mutex // serialises writes
	closed bool
}

var seq uint64

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	switch c := raw.(type) {
	case Config:
		d.cfg = c
	case nil:
		d.cfg = Config{}
	default:
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if d.cfg.Out == nil {
		d.cfg.Out = os.Stdout
	}
	return nil
}

func (d *driver) Push(e *sink.Event) error {
	var b strings.Builder
	if d.cfg.PrintCounter {
		fmt.Fprintf(&b, "[sink %06d] ", atomic.AddUint64(&seq, 1))
	} else {
		b.WriteString("[sink] ")
	}
	fmt.Fprintf(&b, "%s %s %s:%s -> %s:%s bundles=%d missing=%d %dms",
		e.ID, e.Status,
		e.SourceFormat, e.SourcePath,
		e.TargetFormat, e.TargetPath,
		len(e.Bundles), len(e.Missing), e.DurationMS)
	if e.Error != "" {
		fmt.Fprintf(&b, " err=%q", e.Error)
	}
	if d.cfg.PrintBundles && len(e.Bundles) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Bundles, ", "))
	}
	b.WriteByte('\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("stdout-sink: closed")
	}
	_, err := io.WriteString(d.cfg.Out, b.String())
	return err
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
