// Package texttrace is a span exporter for otel that writes one line of text per span
package texttrace

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/sdk/trace"
)

var _ trace.SpanExporter = &Exporter{}

type Option func(*Exporter)

// WithColour toggles the ansi colouring of trace ids, span names and errors.
func WithColour(colour bool) Option {
	return func(e *Exporter) {
		e.colour = colour
	}
}

// New creates an Exporter writing to w.
func New(w io.Writer, opts ...Option) *Exporter {
	e := &Exporter{
		w:      w,
		colour: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Exporter writes spans to an io.Writer, it is safe for concurrent use.
type Exporter struct {
	colour bool

	mu      sync.Mutex
	w       io.Writer
	stopped bool
}

func (e *Exporter) ExportSpans(_ context.Context, spans []trace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	for _, s := range spans {
		_, _ = e.w.Write(e.format(s))
	}
	return nil
}

// Shutdown stops any further output.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	return ctx.Err()
}

func (e *Exporter) format(s trace.ReadOnlySpan) []byte {
	buf := new(bytes.Buffer)
	_, _ = fmt.Fprintf(buf, "%s %s %.3fms %s",
		s.EndTime().Format("15:04:05"),
		e.applyColour(shortTraceID(s.SpanContext().TraceID().String())),
		float64(s.EndTime().Sub(s.StartTime()).Microseconds())/1000,
		e.applyColour(s.Name()),
	)

	data := map[string]any{}
	keys := make([]string, 0, len(s.Attributes()))
	for _, a := range s.Attributes() {
		k := string(a.Key)
		if exclude(k) {
			continue
		}
		data[k] = a.Value.Emit()
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := k
		if k == "error" && e.colour {
			label = "\033[1;37;41m" + k + "\033[0m"
		}
		_, _ = fmt.Fprintf(buf, " %s=%v", label, data[k])
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func exclude(k string) bool {
	switch k {
	case "name", "version", "service", "duration_ms":
		return true
	}
	return strings.HasPrefix(k, "meta.") || strings.HasPrefix(k, "trace.")
}

func (e *Exporter) applyColour(value string) string {
	if !e.colour {
		return value
	}
	i := crc32.ChecksumIEEE([]byte(value)) % uint32(len(colours))
	return fmt.Sprintf("\033[1;38;5;%dm%s\033[0m", colours[i], value)
}

// colours are ansi colour codes that read well on a dark background
var colours = []uint8{
	9, 10, 11, 12, 13, 14, 33, 39, 45, 51, 77, 83, 87, 99, 105, 111, 117, 123, 141, 147,
	153, 159, 171, 177, 183, 189, 207, 213, 219, 220, 221, 222, 226, 227, 228, 229,
}

func shortTraceID(raw string) string {
	return raw[len(raw)-5:]
}
