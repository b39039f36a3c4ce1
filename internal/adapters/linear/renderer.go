// Package linear renders build progress as prefixed log lines for CI and pipes.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/wasmblock/internal/ui/output"
	"go.trai.ch/wasmblock/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with one line per event.
// Toolchain output goes to stdout prefixed with the block name, status lines go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu     sync.Mutex
	blocks map[string]*blockState
}

type blockState struct {
	name    string
	started time.Time
	partial bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: output.NewWithProfile(stderr, output.ColorProfileANSI),
		blocks: make(map[string]*blockState),
	}
}

// Start does nothing. The renderer writes synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop prints partial lines of blocks that never completed.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.blocks {
		r.flushLocked(b)
	}
	return nil
}

// Wait does nothing.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned blocks.
func (r *Renderer) OnPlanEmit(blocks []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.stderr, "Building %d block(s): %s\n", len(blocks), strings.Join(blocks, ", "))
}

// OnBlockStart prints a start line.
func (r *Renderer) OnBlockStart(spanID, _, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocks[spanID] = &blockState{name: name, started: startTime}
	_, _ = fmt.Fprintf(r.stderr, "%s Building...\n", r.prefix(name))
}

// OnBlockLog prints complete lines of toolchain output and keeps the trailing partial line.
func (r *Renderer) OnBlockLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[spanID]
	if !ok {
		return
	}

	b.partial.Write(data)
	for {
		i := bytes.IndexByte(b.partial.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := b.partial.Next(i + 1)
		r.printLocked(b.name, line)
	}
}

// OnBlockComplete prints the outcome of the block.
func (r *Renderer) OnBlockComplete(spanID string, endTime time.Time, cached bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[spanID]
	if !ok {
		return
	}
	delete(r.blocks, spanID)
	r.flushLocked(b)

	elapsed := endTime.Sub(b.started).Round(time.Millisecond)
	prefix := r.prefix(b.name)

	switch {
	case err != nil:
		symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", prefix, symbol, elapsed, err)
	case cached:
		symbol := r.output.String(style.Cached).Foreground(termenv.ANSICyan).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Restored from cache\n", prefix, symbol)
	default:
		symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Built in %v\n", prefix, symbol, elapsed)
	}
}

func (r *Renderer) prefix(name string) string {
	return r.output.String("[" + name + "]").Faint().String()
}

func (r *Renderer) flushLocked(b *blockState) {
	if b.partial.Len() > 0 {
		r.printLocked(b.name, b.partial.Bytes())
		b.partial.Reset()
	}
}

func (r *Renderer) printLocked(name string, line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}
