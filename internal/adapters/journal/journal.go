// Package journal records build progress as a progrock status stream on disk.
package journal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/protobuf/encoding/protojson"
)

var _ ports.Renderer = (*Journal)(nil)

// PlanVertex is the name of the vertex listing the planned blocks.
const PlanVertex = "plan"

// Journal is a ports.Renderer writing one protojson encoded progrock.StatusUpdate per line.
type Journal struct {
	w   *statusWriter
	rec *progrock.Recorder

	mu       sync.Mutex
	vertices map[string]*progrock.VertexRecorder
}

// Open creates the journal file at path, truncating an existing one.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create journal directory"), "path", path)
	}
	f, err := os.Create(path) //nolint:gosec // user supplied journal path
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create journal"), "path", path)
	}
	return New(f), nil
}

// New creates a journal writing to w. Stop closes w when it is an io.Closer.
func New(w io.Writer) *Journal {
	sw := &statusWriter{w: w}
	return &Journal{
		w:        sw,
		rec:      progrock.NewRecorder(sw),
		vertices: make(map[string]*progrock.VertexRecorder),
	}
}

// Start does nothing.
func (j *Journal) Start(_ context.Context) error {
	return nil
}

// Stop completes unfinished vertices and closes the underlying writer.
func (j *Journal) Stop() error {
	j.mu.Lock()
	for id, v := range j.vertices {
		v.Done(zerr.New("build interrupted"))
		delete(j.vertices, id)
	}
	j.mu.Unlock()

	return j.w.Close()
}

// Wait does nothing.
func (j *Journal) Wait() error {
	return nil
}

// OnPlanEmit records a completed vertex whose output lists the planned blocks.
func (j *Journal) OnPlanEmit(blocks []string) {
	v := j.rec.Vertex(digest.FromString(PlanVertex+"\x00"+strings.Join(blocks, "\x00")), PlanVertex)
	if len(blocks) > 0 {
		_, _ = io.WriteString(v.Stdout(), strings.Join(blocks, "\n")+"\n")
	}
	v.Done(nil)
}

// OnBlockStart opens a vertex for the block.
func (j *Journal) OnBlockStart(spanID, _, name string, _ time.Time) {
	v := j.rec.Vertex(digest.FromString(spanID), name)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.vertices[spanID] = v
}

// OnBlockLog appends toolchain output to the block vertex.
func (j *Journal) OnBlockLog(spanID string, data []byte) {
	if v := j.vertex(spanID, false); v != nil {
		_, _ = v.Stderr().Write(data)
	}
}

// OnBlockComplete closes the block vertex.
func (j *Journal) OnBlockComplete(spanID string, _ time.Time, cached bool, err error) {
	v := j.vertex(spanID, true)
	if v == nil {
		return
	}
	if cached {
		v.Cached()
	}
	v.Done(err)
}

func (j *Journal) vertex(spanID string, remove bool) *progrock.VertexRecorder {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := j.vertices[spanID]
	if remove {
		delete(j.vertices, spanID)
	}
	return v
}

// statusWriter implements progrock.Writer as newline delimited protojson.
type statusWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (s *statusWriter) WriteStatus(update *progrock.StatusUpdate) error {
	line, err := protojson.Marshal(update)
	if err != nil {
		return zerr.Wrap(err, "failed to encode status update")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	_, err = s.w.Write(append(line, '\n'))
	return err
}

func (s *statusWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
