package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/wasmblock/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer runs a Model as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	errCh   chan error
}

// NewRenderer creates a renderer for model.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		errCh:   make(chan error, 1),
	}
}

// Start runs the program in the background.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop asks the program to draw its final frame and exit.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the program has exited.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit forwards the plan.
func (r *Renderer) OnPlanEmit(blocks []string) {
	r.program.Send(MsgPlan{Blocks: blocks})
}

// OnBlockStart forwards the start of a block.
func (r *Renderer) OnBlockStart(spanID, _, name string, startTime time.Time) {
	r.program.Send(MsgBlockStart{SpanID: spanID, Name: name, StartTime: startTime})
}

// OnBlockLog forwards toolchain output.
func (r *Renderer) OnBlockLog(spanID string, data []byte) {
	r.program.Send(MsgBlockLog{SpanID: spanID, Data: data})
}

// OnBlockComplete forwards the end of a block.
func (r *Renderer) OnBlockComplete(spanID string, endTime time.Time, cached bool, err error) {
	r.program.Send(MsgBlockComplete{SpanID: spanID, EndTime: endTime, Cached: cached, Err: err})
}
