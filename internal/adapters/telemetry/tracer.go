// Package telemetry connects build spans to OpenTelemetry and to the progress renderers.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/wasmblock/internal/core/ports"
)

// EventBufferSize is the capacity of the asynchronous renderer queue.
const EventBufferSize = 4096

// AttrBlock tags a span with the block it builds.
const AttrBlock = "wasmblock.block"

var (
	_ ports.Tracer = (*OTelTracer)(nil)
	_ ports.Span   = (*OTelSpan)(nil)
)

// event is one queued renderer call. plan is set for plan events, spanID for log chunks.
// A barrier event is closed once everything queued before it was delivered.
type event struct {
	plan    []string
	spanID  string
	data    []byte
	barrier chan struct{}
}

// OTelTracer implements ports.Tracer on top of the global OpenTelemetry provider.
// Span output and plans are forwarded to the renderer from a single goroutine
// so toolchain writes never wait on the display.
type OTelTracer struct {
	tracer trace.Tracer

	rmu      sync.RWMutex
	renderer ports.Renderer

	// mu guards closed and the sends on events.
	mu     sync.RWMutex
	closed bool

	events chan event
	done   chan struct{}
}

// NewOTelTracer creates a tracer with the given instrumentation name.
// Shutdown releases its forwarding goroutine.
func NewOTelTracer(name string) *OTelTracer {
	t := &OTelTracer{
		tracer: otel.Tracer(name),
		events: make(chan event, EventBufferSize),
		done:   make(chan struct{}),
	}
	go t.forward()
	return t
}

// WithRenderer sets the renderer receiving plans and span output.
func (t *OTelTracer) WithRenderer(r ports.Renderer) *OTelTracer {
	t.rmu.Lock()
	defer t.rmu.Unlock()
	t.renderer = r
	return t
}

func (t *OTelTracer) forward() {
	defer close(t.done)
	for ev := range t.events {
		if ev.barrier != nil {
			close(ev.barrier)
			continue
		}
		r := t.currentRenderer()
		if r == nil {
			continue
		}
		if ev.plan != nil {
			r.OnPlanEmit(ev.plan)
			continue
		}
		r.OnBlockLog(ev.spanID, ev.data)
	}
}

func (t *OTelTracer) currentRenderer() ports.Renderer {
	t.rmu.RLock()
	defer t.rmu.RUnlock()
	return t.renderer
}

// enqueue hands ev to the forwarder. Log chunks are dropped when the queue is full,
// plans always get through.
func (t *OTelTracer) enqueue(ev event, mustDeliver bool) {
	if t.currentRenderer() == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}
	if mustDeliver {
		t.events <- ev
		return
	}
	select {
	case t.events <- ev:
	default:
	}
}

// flush waits until every event queued so far reached the renderer.
func (t *OTelTracer) flush() {
	if t.currentRenderer() == nil {
		return
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return
	}
	barrier := make(chan struct{})
	t.events <- event{barrier: barrier}
	t.mu.RUnlock()

	<-barrier
}

// Shutdown delivers the queued events and stops forwarding.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start creates a new span.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var startOpts []trace.SpanStartOption
	if cfg.Block != "" {
		startOpts = append(startOpts, trace.WithAttributes(attribute.String(AttrBlock, cfg.Block)))
	}
	ctx, span := t.tracer.Start(ctx, name, startOpts...)

	s := &OTelSpan{span: span, flush: t.flush}
	if t.currentRenderer() != nil {
		spanID := span.SpanContext().SpanID().String()
		s.batcher = NewBatcher(0, 0, func(data []byte) {
			t.enqueue(event{spanID: spanID, data: data}, false)
		})
	}

	return ctx, s
}

// EmitPlan records the planned blocks on the current span and announces them to the renderer.
func (t *OTelTracer) EmitPlan(ctx context.Context, blocks []string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("plan_emitted", trace.WithAttributes(
			attribute.StringSlice("blocks", blocks),
		))
	}

	plan := append([]string{}, blocks...)
	t.enqueue(event{plan: plan}, true)
	// Blocks must not start before the renderer knows the plan.
	t.flush()
}

// OTelSpan implements ports.Span.
type OTelSpan struct {
	span    trace.Span
	batcher *Batcher
	flush   func()
}

// End delivers buffered output to the renderer and completes the span.
func (s *OTelSpan) End() {
	if s.batcher != nil {
		_ = s.batcher.Close()
		s.flush()
	}
	s.span.End()
}

// RecordError records err and marks the span as failed.
func (s *OTelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	case fmt.Stringer:
		s.span.SetAttributes(attribute.String(key, v.String()))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// Write streams p to the renderer, or records it as a span event when none is attached.
func (s *OTelSpan) Write(p []byte) (int, error) {
	if s.batcher != nil {
		return s.batcher.Write(p)
	}
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	return len(p), nil
}
