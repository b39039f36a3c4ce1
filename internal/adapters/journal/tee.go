package journal

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/wasmblock/internal/core/ports"
)

// Tee fans every renderer call out to each of renderers in order.
func Tee(renderers ...ports.Renderer) ports.Renderer {
	if len(renderers) == 1 {
		return renderers[0]
	}
	return tee(renderers)
}

type tee []ports.Renderer

func (t tee) Start(ctx context.Context) error {
	for _, r := range t {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Stop() error {
	var errs []error
	for _, r := range t {
		errs = append(errs, r.Stop())
	}
	return errors.Join(errs...)
}

func (t tee) Wait() error {
	var errs []error
	for _, r := range t {
		errs = append(errs, r.Wait())
	}
	return errors.Join(errs...)
}

func (t tee) OnPlanEmit(blocks []string) {
	for _, r := range t {
		r.OnPlanEmit(blocks)
	}
}

func (t tee) OnBlockStart(spanID, parentID, name string, startTime time.Time) {
	for _, r := range t {
		r.OnBlockStart(spanID, parentID, name, startTime)
	}
}

func (t tee) OnBlockLog(spanID string, data []byte) {
	for _, r := range t {
		r.OnBlockLog(spanID, data)
	}
}

func (t tee) OnBlockComplete(spanID string, endTime time.Time, cached bool, err error) {
	for _, r := range t {
		r.OnBlockComplete(spanID, endTime, cached, err)
	}
}
