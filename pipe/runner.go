package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/uemux/uemux"
)

// pumpRunner executes the pump stage of a branch.
type pumpRunner struct {
	fn        PumpFunc
	component interface{}
}

func (r *pumpRunner) run(ctx context.Context, p *Pipe) (<-chan uemux.Buffer, <-chan error) {
	out := make(chan uemux.Buffer)
	errc := make(chan error, 1)
	measure := p.meter(r.component)()
	go func() {
		defer close(errc)
		defer close(out)
		execErr := r.loop(ctx, p, out, measure)
		flushErr := flush(r.component, p.name)
		if err := runError(execErr, flushErr); err != nil {
			errc <- fmt.Errorf("branch %s pump: %w", p.name, err)
		}
	}()
	return out, errc
}

func (r *pumpRunner) loop(ctx context.Context, p *Pipe, out chan<- uemux.Buffer, measure func(int)) error {
	for {
		b, err := r.fn(ctx)
		if err != nil {
			if graceful(err) {
				return nil
			}
			p.metric.Error(componentType(r.component))
			return err
		}
		measure(b.Size())
		select {
		case out <- b:
		case <-ctx.Done():
			return nil
		}
	}
}

// processRunner executes a processor stage of a branch.
type processRunner struct {
	fn        ProcessFunc
	component interface{}
}

func (r *processRunner) run(ctx context.Context, p *Pipe, in <-chan uemux.Buffer) (<-chan uemux.Buffer, <-chan error) {
	out := make(chan uemux.Buffer)
	errc := make(chan error, 1)
	measure := p.meter(r.component)()
	go func() {
		defer close(errc)
		defer close(out)
		execErr := r.loop(ctx, p, in, out, measure)
		flushErr := flush(r.component, p.name)
		if err := runError(execErr, flushErr); err != nil {
			errc <- fmt.Errorf("branch %s processor: %w", p.name, err)
		}
	}()
	return out, errc
}

func (r *processRunner) loop(ctx context.Context, p *Pipe, in <-chan uemux.Buffer, out chan<- uemux.Buffer, measure func(int)) error {
	for b := range in {
		ob, err := r.fn(ctx, b)
		if err != nil {
			if graceful(err) {
				return nil
			}
			p.metric.Error(componentType(r.component))
			return err
		}
		measure(ob.Size())
		select {
		case out <- ob:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// sinkRunner executes the sink stage of a branch.
type sinkRunner struct {
	fn        SinkFunc
	component interface{}
}

func (r *sinkRunner) run(ctx context.Context, p *Pipe, in <-chan uemux.Buffer) <-chan error {
	errc := make(chan error, 1)
	measure := p.meter(r.component)()
	go func() {
		defer close(errc)
		execErr := r.loop(ctx, p, in, measure)
		flushErr := flush(r.component, p.name)
		if err := runError(execErr, flushErr); err != nil {
			errc <- fmt.Errorf("branch %s sink: %w", p.name, err)
		}
	}()
	return errc
}

func (r *sinkRunner) loop(ctx context.Context, p *Pipe, in <-chan uemux.Buffer, measure func(int)) error {
	for b := range in {
		if err := r.fn(ctx, b); err != nil {
			if graceful(err) {
				return nil
			}
			p.metric.Error(componentType(r.component))
			return err
		}
		measure(b.Size())
	}
	return nil
}

// graceful reports whether the error ends the branch without failure:
// end of stream or context shutdown, canceled or past its deadline.
func graceful(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func flush(component interface{}, branch string) error {
	if f, ok := component.(Flusher); ok {
		return f.Flush(branch)
	}
	return nil
}

func componentType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}
