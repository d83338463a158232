// Package transfer hands finished wire buffers to a bus.Transport and waits
// for the hardware to report them sent. Submission and completion are two
// separate steps so callers can either block right away or overlap work with
// the transfer, up to the configured queue depth.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/coreman2200/sk9822/bus"
)

// ErrTimeout is returned by Await when the configured timeout elapses before
// the transport reports completion. The transfer is still in flight.
var ErrTimeout = errors.New("transfer: timed out waiting for completion")

type Option func(*Queue)

// WithDepth sets how many transfers may be in flight at once. Default 1.
func WithDepth(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.depth = n
		}
	}
}

// WithTimeout bounds each Await. 0, the default, waits forever.
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// Queue serialises transfers to one attached device.
type Queue struct {
	t       bus.Transport
	h       bus.Handle
	depth   int
	timeout time.Duration
	log     zerolog.Logger

	slots    *semaphore.Weighted
	inflight atomic.Int32
}

func New(t bus.Transport, h bus.Handle, opts ...Option) *Queue {
	q := &Queue{
		t:     t,
		h:     h,
		depth: 1,
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(q)
	}
	q.slots = semaphore.NewWeighted(int64(q.depth))
	return q
}

// Pending is the completion token for one submitted buffer. Only one
// goroutine may await a given Pending at a time.
type Pending struct {
	id      bus.TransferID
	buf     []byte
	started time.Time

	done bool
	err  error
}

func (p *Pending) ID() bus.TransferID { return p.id }

// Buffer is the slice the transport is reading. It must stay untouched until
// Await has returned without ErrTimeout or a context error.
func (p *Pending) Buffer() []byte { return p.buf }

// Done reports whether completion has been observed.
func (p *Pending) Done() bool { return p.done }

func (q *Queue) Depth() int { return q.depth }

// InFlight is the number of submitted transfers not yet awaited.
func (q *Queue) InFlight() int { return int(q.inflight.Load()) }

// Submit takes a queue slot, blocking while all are in use, and hands buf to
// the transport.
func (q *Queue) Submit(ctx context.Context, buf []byte) (*Pending, error) {
	if err := q.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	id, err := q.t.Submit(q.h, buf)
	if err != nil {
		q.slots.Release(1)
		var te *bus.TransportError
		if !errors.As(err, &te) {
			err = &bus.TransportError{Op: "submit", Err: err}
		}
		return nil, err
	}
	q.inflight.Add(1)
	q.log.Debug().Uint64("transfer", uint64(id)).Int("bytes", len(buf)).Msg("submitted")
	return &Pending{id: id, buf: buf, started: time.Now()}, nil
}

// Await blocks until p completes. On ErrTimeout or a cancelled ctx the
// transfer keeps its slot and p may be awaited again; any other result is
// final and is returned again by later calls.
func (q *Queue) Await(ctx context.Context, p *Pending) error {
	if p.done {
		return p.err
	}

	wctx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	err := q.t.Await(wctx, q.h, p.id)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if ctx.Err() == nil {
			q.log.Warn().Uint64("transfer", uint64(p.id)).Dur("timeout", q.timeout).Msg("transfer still in flight")
			return fmt.Errorf("transfer %d: %w", p.id, ErrTimeout)
		}
		return ctx.Err()
	}

	if err != nil {
		var te *bus.TransportError
		if !errors.As(err, &te) {
			err = &bus.TransportError{Op: "await", Err: err}
		}
	}
	p.done, p.err = true, err
	q.inflight.Add(-1)
	q.slots.Release(1)
	q.log.Debug().Uint64("transfer", uint64(p.id)).Dur("took", time.Since(p.started)).Err(err).Msg("completed")
	return err
}

// Transfer submits buf and waits for it.
func (q *Queue) Transfer(ctx context.Context, buf []byte) error {
	p, err := q.Submit(ctx, buf)
	if err != nil {
		return err
	}
	return q.Await(ctx, p)
}
