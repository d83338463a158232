package bus

import (
	"context"
	"sync"
)

// TxFunc writes w to the wire and returns once it has been clocked out.
type TxFunc func(w []byte) error

type job struct {
	tx  []byte
	res chan error
}

// Async turns a blocking write into the submit/await shape of Transport.
// One worker goroutine drains a FIFO of depth slots, so transfers finish in
// the order they were submitted.
type Async struct {
	tx    TxFunc
	chunk int

	jobs chan job
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	next    TransferID
	pending map[TransferID]chan error
}

// NewAsync starts the worker. chunk <= 0 writes each buffer in one call.
func NewAsync(tx TxFunc, depth, chunk int) *Async {
	if depth < 1 {
		depth = 1
	}
	a := &Async{
		tx:      tx,
		chunk:   chunk,
		jobs:    make(chan job, depth),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		pending: map[TransferID]chan error{},
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case j := <-a.jobs:
			j.res <- a.write(j.tx)
		case <-a.quit:
			for {
				select {
				case j := <-a.jobs:
					j.res <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

func (a *Async) write(w []byte) error {
	if a.chunk <= 0 || len(w) <= a.chunk {
		return a.tx(w)
	}
	for off := 0; off < len(w); off += a.chunk {
		end := min(off+a.chunk, len(w))
		if err := a.tx(w[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Submit queues tx, blocking while all depth slots are taken.
func (a *Async) Submit(tx []byte) (TransferID, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0, ErrClosed
	}
	a.next++
	id := a.next
	res := make(chan error, 1)
	a.pending[id] = res
	a.mu.Unlock()

	select {
	case a.jobs <- job{tx: tx, res: res}:
		return id, nil
	case <-a.quit:
		a.mu.Lock()
		delete(a.pending, id)
		a.mu.Unlock()
		return 0, ErrClosed
	}
}

// Await blocks until transfer id completes. A cancelled wait leaves the
// transfer pending so it can be awaited again.
func (a *Async) Await(ctx context.Context, id TransferID) error {
	a.mu.Lock()
	res, ok := a.pending[id]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownID
	}

	var err error
	select {
	case err = <-res:
	case <-a.done:
		// A job that slipped in after the worker stopped never runs.
		select {
		case err = <-res:
		default:
			err = ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
	return err
}

// Close stops the worker once the transfer on the wire has finished. Queued
// transfers that never started complete with ErrClosed.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.quit)
	a.mu.Unlock()
	<-a.done
	return nil
}
