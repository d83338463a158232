package transfer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/bus/simbus"
	"github.com/coreman2200/sk9822/transfer"
)

func newQueue(t *testing.T, latency time.Duration, depth int, opts ...transfer.Option) (*simbus.Bus, *transfer.Queue) {
	t.Helper()
	s := simbus.New()
	s.SetLatency(latency)
	require.NoError(t, s.Init("", bus.Pins{}, bus.DMAAuto))
	h, err := s.Attach("", bus.DeviceConfig{QueueDepth: depth})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Detach(h) })
	return s, transfer.New(s, h, append([]transfer.Option{transfer.WithDepth(depth)}, opts...)...)
}

func TestTransferBlocksUntilComplete(t *testing.T) {
	const latency = 40 * time.Millisecond
	s, q := newQueue(t, latency, 1)

	start := time.Now()
	require.NoError(t, q.Transfer(context.Background(), []byte{1, 2, 3}))
	assert.GreaterOrEqual(t, time.Since(start), latency)
	assert.Equal(t, [][]byte{{1, 2, 3}}, s.Frames())
	assert.Equal(t, 0, q.InFlight())
}

func TestSubmitThenAwait(t *testing.T) {
	s, q := newQueue(t, 10*time.Millisecond, 1)

	p, err := q.Submit(context.Background(), []byte{7})
	require.NoError(t, err)
	assert.False(t, p.Done())
	assert.Equal(t, []byte{7}, p.Buffer())
	assert.Equal(t, 1, q.InFlight())

	require.NoError(t, q.Await(context.Background(), p))
	assert.True(t, p.Done())
	assert.NoError(t, q.Await(context.Background(), p), "awaiting twice returns the recorded result")
	assert.Len(t, s.Frames(), 1)
}

func TestDepthBoundsSubmissions(t *testing.T) {
	_, q := newQueue(t, 50*time.Millisecond, 1)
	assert.Equal(t, 1, q.Depth())

	p, err := q.Submit(context.Background(), []byte{1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Submit(ctx, []byte{2})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second submit must wait for the first to be awaited")

	require.NoError(t, q.Await(context.Background(), p))
	p, err = q.Submit(context.Background(), []byte{2})
	require.NoError(t, err)
	require.NoError(t, q.Await(context.Background(), p))
}

func TestPipelinedSubmissions(t *testing.T) {
	s, q := newQueue(t, 5*time.Millisecond, 3)

	var ps []*transfer.Pending
	for i := byte(0); i < 3; i++ {
		p, err := q.Submit(context.Background(), []byte{i})
		require.NoError(t, err)
		ps = append(ps, p)
	}
	assert.Equal(t, 3, q.InFlight())
	for _, p := range ps {
		require.NoError(t, q.Await(context.Background(), p))
	}
	assert.Equal(t, [][]byte{{0}, {1}, {2}}, s.Frames())
}

func TestAwaitTimeout(t *testing.T) {
	_, q := newQueue(t, 100*time.Millisecond, 1, transfer.WithTimeout(10*time.Millisecond))

	p, err := q.Submit(context.Background(), []byte{1})
	require.NoError(t, err)

	err = q.Await(context.Background(), p)
	assert.ErrorIs(t, err, transfer.ErrTimeout)
	assert.False(t, p.Done())
	assert.Equal(t, 1, q.InFlight())

	require.Eventually(t, func() bool {
		return q.Await(context.Background(), p) == nil
	}, time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, q.InFlight())
}

func TestAwaitCancelled(t *testing.T) {
	_, q := newQueue(t, 50*time.Millisecond, 1)
	p, err := q.Submit(context.Background(), []byte{1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Await(ctx, p), context.Canceled)
	assert.NoError(t, q.Await(context.Background(), p))
}

func TestTransportErrorSurfaces(t *testing.T) {
	s, q := newQueue(t, 0, 1)
	boom := errors.New("dma underrun")
	s.FailNext(boom)

	err := q.Transfer(context.Background(), []byte{1})
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, q.InFlight())

	assert.NoError(t, q.Transfer(context.Background(), []byte{2}))
}

func TestSubmitUnknownHandle(t *testing.T) {
	s := simbus.New()
	q := transfer.New(s, 42)
	_, err := q.Submit(context.Background(), []byte{1})
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, bus.ErrUnknownHandle)
}

// lateFault reports a hardware fault only once the waiter has given up.
type lateFault struct{ err error }

func (f lateFault) Init(bus.ID, bus.Pins, bus.DMAChannel) error         { return nil }
func (f lateFault) Attach(bus.ID, bus.DeviceConfig) (bus.Handle, error) { return 1, nil }
func (f lateFault) Submit(bus.Handle, []byte) (bus.TransferID, error)   { return 1, nil }
func (f lateFault) Await(ctx context.Context, _ bus.Handle, _ bus.TransferID) error {
	<-ctx.Done()
	return f.err
}

func TestFaultAtTimeoutIsFinal(t *testing.T) {
	boom := errors.New("underrun")
	q := transfer.New(lateFault{err: boom}, 1, transfer.WithTimeout(10*time.Millisecond))

	p, err := q.Submit(context.Background(), []byte{1})
	require.NoError(t, err)

	err = q.Await(context.Background(), p)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, transfer.ErrTimeout)
	var te *bus.TransportError
	assert.ErrorAs(t, err, &te)
	assert.True(t, p.Done())
	assert.Equal(t, 0, q.InFlight())
	assert.ErrorIs(t, q.Await(context.Background(), p), boom, "the recorded fault is returned again")
}
