package simbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sk9822/bus"
	"github.com/coreman2200/sk9822/bus/simbus"
)

func attach(t *testing.T, s *simbus.Bus) bus.Handle {
	t.Helper()
	require.NoError(t, s.Init("sim0", bus.Pins{Data: 7, Clock: 6}, bus.DMAAuto))
	h, err := s.Attach("sim0", bus.DeviceConfig{QueueDepth: 1, Mode: bus.Mode})
	require.NoError(t, err)
	return h
}

func TestSimRecordsFrames(t *testing.T) {
	s := simbus.New()
	h := attach(t, s)

	var hooked [][]byte
	s.OnFrame(func(_ bus.Handle, f []byte) { hooked = append(hooked, f) })

	for _, f := range [][]byte{{1, 2}, {3}} {
		id, err := s.Submit(h, f)
		require.NoError(t, err)
		require.NoError(t, s.Await(context.Background(), h, id))
	}
	assert.Equal(t, [][]byte{{1, 2}, {3}}, s.Frames())
	assert.Equal(t, []byte{3}, s.Last())
	assert.Equal(t, s.Frames(), hooked)

	cfg, ok := s.Config(h)
	assert.True(t, ok)
	assert.Equal(t, bus.Mode, cfg.Mode)
}

func TestSimInitTwice(t *testing.T) {
	s := simbus.New()
	require.NoError(t, s.Init("", bus.Pins{}, bus.DMAAuto))
	assert.ErrorIs(t, s.Init("", bus.Pins{}, bus.DMAAuto), bus.ErrInitialized)

	_, err := s.Attach("other", bus.DeviceConfig{})
	assert.ErrorIs(t, err, bus.ErrNotInitialized)
}

func TestSimLatency(t *testing.T) {
	s := simbus.New()
	const latency = 30 * time.Millisecond
	s.SetLatency(latency)
	h := attach(t, s)

	start := time.Now()
	id, err := s.Submit(h, []byte{0})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), latency, "submit must not wait for the wire")
	require.NoError(t, s.Await(context.Background(), h, id))
	assert.GreaterOrEqual(t, time.Since(start), latency)
}

func TestSimFailNext(t *testing.T) {
	s := simbus.New()
	h := attach(t, s)
	boom := errors.New("wire fault")
	s.FailNext(boom)

	id, err := s.Submit(h, []byte{1})
	require.NoError(t, err)
	err = s.Await(context.Background(), h, id)
	var te *bus.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Frames())

	id, err = s.Submit(h, []byte{2})
	require.NoError(t, err)
	assert.NoError(t, s.Await(context.Background(), h, id))
}

func TestSimRelease(t *testing.T) {
	s := simbus.New()
	h := attach(t, s)
	require.NoError(t, s.Detach(h))
	assert.ErrorIs(t, s.Detach(h), bus.ErrUnknownHandle)
	_, err := s.Submit(h, []byte{1})
	assert.ErrorIs(t, err, bus.ErrUnknownHandle)

	require.NoError(t, s.Free("sim0"))
	assert.NoError(t, s.Init("sim0", bus.Pins{}, bus.DMAAuto))
}
