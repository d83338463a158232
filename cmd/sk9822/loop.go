package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/coreman2200/sk9822/internal/pattern"
	"github.com/coreman2200/sk9822/strip"
	"github.com/coreman2200/sk9822/transfer"
)

// looper paints one pattern step per tick and pushes it to the strip.
type looper struct {
	d       *strip.Driver
	r       *pattern.Runner
	limiter *rate.Limiter
	start   time.Time
	frames  int
}

func newLooper(d *strip.Driver, r *pattern.Runner, fps int) *looper {
	if fps <= 0 {
		fps = 30
	}
	return &looper{d: d, r: r, limiter: rate.NewLimiter(rate.Limit(fps), 1)}
}

func (l *looper) run(ctx context.Context) error {
	l.start = time.Now()
	pipelined := l.d.Config().QueueDepth > 1
	for {
		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		more, err := l.r.Step(l.d)
		if err != nil {
			return err
		}
		if !more {
			log.Info().Str("pattern", string(l.r.Kind())).Int("frames", l.frames).Msg("pattern finished")
			return l.d.Wait(ctx)
		}

		if pipelined {
			_, err = l.d.Submit(ctx)
		} else {
			err = l.d.Flush(ctx)
		}
		switch {
		case err == nil:
			l.frames++
		case errors.Is(err, transfer.ErrTimeout):
			log.Warn().Err(err).Msg("frame late")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}

		if l.frames > 0 && l.frames%300 == 0 {
			fps := float64(l.frames) / time.Since(l.start).Seconds()
			log.Debug().Int("frames", l.frames).Float64("fps", fps).Msg("render")
		}
	}
}
