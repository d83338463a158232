// Command sk9822 runs a test pattern on an APA102/SK9822 chain, either on a
// real SPI port or on the simulated bus with a terminal and browser preview.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/coreman2200/sk9822/bus/periphbus"
	"github.com/coreman2200/sk9822/bus/simbus"
	"github.com/coreman2200/sk9822/internal/config"
	"github.com/coreman2200/sk9822/internal/pattern"
	"github.com/coreman2200/sk9822/internal/preview"
	"github.com/coreman2200/sk9822/strip"
)

func main() {
	def := config.Default()
	clock := strip.DefaultClockSpeed
	var (
		configPath = flag.String("config", "", "path to a YAML config")
		driver     = flag.String("driver", def.Driver, "driver: spi | sim")
		pat        = flag.String("pattern", def.Pattern, "pattern: off | solid | chase | index_sweep | rainbow")
		col        = flag.String("color", def.Color, "hex colour for solid and chase")
		fps        = flag.Int("fps", def.FPS, "target frames per second")
		leds       = flag.Int("leds", def.Strip.Length, "LEDs in the chain")
		brightness = flag.Int("brightness", def.Strip.Brightness, "brightness percent 0..100")
		busName    = flag.String("bus", def.Strip.Bus, "SPI port name, empty for the first one")
		depth      = flag.Int("queue-depth", def.Strip.QueueDepth, "transfers in flight")
		addr       = flag.String("addr", "", "preview HTTP listen address, e.g. :8080")
		console    = flag.Bool("console", false, "draw frames on the terminal (sim only)")
		save       = flag.String("save", "", "write the effective config here and exit")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Var(&clock, "clock", "SPI clock, e.g. 10MHz")
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Config: file over defaults, then any flag given explicitly ----
	cfg := def
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		cfg = c
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "pattern":
			cfg.Pattern = *pat
		case "color":
			cfg.Color = *col
		case "fps":
			cfg.FPS = *fps
		case "leds":
			cfg.Strip.Length = *leds
		case "brightness":
			cfg.Strip.Brightness = *brightness
		case "bus":
			cfg.Strip.Bus = *busName
		case "queue-depth":
			cfg.Strip.QueueDepth = *depth
		case "clock":
			cfg.Strip.Clock = clock.String()
		case "addr":
			cfg.Preview.Addr = *addr
		case "console":
			cfg.Preview.Console = *console
		}
	})

	sc, err := cfg.StripConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid strip config")
	}
	kind, err := pattern.ParseKind(cfg.Pattern)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pattern")
	}
	c, err := pattern.ParseColor(cfg.Color)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid colour")
	}
	if *save != "" {
		if err := config.Save(*save, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *save).Msg("config save failed")
		}
		log.Info().Str("path", *save).Msg("config saved")
		return
	}

	// ---- Driver selection, falling back to the simulated bus ----
	hub := preview.NewHub()
	d, selected, err := open(cfg, sc, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("strip init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := newLooper(d, pattern.NewRunner(pattern.Plan{Kind: kind, Color: c, Brightness: sc.DefaultBrightness}), cfg.FPS)

	var srv *http.Server
	if cfg.Preview.Addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleFrames)
		mux.HandleFunc("/health", hub.HandleHealth)
		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		log.Info().Str("addr", srv.Addr).Str("driver", selected).Msg("preview server starting")
	}

	err = run(ctx, l, srv)
	log.Info().Msg("shutting down")
	if herr := d.Halt(); herr != nil {
		log.Warn().Err(herr).Msg("blank strip")
	}
	if cerr := d.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close strip")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("stopped")
	}
}

// open builds the strip on the configured driver. An SPI port that cannot be
// opened drops back to the simulated bus rather than failing.
func open(cfg *config.Config, sc strip.Config, hub *preview.Hub) (*strip.Driver, string, error) {
	switch cfg.Driver {
	case "spi":
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; falling back to SIM")
			break
		}
		pb := periphbus.New(periphbus.WithLogger(log.Logger))
		d, err := strip.New(sc, pb, strip.WithLogger(log.Logger))
		if err == nil {
			return d, "spi", nil
		}
		log.Warn().Err(err).
			Str("bus", string(sc.Bus)).
			Stringer("clock", sc.ClockSpeed).
			Msg("SPI init failed; falling back to SIM")
	case "sim":
	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
	}

	sb := simbus.New()
	sinks := []preview.Sink{hub}
	if cfg.Preview.Console {
		sinks = append(sinks, preview.NewConsole(nil, 100*time.Millisecond))
	}
	preview.Attach(sb, sinks...)
	d, err := strip.New(sc, sb, strip.WithLogger(log.Logger))
	return d, "sim", err
}

// run drives the frame loop and, when srv is set, the preview server. It
// returns once the loop ends, by signal, error or a finished pattern, and
// the server has shut down.
func run(ctx context.Context, l *looper, srv *http.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return l.run(gctx)
	})
	if srv != nil {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}
	return g.Wait()
}
