package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/streamavatar/internal/avatar3d"
	"github.com/normanking/streamavatar/internal/bus"
	"github.com/normanking/streamavatar/internal/config"
	"github.com/normanking/streamavatar/internal/feed"
	"github.com/normanking/streamavatar/internal/gesture"
	"github.com/normanking/streamavatar/internal/logging"
	"github.com/normanking/streamavatar/internal/renderer"
)

const shutdownTimeout = 5 * time.Second

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the avatar and stream frames to viewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := initLogging(cfg.Logging, true); err != nil {
				return err
			}
			defer log.Close()

			// Only the log level is applied live; everything else needs a restart.
			if v.ConfigFileUsed() != "" {
				config.Watch(v, log.Component("config"), func(next *config.Config) {
					log.SetLevel(logging.LogLevel(next.Logging.Level))
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := log.Component("serve")
	eventBus := bus.NewEventBus()

	source, err := newGestureSource(cfg.Gesture)
	if err != nil {
		return err
	}
	store := gesture.NewStore(source, log.Component("gesture-store"))

	hub := renderer.NewHub(cfg.Server.BroadcastFPS, eventBus, log.Zerolog())
	ctrl := avatar3d.NewController(avatar3d.Options{
		Config:  controllerConfig(cfg.Animation),
		Fetcher: store,
		Target:  hub,
		Logger:  log.Zerolog(),
		Bus:     eventBus,
		Rand:    newRand(cfg.Animation.Seed),
	})
	loop := renderer.NewLoop(ctrl, store, cfg.Render.FPS, log.Zerolog())

	eventBus.Subscribe(bus.EventTypeGestureFailed, func(e bus.Event) {
		logger.Warn().Interface("data", e.Data).Msg("Gesture failed")
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           renderer.Routes(hub, loop),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Gesture.Source == config.SourceFile && cfg.Gesture.Watch {
		watcher, err := gesture.NewWatcher(cfg.Gesture.Dir, store, log.Zerolog())
		if err != nil {
			logger.Warn().Err(err).Msg("Gesture directory watch disabled")
		} else {
			g.Go(func() error {
				watcher.Run(gctx)
				return nil
			})
		}
	}

	if cfg.Feed.Enabled {
		client := feed.NewClient(feed.Config{
			URL:               cfg.Feed.URL,
			TriggersPerSecond: cfg.Feed.TriggersPerSecond,
			Burst:             cfg.Feed.Burst,
			ReconnectDelay:    cfg.Feed.ReconnectDelay,
			MaxReconnectDelay: cfg.Feed.MaxReconnectDelay,
		}, loop, eventBus, log.Zerolog())
		g.Go(func() error {
			client.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("session", hub.Session()).
			Str("source", cfg.Gesture.Source).
			Msg("Serving avatar frames")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newGestureSource picks the recording source named by the gesture section.
func newGestureSource(cfg config.GestureConfig) (gesture.Source, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		return gesture.NewHTTPSource(cfg.BaseURL, cfg.Timeout), nil
	case config.SourceFile:
		return gesture.NewFileSource(cfg.Dir), nil
	case config.SourceGLTF:
		return gesture.NewGLTFSource(cfg.GLTFPath), nil
	default:
		return nil, fmt.Errorf("unknown gesture source %q", cfg.Source)
	}
}

func controllerConfig(a config.AnimationConfig) avatar3d.Config {
	return avatar3d.Config{
		MaxDelta:         float32(a.MaxDelta),
		EntranceDuration: float32(a.EntranceDuration),
		BlinkMinInterval: float32(a.BlinkMinInterval),
		BlinkMaxInterval: float32(a.BlinkMaxInterval),
		SpeakingHz:       a.SpeakingHz,
	}
}

// newRand seeds from the clock when seed is zero.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
