// Package renderer runs the animation controller on its own goroutine and
// broadcasts the resulting frames to browser viewers.
package renderer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/streamavatar/internal/avatar3d"
)

// ErrEmoteIgnored is returned when the controller did not accept an emote.
var ErrEmoteIgnored = errors.New("emote ignored")

// ErrStopped is returned for commands sent after the loop has exited.
var ErrStopped = errors.New("render loop stopped")

// Snapshot is the loop state visible to other goroutines, refreshed every
// tick.
type Snapshot struct {
	State    avatar3d.StateKind
	Name     string
	Sleeping bool
	Entering bool
	Frames   uint64
}

type command struct {
	apply func(*avatar3d.Controller) error
	reply chan error
}

// Loop owns a Controller and ticks it at a fixed rate. Every other
// goroutine talks to the controller through the command queue.
type Loop struct {
	ctrl    *avatar3d.Controller
	fetcher avatar3d.Fetcher
	logger  zerolog.Logger
	fps     int
	now     func() time.Time

	commands chan command
	done     chan struct{}
	speaking atomic.Bool
	snapshot atomic.Pointer[Snapshot]
}

// NewLoop wraps ctrl. fetcher resolves gestures outside the loop goroutine.
func NewLoop(ctrl *avatar3d.Controller, fetcher avatar3d.Fetcher, fps int, logger zerolog.Logger) *Loop {
	if fps <= 0 {
		fps = 60
	}
	l := &Loop{
		ctrl:     ctrl,
		fetcher:  fetcher,
		logger:   logger.With().Str("component", "render-loop").Logger(),
		fps:      fps,
		now:      time.Now,
		commands: make(chan command, 64),
		done:     make(chan struct{}),
	}
	l.publishSnapshot(0)
	return l
}

// Run ticks the controller until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	l.logger.Info().Int("fps", l.fps).Msg("Render loop started")
	defer l.logger.Info().Msg("Render loop stopped")

	last := l.now()
	var frames uint64
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return

		case cmd := <-l.commands:
			cmd.reply <- cmd.apply(l.ctrl)

		case <-ticker.C:
			now := l.now()
			dt := float32(now.Sub(last).Seconds())
			last = now

			l.ctrl.SetSpeaking(l.speaking.Load())
			ev := l.ctrl.Update(dt)
			frames++
			l.publishSnapshot(frames)

			if ev.GestureCompleted {
				l.logger.Debug().Msg("Gesture completed")
			}
			if ev.EmoteCompleted {
				l.logger.Debug().Msg("Emote completed")
			}
		}
	}
}

// drain fails commands still queued at shutdown.
func (l *Loop) drain() {
	for {
		select {
		case cmd := <-l.commands:
			cmd.reply <- ErrStopped
		default:
			return
		}
	}
}

func (l *Loop) publishSnapshot(frames uint64) {
	l.snapshot.Store(&Snapshot{
		State:    l.ctrl.ActiveState(),
		Name:     l.ctrl.ActiveName(),
		Sleeping: l.ctrl.IsSleeping(),
		Entering: l.ctrl.Entering(),
		Frames:   frames,
	})
}

// Snapshot returns the state as of the last tick or command.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// IsSleeping reports whether the avatar was asleep at the last tick.
func (l *Loop) IsSleeping() bool {
	return l.Snapshot().Sleeping
}

// SetSpeaking sets the speaking flag read before every tick.
func (l *Loop) SetSpeaking(speaking bool) {
	l.speaking.Store(speaking)
}

// do runs fn on the loop goroutine and waits for its result.
func (l *Loop) do(ctx context.Context, fn func(*avatar3d.Controller) error) error {
	cmd := command{
		apply: func(c *avatar3d.Controller) error {
			err := fn(c)
			l.publishSnapshot(l.Snapshot().Frames)
			return err
		},
		reply: make(chan error, 1),
	}

	select {
	case l.commands <- cmd:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-l.done:
		// Run may have answered during drain.
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayGesture fetches on the calling goroutine, then hands the transition to
// the loop. When two requests overlap, whichever fetch finishes last is
// applied last and wins.
func (l *Loop) PlayGesture(ctx context.Context, name string) error {
	rec, err := l.fetcher.Fetch(ctx, name)
	if err != nil {
		return err
	}
	return l.do(ctx, func(c *avatar3d.Controller) error {
		return c.StartGesture(name, rec)
	})
}

// TriggerEmote forwards an emote key to the controller.
func (l *Loop) TriggerEmote(ctx context.Context, name string) error {
	return l.do(ctx, func(c *avatar3d.Controller) error {
		if !c.TriggerEmote(name) {
			return ErrEmoteIgnored
		}
		return nil
	})
}
