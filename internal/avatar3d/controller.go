package avatar3d

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/streamavatar/internal/bus"
	"github.com/normanking/streamavatar/internal/gesture"
)

// ErrAsleep is returned when a gesture is requested while the avatar sleeps.
var ErrAsleep = errors.New("avatar is asleep")

// Emote keys accepted by TriggerEmote in addition to the named expressions.
const (
	EmoteWink  = "wink"
	EmoteBlink = "blink"
	EmoteSleep = "sleep"
	EmoteWake  = "wake"
)

// triggerBlend is the crossfade into any externally triggered state.
const triggerBlend = 0.15

// Config holds the tunables of the animation controller, in seconds and Hz.
type Config struct {
	MaxDelta         float32
	EntranceDuration float32
	BlinkMinInterval float32
	BlinkMaxInterval float32
	SpeakingHz       float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxDelta:         0.1,
		EntranceDuration: 0.8,
		BlinkMinInterval: 3,
		BlinkMaxInterval: 5,
		SpeakingHz:       6,
	}
}

// Fetcher resolves a gesture name to its recording.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*gesture.Recording, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(event bus.Event)
}

// Options wires a Controller to its collaborators. Only Config is required;
// missing collaborators fall back to inert defaults.
type Options struct {
	Config  Config
	Fetcher Fetcher
	Target  RenderTarget
	Logger  zerolog.Logger
	Bus     Publisher
	Rand    *rand.Rand
	Now     func() time.Time
}

// FrameEvents reports which self-requested completion, if any, happened
// during one Update. At most one field is ever set.
type FrameEvents struct {
	GestureCompleted bool
	EmoteCompleted   bool
}

// Controller drives the avatar one frame at a time. It is not safe for
// concurrent use; a single render goroutine owns it.
type Controller struct {
	cfg     Config
	fetcher Fetcher
	target  RenderTarget
	logger  zerolog.Logger
	bus     Publisher

	states       states
	active       StateKind
	stateElapsed float32

	frozen Pose
	live   Pose
	output Pose
	fade   Crossfade

	blink    *BlinkOverlay
	speech   *SpeakingOverlay
	speaking bool
	entrance *Entrance
	clock    float32
}

func NewController(opts Options) *Controller {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	target := opts.Target
	if target == nil {
		target = NewFrameTarget()
	}

	c := &Controller{
		cfg:      opts.Config,
		fetcher:  opts.Fetcher,
		target:   target,
		logger:   opts.Logger.With().Str("component", "avatar-controller").Logger(),
		bus:      opts.Bus,
		blink:    NewBlinkOverlay(rng, opts.Config.BlinkMinInterval, opts.Config.BlinkMaxInterval),
		speech:   NewSpeakingOverlay(opts.Config.SpeakingHz, opts.Now),
		entrance: NewEntrance(opts.Config.EntranceDuration),
		active:   StateIdle,
		output:   NeutralPose(),
	}
	c.states.idle = newIdleState(rng)
	c.frozen = c.output
	c.live = c.output
	c.states.enter(StateIdle, &c.output)
	c.target.SetEntranceScale(c.entrance.Scale())
	writeTarget(c.target, &c.output)
	return c
}

// ActiveState reports the kind of the active state.
func (c *Controller) ActiveState() StateKind {
	return c.active
}

// ActiveName is the gesture or expression name of the active state, or the
// state kind for the others.
func (c *Controller) ActiveName() string {
	return c.stateName(c.active)
}

// IsSleeping is true from the moment sleep is entered until it has fully
// exited back to idle.
func (c *Controller) IsSleeping() bool {
	return c.active == StateSleep
}

// SleepPhase reports the sub-phase of sleep; it is meaningful only while
// IsSleeping.
func (c *Controller) SleepPhase() SleepPhase {
	return c.states.sleep.phase
}

// SetSpeaking sets the flag read by the speaking overlay on the next Update.
func (c *Controller) SetSpeaking(speaking bool) {
	c.speaking = speaking
}

// Pose returns the pose written to the render target on the last Update.
func (c *Controller) Pose() Pose {
	return c.output
}

// Entering reports whether the entrance animation is still running.
func (c *Controller) Entering() bool {
	return !c.entrance.Done()
}

// PlayGesture fetches the named gesture and starts it. A fetch error is
// returned as is and leaves the active state untouched.
func (c *Controller) PlayGesture(ctx context.Context, name string) error {
	if c.fetcher == nil {
		return errors.New("no gesture source configured")
	}
	rec, err := c.fetcher.Fetch(ctx, name)
	if err != nil {
		c.logger.Warn().Err(err).Str("gesture", name).Msg("Gesture fetch failed")
		c.publish(bus.EventTypeGestureFailed, map[string]any{"name": name, "error": err.Error()})
		return err
	}
	return c.StartGesture(name, rec)
}

// StartGesture transitions into playback of an already loaded recording.
func (c *Controller) StartGesture(name string, rec *gesture.Recording) error {
	if c.IsSleeping() {
		c.logger.Debug().Str("gesture", name).Msg("Gesture ignored while asleep")
		return ErrAsleep
	}
	c.states.gesture.load(name, rec)
	c.transition(StateGesture, triggerBlend)
	c.publish(bus.EventTypeGestureStarted, map[string]any{
		"name": name,
		"kind": c.states.gesture.kind.String(),
	})
	return nil
}

// TriggerEmote starts the emote with the given key. Unknown keys are
// ignored, as is everything but wake while the avatar sleeps. It reports
// whether the trigger took effect.
func (c *Controller) TriggerEmote(name string) bool {
	if c.IsSleeping() {
		if name != EmoteWake || !c.states.sleep.wake() {
			return false
		}
		c.logger.Debug().Msg("Waking")
		c.publish(bus.EventTypeEmoteStarted, map[string]any{"name": name})
		return true
	}

	var kind StateKind
	switch name {
	case EmoteWake:
		return false
	case EmoteWink:
		kind = StateWink
	case EmoteBlink:
		kind = StateBlink
	case EmoteSleep:
		kind = StateSleep
	default:
		if _, ok := LookupExpression(name); !ok {
			c.logger.Debug().Str("emote", name).Msg("Unknown emote ignored")
			return false
		}
		c.states.expression.load(name)
		kind = StateExpression
	}

	c.transition(kind, triggerBlend)
	c.publish(bus.EventTypeEmoteStarted, map[string]any{"name": name})
	return true
}

// Update advances the avatar by dt seconds and writes the result to the
// render target.
func (c *Controller) Update(dt float32) FrameEvents {
	if dt < 0 {
		dt = 0
	}
	if c.cfg.MaxDelta > 0 && dt > c.cfg.MaxDelta {
		dt = c.cfg.MaxDelta
	}
	c.clock += dt

	if !c.entrance.Done() {
		c.target.SetEntranceScale(c.entrance.Advance(dt))
		writeTarget(c.target, &c.output)
		return FrameEvents{}
	}

	c.stateElapsed += dt
	req := c.states.update(c.active, c.stateElapsed, c.clock, &c.live)
	c.fade.Apply(dt, &c.output, &c.frozen, &c.live)

	if c.active.ControlsEyes() {
		c.blink.Suppress(c.clock)
	} else {
		c.blink.Apply(c.clock, &c.output)
	}
	if c.speaking && c.active != StateSleep {
		c.speech.Apply(&c.output)
	}

	writeTarget(c.target, &c.output)

	if !req.toIdle {
		return FrameEvents{}
	}

	left := c.active
	name := c.stateName(left)
	c.transition(StateIdle, req.blendOut)

	switch {
	case left == StateGesture:
		c.publish(bus.EventTypeGestureCompleted, map[string]any{"name": name})
		return FrameEvents{GestureCompleted: true}
	case left.IsEmote():
		c.publish(bus.EventTypeEmoteCompleted, map[string]any{"name": name})
		return FrameEvents{EmoteCompleted: true}
	}
	return FrameEvents{}
}

func (c *Controller) stateName(kind StateKind) string {
	switch kind {
	case StateGesture:
		return c.states.gesture.name
	case StateExpression:
		return c.states.expression.name
	default:
		return kind.String()
	}
}

// transition freezes the current output, swaps states and arms the blend.
func (c *Controller) transition(to StateKind, blend float32) {
	from := c.active

	c.frozen = c.output
	c.states.exit(from)
	c.active = to
	c.states.enter(to, &c.frozen)
	c.live = c.frozen
	c.stateElapsed = 0
	c.fade.Start(blend)

	c.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Float32("blend", blend).
		Msg("State transition")
	c.publish(bus.EventTypeStateChanged, map[string]any{"from": from.String(), "to": to.String()})
}

func (c *Controller) publish(t bus.EventType, data map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Type: t, Data: data})
}
