package avatar3d

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/streamavatar/internal/bus"
	"github.com/normanking/streamavatar/internal/gesture"
)

const frame = float32(1.0 / 60)

type fakeFetcher struct {
	recs map[string]*gesture.Recording
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, name string) (*gesture.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.recs[name]
	if !ok {
		return nil, gesture.ErrNotFound
	}
	return rec, nil
}

type recordingBus struct {
	events []bus.Event
}

func (b *recordingBus) Publish(e bus.Event) {
	b.events = append(b.events, e)
}

func (b *recordingBus) types() []bus.EventType {
	out := make([]bus.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type testRig struct {
	ctrl   *Controller
	target *FrameTarget
	bus    *recordingBus
	now    time.Time
}

func newTestRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()

	cfg := DefaultConfig()
	cfg.EntranceDuration = 0
	if mutate != nil {
		mutate(&cfg)
	}

	rig := &testRig{
		target: NewFrameTarget(),
		bus:    &recordingBus{},
		now:    time.Unix(1700000000, 0),
	}
	rig.ctrl = NewController(Options{
		Config: cfg,
		Fetcher: &fakeFetcher{recs: map[string]*gesture.Recording{
			"nod": twoKeyRecording(t),
		}},
		Target: rig.target,
		Logger: zerolog.Nop(),
		Bus:    rig.bus,
		Rand:   rand.New(rand.NewSource(7)),
		Now:    func() time.Time { return rig.now },
	})
	return rig
}

// run steps the controller for d seconds of frames and returns the events
// seen along the way.
func (r *testRig) run(d float32) []FrameEvents {
	var events []FrameEvents
	for elapsed := float32(0); elapsed < d; elapsed += frame {
		ev := r.ctrl.Update(frame)
		if ev.GestureCompleted || ev.EmoteCompleted {
			events = append(events, ev)
		}
	}
	return events
}

// runUntilEvent steps until a completion event fires or limit seconds pass.
func (r *testRig) runUntilEvent(limit float32) (FrameEvents, bool) {
	for elapsed := float32(0); elapsed < limit; elapsed += frame {
		ev := r.ctrl.Update(frame)
		if ev.GestureCompleted || ev.EmoteCompleted {
			return ev, true
		}
	}
	return FrameEvents{}, false
}

func TestController_StartsIdle(t *testing.T) {
	rig := newTestRig(t, nil)
	assert.Equal(t, StateIdle, rig.ctrl.ActiveState())
	assert.False(t, rig.ctrl.IsSleeping())
	assert.Empty(t, rig.run(10), "idle never completes")
}

func TestController_EntranceRunsFirst(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.EntranceDuration = 0.5 })
	require.True(t, rig.ctrl.Entering())

	assert.True(t, rig.ctrl.TriggerEmote(EmoteBlink))
	rig.run(0.3)
	assert.True(t, rig.ctrl.Entering())
	assert.Equal(t, StateBlink, rig.ctrl.ActiveState(), "states do not advance during the entrance")
	assert.Equal(t, float32(1), rig.ctrl.Pose().LeftLid)

	rig.run(0.25)
	assert.False(t, rig.ctrl.Entering())
	assert.Equal(t, float32(1), rig.target.Frame().Scale)
}

func TestController_ClampsDelta(t *testing.T) {
	rig := newTestRig(t, nil)
	require.True(t, rig.ctrl.TriggerEmote("happy"))

	// One stalled frame of ten seconds advances only MaxDelta.
	ev := rig.ctrl.Update(10)
	assert.False(t, ev.EmoteCompleted)
	assert.Equal(t, StateExpression, rig.ctrl.ActiveState())
}

func TestController_GestureCompletes(t *testing.T) {
	rig := newTestRig(t, nil)

	require.NoError(t, rig.ctrl.PlayGesture(context.Background(), "nod"))
	assert.Equal(t, StateGesture, rig.ctrl.ActiveState())

	ev, ok := rig.runUntilEvent(3)
	require.True(t, ok)
	assert.True(t, ev.GestureCompleted)
	assert.False(t, ev.EmoteCompleted)
	assert.Equal(t, StateIdle, rig.ctrl.ActiveState())

	assert.Contains(t, rig.bus.types(), bus.EventTypeGestureStarted)
	assert.Contains(t, rig.bus.types(), bus.EventTypeGestureCompleted)
}

func TestController_GestureFetchFailureLeavesState(t *testing.T) {
	rig := newTestRig(t, nil)
	require.True(t, rig.ctrl.TriggerEmote(EmoteWink))

	boom := errors.New("network down")
	rig.ctrl.fetcher = &fakeFetcher{err: boom}

	err := rig.ctrl.PlayGesture(context.Background(), "nod")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateWink, rig.ctrl.ActiveState())
	assert.Contains(t, rig.bus.types(), bus.EventTypeGestureFailed)
}

func TestController_LaterGestureWins(t *testing.T) {
	rig := newTestRig(t, nil)
	rec := twoKeyRecording(t)

	require.NoError(t, rig.ctrl.StartGesture("nod", rec))
	rig.run(0.5)
	require.NoError(t, rig.ctrl.StartGesture("shake", rec))

	assert.Equal(t, StateGesture, rig.ctrl.ActiveState())
	assert.Equal(t, GestureNegative, rig.ctrl.states.gesture.kind)
	assert.Equal(t, float32(0), rig.ctrl.stateElapsed, "the later gesture restarts playback")

	// The later clip plays its whole two seconds before completing.
	assert.Empty(t, rig.run(1.9))
	assert.Equal(t, StateGesture, rig.ctrl.ActiveState())
	assert.Equal(t, "shake", rig.ctrl.ActiveName())

	ev, ok := rig.runUntilEvent(0.5)
	require.True(t, ok)
	assert.True(t, ev.GestureCompleted)

	var completed []string
	for _, e := range rig.bus.events {
		if e.Type == bus.EventTypeGestureCompleted {
			completed = append(completed, e.Data["name"].(string))
		}
	}
	assert.Equal(t, []string{"shake"}, completed)
}

func TestController_GestureAfterWinkOpensLids(t *testing.T) {
	// No overlay blink lands during the check.
	rig := newTestRig(t, func(c *Config) {
		c.BlinkMinInterval = 100
		c.BlinkMaxInterval = 100
	})

	require.True(t, rig.ctrl.TriggerEmote(EmoteWink))
	rig.run(1)
	require.Less(t, rig.ctrl.Pose().RightLid, float32(lidClosedThreshold), "wink is holding")

	require.NoError(t, rig.ctrl.StartGesture("nod", twoKeyRecording(t)))
	rig.run(1)

	pose := rig.ctrl.Pose()
	assert.Equal(t, float32(1), pose.LeftLid)
	assert.Equal(t, float32(1), pose.RightLid)
	assert.Equal(t, GlyphEyeOpen, rig.target.Frame().RightEye.Text)
}

func TestController_IdleContinuesAcrossReentry(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.run(1)

	require.True(t, rig.ctrl.TriggerEmote(EmoteBlink))
	_, ok := rig.runUntilEvent(1)
	require.True(t, ok)
	require.Equal(t, StateIdle, rig.ctrl.ActiveState())

	rig.ctrl.Update(frame)

	var want, replay Pose
	rig.ctrl.states.idle.update(rig.ctrl.clock, &want)
	rig.ctrl.states.idle.update(rig.ctrl.stateElapsed, &replay)
	assert.Equal(t, want.HeadOrientation, rig.ctrl.live.HeadOrientation)
	assert.NotEqual(t, replay.HeadOrientation, rig.ctrl.live.HeadOrientation, "idle does not restart its motion")
}

type committingTarget struct {
	*FrameTarget
	commits []Frame
}

func (c *committingTarget) CommitFrame() {
	c.commits = append(c.commits, c.Frame())
}

func TestController_CommitsWholeFrames(t *testing.T) {
	target := &committingTarget{FrameTarget: NewFrameTarget()}
	cfg := DefaultConfig()
	cfg.EntranceDuration = 0.2
	ctrl := NewController(Options{
		Config: cfg,
		Target: target,
		Logger: zerolog.Nop(),
		Rand:   rand.New(rand.NewSource(5)),
	})
	require.Len(t, target.commits, 1, "construction commits the first frame")

	for i := 1; i <= 30; i++ {
		ctrl.Update(frame)
		require.Len(t, target.commits, i+1, "one commit per update")

		got := target.commits[i]
		pose := ctrl.Pose()
		assert.Equal(t, pose.HeadOrientation, got.Head)
		assert.Equal(t, pose.MouthGlyph, got.Mouth.Text)
	}
	assert.Equal(t, float32(1), target.commits[len(target.commits)-1].Scale)
}

func TestController_UnknownEmoteIsNoOp(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.run(0.5)
	before := len(rig.bus.events)

	assert.False(t, rig.ctrl.TriggerEmote("moonwalk"))
	assert.False(t, rig.ctrl.TriggerEmote(EmoteWake), "wake outside sleep is ignored")
	assert.Equal(t, StateIdle, rig.ctrl.ActiveState())
	assert.Len(t, rig.bus.events, before)
}

func TestController_StateMachineClosure(t *testing.T) {
	triggers := map[StateKind]func(*testing.T, *testRig){
		StateGesture: func(t *testing.T, r *testRig) {
			require.NoError(t, r.ctrl.PlayGesture(context.Background(), "nod"))
		},
		StateWink:       func(t *testing.T, r *testRig) { require.True(t, r.ctrl.TriggerEmote(EmoteWink)) },
		StateBlink:      func(t *testing.T, r *testRig) { require.True(t, r.ctrl.TriggerEmote(EmoteBlink)) },
		StateExpression: func(t *testing.T, r *testRig) { require.True(t, r.ctrl.TriggerEmote("surprised")) },
		StateSleep: func(t *testing.T, r *testRig) {
			require.True(t, r.ctrl.TriggerEmote(EmoteSleep))
			r.run(3)
			require.True(t, r.ctrl.TriggerEmote(EmoteWake))
		},
	}

	for kind, trigger := range triggers {
		t.Run(kind.String(), func(t *testing.T) {
			rig := newTestRig(t, nil)
			trigger(t, rig)
			require.Equal(t, kind, rig.ctrl.ActiveState())

			ev, ok := rig.runUntilEvent(5)
			require.True(t, ok, "state never completed")
			assert.Equal(t, StateIdle, rig.ctrl.ActiveState())
			assert.NotEqual(t, ev.GestureCompleted, ev.EmoteCompleted, "exactly one event fires")
			assert.Equal(t, kind == StateGesture, ev.GestureCompleted)
		})
	}
}

func TestController_WinkOwnsLids(t *testing.T) {
	// Blinks every 0.2s so an overlay blink would certainly land mid-wink.
	rig := newTestRig(t, func(c *Config) {
		c.BlinkMinInterval = 0.2
		c.BlinkMaxInterval = 0.2
	})

	sawIdleBlink := false
	for elapsed := float32(0); elapsed < 0.6; elapsed += frame {
		rig.ctrl.Update(frame)
		if rig.ctrl.Pose().LeftLid < 1 {
			sawIdleBlink = true
		}
	}
	require.True(t, sawIdleBlink, "overlay blinks in idle")

	require.True(t, rig.ctrl.TriggerEmote(EmoteWink))
	rig.run(0.3)

	for elapsed := float32(0); elapsed < 1.5; elapsed += frame {
		rig.ctrl.Update(frame)

		var want Pose
		rig.ctrl.states.wink.update(rig.ctrl.stateElapsed, &want)
		got := rig.ctrl.Pose()
		assert.Equal(t, float32(1), got.LeftLid)
		assert.Equal(t, want.RightLid, got.RightLid)
	}

	frameNow := rig.target.Frame()
	assert.Equal(t, GlyphEyeClosed, frameNow.RightEye.Text)
	assert.Equal(t, GlyphEyeOpen, frameNow.LeftEye.Text)
}

func TestController_SleepLifecycle(t *testing.T) {
	rig := newTestRig(t, nil)

	require.True(t, rig.ctrl.TriggerEmote(EmoteSleep))
	assert.True(t, rig.ctrl.IsSleeping())
	assert.False(t, rig.ctrl.TriggerEmote(EmoteSleep), "sleep while asleep is ignored")
	assert.False(t, rig.ctrl.TriggerEmote(EmoteWink), "only wake is accepted while asleep")
	assert.ErrorIs(t, rig.ctrl.PlayGesture(context.Background(), "nod"), ErrAsleep)

	assert.Empty(t, rig.run(10))
	assert.True(t, rig.ctrl.IsSleeping())
	assert.Equal(t, SleepSleeping, rig.ctrl.SleepPhase())

	require.True(t, rig.ctrl.TriggerEmote(EmoteWake))
	assert.Equal(t, SleepExiting, rig.ctrl.SleepPhase())
	assert.True(t, rig.ctrl.IsSleeping(), "still asleep while exiting")

	ev, ok := rig.runUntilEvent(2)
	require.True(t, ok)
	assert.True(t, ev.EmoteCompleted)
	assert.False(t, rig.ctrl.IsSleeping())
}

func TestController_SpeakingOverlay(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.SpeakingHz = 1 })
	rig.ctrl.SetSpeaking(true)

	// A quarter period in, the wave peaks.
	rig.now = time.Unix(1700000000, int64(250*time.Millisecond))
	rig.ctrl.Update(frame)
	assert.Equal(t, GlyphMouthOpen, rig.target.Frame().Mouth.Text)

	rig.now = time.Unix(1700000000, int64(750*time.Millisecond))
	rig.ctrl.Update(frame)
	assert.Equal(t, GlyphMouthDefault, rig.target.Frame().Mouth.Text)

	rig.now = time.Unix(1700000000, int64(250*time.Millisecond))
	require.True(t, rig.ctrl.TriggerEmote(EmoteSleep))
	rig.run(2)
	assert.NotEqual(t, GlyphMouthOpen, rig.target.Frame().Mouth.Text, "no mouth flaps while asleep")
}

func TestController_PublishesStateChanges(t *testing.T) {
	rig := newTestRig(t, nil)
	require.True(t, rig.ctrl.TriggerEmote(EmoteBlink))
	_, ok := rig.runUntilEvent(1)
	require.True(t, ok)

	var changes []string
	for _, e := range rig.bus.events {
		if e.Type == bus.EventTypeStateChanged {
			changes = append(changes, e.Data["from"].(string)+">"+e.Data["to"].(string))
		}
	}
	assert.Equal(t, []string{"idle>blink", "blink>idle"}, changes)
	assert.Contains(t, rig.bus.types(), bus.EventTypeEmoteCompleted)
}
