package avatar3d

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/streamavatar/internal/gesture"
)

func twoKeyRecording(t *testing.T) *gesture.Recording {
	t.Helper()
	rec, err := gesture.ParseRecording([]byte(`{"id":"nod","samples":[
		{"t": 0, "x": 0, "y": 0, "z": 0, "w": 1},
		{"t": 2.0, "x": 0.0998, "y": 0, "z": 0, "w": 0.995}
	]}`))
	require.NoError(t, err)
	return rec
}

func TestGestureState_CompletesAfterDuration(t *testing.T) {
	rec := twoKeyRecording(t)

	var s gestureState
	s.load("nod", rec)
	out := NeutralPose()
	s.enter(&out)

	req := s.update(1.0, &out)
	assert.False(t, req.toIdle)
	assertQuatNear(t, slerp(rec.Samples[0].Q, rec.Samples[1].Q, 0.5), out.HeadOrientation)

	req = s.update(2.5, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(gestureBlendOut), req.blendOut)
	assert.Equal(t, rec.Samples[1].Q, out.HeadOrientation)
}

func TestGestureState_HoldsKindExpression(t *testing.T) {
	rec := twoKeyRecording(t)

	var s gestureState
	s.load("Nod", rec)
	out := NeutralPose()
	s.enter(&out)
	assert.Equal(t, GestureAffirmative, s.kind)

	s.update(0.1, &out)
	early := out.MouthCurve
	s.update(1.9, &out)

	assert.Greater(t, early, float32(0))
	assert.Equal(t, early, out.MouthCurve, "expression is constant during playback")
}

func TestGestureState_EmptyRecording(t *testing.T) {
	var s gestureState
	s.load("nod", &gesture.Recording{})

	out := NeutralPose()
	s.enter(&out)
	req := s.update(0.016, &out)
	assert.True(t, req.toIdle)
}

func TestGestureState_ReloadSurvivesExit(t *testing.T) {
	rec := twoKeyRecording(t)

	var s gestureState
	s.load("nod", rec)
	out := NeutralPose()
	s.enter(&out)
	s.update(0.5, &out)

	// A second clip is staged while the first plays; the controller then
	// exits and re-enters the state.
	s.load("shake", rec)
	assert.Equal(t, "nod", s.name, "staging leaves the playing clip alone")
	s.exit()
	s.enter(&out)

	assert.Equal(t, "shake", s.name)
	assert.Equal(t, GestureNegative, s.kind)
	req := s.update(0.5, &out)
	assert.False(t, req.toIdle)
}

func TestGestureState_OpensLids(t *testing.T) {
	var s gestureState
	s.load("nod", twoKeyRecording(t))

	out := NeutralPose()
	out.LeftLid = 0.2
	out.RightLid = 0
	s.enter(&out)
	s.update(0.1, &out)

	assert.Equal(t, float32(1), out.LeftLid)
	assert.Equal(t, float32(1), out.RightLid)
}

func TestGestureKindFor(t *testing.T) {
	assert.Equal(t, GestureAffirmative, GestureKindFor("agree"))
	assert.Equal(t, GestureNegative, GestureKindFor("SHAKE"))
	assert.Equal(t, GestureUncertain, GestureKindFor("shrug"))
	assert.Equal(t, GestureNeutral, GestureKindFor("wave"))
	assert.Equal(t, "uncertain", GestureUncertain.String())
}

func TestWinkState_FullCycle(t *testing.T) {
	q0 := mgl32.QuatRotate(0.3, axisYaw)
	start := NeutralPose()
	start.HeadOrientation = q0

	var s winkState
	s.enter(&start)
	tilted := q0.Mul(mgl32.QuatRotate(winkTiltAngle, axisForward))

	out := start
	req := s.update(0, &out)
	assert.False(t, req.toIdle)
	assert.Equal(t, float32(1), out.RightLid)
	assert.Equal(t, float32(1), out.LeftLid)

	req = s.update(0.08, &out)
	assert.False(t, req.toIdle)
	assert.InDelta(t, 0, out.RightLid, 1e-3)

	req = s.update(2.3, &out)
	assert.False(t, req.toIdle)
	assert.Equal(t, float32(0), out.RightLid)
	assertQuatNear(t, tilted, out.HeadOrientation)

	req = s.update(2.6, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(winkBlendOut), req.blendOut)
	assert.Equal(t, float32(1), out.RightLid)
	assert.Equal(t, q0, out.HeadOrientation, "entry orientation is restored exactly")
	assert.Equal(t, GlyphEyeOpen, out.RightEyeGlyph)
}

func TestTimedBlinkState(t *testing.T) {
	start := expressivePose()
	q := start.HeadOrientation

	var s timedBlinkState
	s.enter(&start)

	out := start
	s.update(0.05, &out)
	assert.Less(t, out.LeftLid, float32(1))
	assert.Greater(t, out.LeftLid, float32(0.5), "closing is eased in")
	assert.Equal(t, float32(0), out.MouthCurve, "expression is reset")
	assert.Equal(t, q, out.HeadOrientation)

	s.update(0.14, &out)
	assert.Equal(t, float32(0), out.LeftLid)
	assert.Equal(t, float32(0), out.RightLid)

	req := s.update(emoteBlinkTiming.total(), &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(0), req.blendOut)
	assert.Equal(t, float32(1), out.LeftLid)
}

func TestSleepState_Phases(t *testing.T) {
	start := NeutralPose()

	var s sleepState
	s.enter(&start)
	out := start

	s.update(sleepEnterDuration/2, &out)
	assert.Equal(t, SleepEntering, s.phase)
	assert.Equal(t, float32(0), out.LeftLid, "lids close over the first half of entering")

	s.update(sleepEnterDuration+1, &out)
	assert.Equal(t, SleepSleeping, s.phase)
	assert.Equal(t, float32(0), out.LeftLid)

	for _, tm := range []float32{5, 50, 500} {
		req := s.update(tm, &out)
		assert.False(t, req.toIdle, "sleep never ends on its own")
	}
}

func TestSleepState_WakeInterruptsEntering(t *testing.T) {
	start := NeutralPose()

	var s sleepState
	s.enter(&start)
	out := start

	s.update(0.5, &out)
	require.Equal(t, SleepEntering, s.phase)
	wakeFrom := out.HeadOrientation
	wakeLid := out.LeftLid
	require.Greater(t, wakeLid, float32(0))

	assert.True(t, s.wake())
	assert.Equal(t, SleepExiting, s.phase)
	assert.False(t, s.wake(), "wake is ignored while exiting")

	// The exit timer starts at the wake, not at sleep entry.
	req := s.update(0.5+0.1, &out)
	assert.False(t, req.toIdle)
	assertQuatNear(t, slerp(wakeFrom, mgl32.QuatIdent(), easeInOutQuad(0.1/sleepExitDuration)), out.HeadOrientation)
	assert.Equal(t, wakeLid, out.LeftLid, "lids hold until 30% into the exit")

	req = s.update(0.5+0.9, &out)
	assert.False(t, req.toIdle)
	assert.Greater(t, out.LeftLid, wakeLid)

	req = s.update(0.5+sleepExitDuration-0.01, &out)
	assert.False(t, req.toIdle)

	req = s.update(0.5+sleepExitDuration, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(sleepBlendOut), req.blendOut)
	assert.Equal(t, mgl32.QuatIdent(), out.HeadOrientation)
	assert.Equal(t, float32(1), out.LeftLid)
}

func TestSleepState_EarlyWakeReopensFromCurrentLid(t *testing.T) {
	start := NeutralPose()

	var s sleepState
	s.enter(&start)
	out := start

	s.update(0.05, &out)
	wakeLid := out.LeftLid
	require.Greater(t, wakeLid, float32(0.95), "lids barely started closing")
	require.True(t, s.wake())

	for _, dt := range []float32{0.02, 0.2, 0.35} {
		s.update(0.05+dt, &out)
		assert.Equal(t, wakeLid, out.LeftLid, "no snap shut at %gs", dt)
	}
	s.update(0.05+0.8, &out)
	assert.Greater(t, out.LeftLid, wakeLid)
	assert.LessOrEqual(t, out.LeftLid, float32(1))

	req := s.update(0.05+sleepExitDuration, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(1), out.LeftLid)
}

func TestSleepState_SleepingWakeStartsClosed(t *testing.T) {
	start := NeutralPose()

	var s sleepState
	s.enter(&start)
	out := start

	s.update(sleepEnterDuration+2, &out)
	require.Equal(t, SleepSleeping, s.phase)
	require.True(t, s.wake())

	s.update(sleepEnterDuration+2+0.1, &out)
	assert.Equal(t, float32(0), out.LeftLid, "lids stay shut until 30% into the exit")
}

func TestExpressionState(t *testing.T) {
	start := NeutralPose()
	want, ok := LookupExpression("love")
	require.True(t, ok)

	var s expressionState
	s.load("love")
	s.enter(&start)
	out := start

	s.update(expressionShowAt/2, &out)
	assert.Equal(t, GlyphEyeOpen, out.LeftEyeGlyph)

	s.update(expressionShowAt+0.01, &out)
	assert.Equal(t, want.LeftEye, out.LeftEyeGlyph)
	assert.Equal(t, want.Mouth, out.MouthGlyph)

	s.update(expressionBlendIn+expressionHold, &out)
	assert.Equal(t, want.RightEye, out.RightEyeGlyph)

	s.update(expressionHideAt+0.01, &out)
	assert.Equal(t, GlyphMouthDefault, out.MouthGlyph)

	req := s.update(expressionDuration, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(expressionExitBlend), req.blendOut)
}

func TestExpressionState_UnknownIsNoOp(t *testing.T) {
	var s expressionState
	s.load("grumpy")

	out := NeutralPose()
	req := s.update(0, &out)
	assert.True(t, req.toIdle)
	assert.Equal(t, float32(0), req.blendOut)
}

func TestIdleState_NeverLeaves(t *testing.T) {
	s := newIdleState(rand.New(rand.NewSource(1)))
	out := NeutralPose()
	for tm := float32(0); tm < 30; tm += 0.5 {
		req := s.update(tm, &out)
		assert.False(t, req.toIdle)
	}
	assert.InDelta(t, 1, out.HeadOrientation.Len(), 1e-5)
	assert.Equal(t, float32(0.15), out.MouthCurve)
}

func TestStates_IdleRunsOnClock(t *testing.T) {
	s := states{idle: newIdleState(rand.New(rand.NewSource(1)))}

	var a, b Pose
	s.update(StateIdle, 0.5, 3, &a)
	s.update(StateIdle, 0.5, 9, &b)
	assert.NotEqual(t, a.HeadOrientation, b.HeadOrientation, "same time in state, different session time")

	var c Pose
	s.update(StateIdle, 7, 3, &c)
	assert.Equal(t, a.HeadOrientation, c.HeadOrientation, "time in state is ignored")
}

func TestStateKind_ControlsEyes(t *testing.T) {
	assert.False(t, StateIdle.ControlsEyes())
	assert.False(t, StateGesture.ControlsEyes())
	for _, k := range []StateKind{StateWink, StateBlink, StateSleep, StateExpression} {
		assert.True(t, k.ControlsEyes(), k.String())
	}
}
