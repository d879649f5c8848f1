package avatar3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	sleepEnterDuration = 1.5
	sleepExitDuration  = 1.2
	sleepLidReopenAt   = 0.3
	sleepBlendOut      = 0.3

	sleepDroopPitch = 0.35
	sleepDroopRoll  = 0.12

	sleepBreathAmplitude = 0.03
	sleepBreathFrequency = 0.25
)

// SleepPhase is the sub-phase of the sleep state.
type SleepPhase int

const (
	SleepEntering SleepPhase = iota
	SleepSleeping
	SleepExiting
)

func (p SleepPhase) String() string {
	switch p {
	case SleepSleeping:
		return "sleeping"
	case SleepExiting:
		return "exiting"
	default:
		return "entering"
	}
}

var sleepDroop = mgl32.QuatRotate(sleepDroopPitch, axisPitch).Mul(mgl32.QuatRotate(sleepDroopRoll, axisForward))

// sleepState droops the head and closes the eyes until woken. Unlike the
// other emotes it does not end on its own: wake starts the exit phase.
type sleepState struct {
	phase      SleepPhase
	phaseStart float32
	last       float32

	start      mgl32.Quat
	wakeFrom   mgl32.Quat
	lastOrient mgl32.Quat

	wakeLid float32
	lastLid float32
}

func (s *sleepState) enter(current *Pose) {
	s.phase = SleepEntering
	s.phaseStart = 0
	s.last = 0
	s.start = current.HeadOrientation
	s.lastOrient = current.HeadOrientation
	s.lastLid = current.LeftLid
}

func (s *sleepState) exit() {
	s.phase = SleepEntering
}

// wake switches to the exit phase with a fresh phase timer. The lids hold
// where they were and reopen from there. It reports false when the state is
// already exiting.
func (s *sleepState) wake() bool {
	if s.phase == SleepExiting {
		return false
	}
	s.phase = SleepExiting
	s.phaseStart = s.last
	s.wakeFrom = s.lastOrient
	s.wakeLid = s.lastLid
	return true
}

func (s *sleepState) update(elapsed float32, out *Pose) request {
	s.last = elapsed
	t := elapsed - s.phaseStart

	out.ResetExpression()
	out.MouthGlyph = GlyphMouthFlat
	out.BrowHeightLeft = -0.05
	out.BrowHeightRight = -0.05

	if s.phase == SleepEntering && t >= sleepEnterDuration {
		s.phase = SleepSleeping
		s.phaseStart = s.phaseStart + sleepEnterDuration
		t = elapsed - s.phaseStart
	}

	switch s.phase {
	case SleepEntering:
		out.HeadOrientation = slerp(s.start, sleepDroop, easeInOutQuad(progress(t, 0, sleepEnterDuration)))
		out.SetLids(1 - easeInQuad(progress(t, 0, sleepEnterDuration/2)))

	case SleepSleeping:
		breath := sleepBreathAmplitude * float32(math.Sin(float64(2*math.Pi*sleepBreathFrequency*t)))
		out.HeadOrientation = sleepDroop.Mul(mgl32.QuatRotate(breath, axisPitch))
		out.SetLids(0)

	case SleepExiting:
		if t >= sleepExitDuration {
			out.HeadOrientation = mgl32.QuatIdent()
			out.SetLids(1)
			s.lastOrient = out.HeadOrientation
			s.lastLid = 1
			return toIdle(sleepBlendOut)
		}
		out.HeadOrientation = slerp(s.wakeFrom, mgl32.QuatIdent(), easeInOutQuad(progress(t, 0, sleepExitDuration)))
		reopen := float32(sleepExitDuration * sleepLidReopenAt)
		open := easeOutQuad(progress(t, reopen, sleepExitDuration-reopen))
		out.SetLids(s.wakeLid + (1-s.wakeLid)*open)
	}

	s.lastOrient = out.HeadOrientation
	s.lastLid = out.LeftLid
	return request{}
}
