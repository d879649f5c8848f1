package avatar3d

import "github.com/go-gl/mathgl/mgl32"

var emoteBlinkTiming = blinkTiming{close: 0.1, hold: 0.08, open: 0.15}

// timedBlinkState is the deliberate blink emote. The head holds still and
// ends with the lids at rest, so it leaves with a hard cut.
type timedBlinkState struct {
	orientation mgl32.Quat
}

func (s *timedBlinkState) enter(current *Pose) {
	s.orientation = current.HeadOrientation
}

func (s *timedBlinkState) update(elapsed float32, out *Pose) request {
	out.ResetExpression()
	out.HeadOrientation = s.orientation

	if elapsed >= emoteBlinkTiming.total() {
		out.SetLids(1)
		return toIdle(0)
	}
	v, _ := emoteBlinkTiming.lid(elapsed)
	out.SetLids(v)
	return request{}
}
