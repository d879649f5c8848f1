package avatar3d

import "github.com/go-gl/mathgl/mgl32"

const (
	winkDuration  = 2.6
	winkTiltIn    = 0.3
	winkHoldEnd   = 2.3
	winkLidClose  = 0.08
	winkLidReopen = 2.4
	winkTiltAngle = 0.2
	winkBlendOut  = 0.2
)

// winkState tilts the head about its own forward axis and closes the right
// eye. The tilt and lid timelines run independently over the same duration.
type winkState struct {
	start  mgl32.Quat
	target mgl32.Quat
}

func (s *winkState) enter(current *Pose) {
	s.start = current.HeadOrientation
	s.target = s.start.Mul(mgl32.QuatRotate(winkTiltAngle, axisForward))
}

func (s *winkState) update(elapsed float32, out *Pose) request {
	out.ResetExpression()
	out.LeftLid = 1

	if elapsed >= winkDuration {
		out.HeadOrientation = s.start
		out.RightLid = 1
		return toIdle(winkBlendOut)
	}

	switch {
	case elapsed < winkTiltIn:
		out.HeadOrientation = slerp(s.start, s.target, easeInOutQuad(progress(elapsed, 0, winkTiltIn)))
	case elapsed < winkHoldEnd:
		out.HeadOrientation = s.target
	default:
		out.HeadOrientation = slerp(s.target, s.start, easeInOutQuad(progress(elapsed, winkHoldEnd, winkDuration-winkHoldEnd)))
	}

	switch {
	case elapsed < winkLidClose:
		out.RightLid = 1 - easeInQuad(progress(elapsed, 0, winkLidClose))
	case elapsed < winkLidReopen:
		out.RightLid = 0
	default:
		out.RightLid = easeOutQuad(progress(elapsed, winkLidReopen, winkDuration-winkLidReopen))
	}

	out.MouthCurve = 0.3
	out.MouthGlyph = GlyphMouthSmile
	return request{}
}
