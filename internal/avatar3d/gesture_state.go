package avatar3d

import "github.com/normanking/streamavatar/internal/gesture"

const gestureBlendOut = 0.3

// gestureState plays a recorded head-orientation track. The expression for
// the gesture's kind is held for the whole clip; only orientation moves.
type gestureState struct {
	name string
	kind GestureKind
	rec  *gesture.Recording

	nextName string
	next     *gesture.Recording
}

// load stages the clip for the next enter. The playing clip, if any, is
// untouched until then.
func (s *gestureState) load(name string, rec *gesture.Recording) {
	s.nextName = name
	s.next = rec
}

func (s *gestureState) enter(*Pose) {
	s.name = s.nextName
	s.kind = GestureKindFor(s.name)
	s.rec = s.next
	s.next = nil
}

func (s *gestureState) exit() {
	s.rec = nil
}

func (s *gestureState) update(elapsed float32, out *Pose) request {
	if s.rec.Empty() {
		return toIdle(gestureBlendOut)
	}

	// Lids rest open; blinking is left to the overlay.
	out.SetLids(1)
	applyGestureExpression(out, s.kind)

	samples := s.rec.Samples
	if elapsed > s.rec.Duration {
		out.HeadOrientation = samples[len(samples)-1].Q
		return toIdle(gestureBlendOut)
	}

	lo, hi, frac := s.rec.Bracket(elapsed)
	out.HeadOrientation = slerp(samples[lo].Q, samples[hi].Q, frac)
	return request{}
}
