package avatar3d

// StateKind enumerates the mutually exclusive animation behaviors.
type StateKind int

const (
	StateIdle StateKind = iota
	StateGesture
	StateWink
	StateBlink
	StateSleep
	StateExpression
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateGesture:    "gesture",
	StateWink:       "wink",
	StateBlink:      "blink",
	StateSleep:      "sleep",
	StateExpression: "expression",
}

func (k StateKind) String() string {
	if k < 0 || int(k) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[k]
}

// ControlsEyes reports whether the state animates eyelids itself. The idle
// blink overlay never runs while such a state is active.
func (k StateKind) ControlsEyes() bool {
	switch k {
	case StateWink, StateBlink, StateSleep, StateExpression:
		return true
	default:
		return false
	}
}

// IsEmote reports whether leaving the state counts as an emote completion.
func (k StateKind) IsEmote() bool {
	return k.ControlsEyes()
}

// request is what a state's update hands back to the controller. The only
// transition a state can ask for is back to idle.
type request struct {
	toIdle   bool
	blendOut float32
}

func toIdle(blendOut float32) request {
	return request{toIdle: true, blendOut: blendOut}
}

// states holds the long-lived instance of every state kind. Entering a state
// resets its timers in place; nothing is reconstructed.
type states struct {
	idle       idleState
	gesture    gestureState
	wink       winkState
	blink      timedBlinkState
	sleep      sleepState
	expression expressionState
}

func (s *states) enter(kind StateKind, current *Pose) {
	switch kind {
	case StateIdle:
		s.idle.enter(current)
	case StateGesture:
		s.gesture.enter(current)
	case StateWink:
		s.wink.enter(current)
	case StateBlink:
		s.blink.enter(current)
	case StateSleep:
		s.sleep.enter(current)
	case StateExpression:
		s.expression.enter(current)
	}
}

// update advances the active state. elapsed is time since the state was
// entered and clock is session time; idle runs on the clock.
func (s *states) update(kind StateKind, elapsed, clock float32, out *Pose) request {
	switch kind {
	case StateGesture:
		return s.gesture.update(elapsed, out)
	case StateWink:
		return s.wink.update(elapsed, out)
	case StateBlink:
		return s.blink.update(elapsed, out)
	case StateSleep:
		return s.sleep.update(elapsed, out)
	case StateExpression:
		return s.expression.update(elapsed, out)
	default:
		return s.idle.update(clock, out)
	}
}

func (s *states) exit(kind StateKind) {
	switch kind {
	case StateGesture:
		s.gesture.exit()
	case StateSleep:
		s.sleep.exit()
	}
}
