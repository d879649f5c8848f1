package avatar3d

import "math/rand"

// BlinkState is the phase of a three-phase blink.
type BlinkState int

const (
	BlinkStateOpen BlinkState = iota
	BlinkStateClosing
	BlinkStateClosed
	BlinkStateOpening
)

func (b BlinkState) String() string {
	switch b {
	case BlinkStateClosing:
		return "closing"
	case BlinkStateClosed:
		return "closed"
	case BlinkStateOpening:
		return "opening"
	default:
		return "open"
	}
}

// blinkTiming holds the phase lengths of one blink, in seconds.
type blinkTiming struct {
	close float32
	hold  float32
	open  float32
}

func (b blinkTiming) total() float32 {
	return b.close + b.hold + b.open
}

// lid returns the lid openness t seconds into the blink and the phase it is
// in. Closing accelerates shut, opening decelerates open.
func (b blinkTiming) lid(t float32) (float32, BlinkState) {
	switch {
	case t < 0:
		return 1, BlinkStateOpen
	case t < b.close:
		return 1 - easeInQuad(progress(t, 0, b.close)), BlinkStateClosing
	case t < b.close+b.hold:
		return 0, BlinkStateClosed
	case t < b.total():
		return easeOutQuad(progress(t, b.close+b.hold, b.open)), BlinkStateOpening
	default:
		return 1, BlinkStateOpen
	}
}

var idleBlinkTiming = blinkTiming{close: 0.06, hold: 0.04, open: 0.12}

// BlinkOverlay schedules spontaneous blinks while the active state leaves
// the eyelids alone. It runs on the session clock, so a blink in progress
// is not disturbed by state transitions.
type BlinkOverlay struct {
	rng         *rand.Rand
	minInterval float32
	maxInterval float32

	next     float32
	start    float32
	blinking bool
	state    BlinkState
}

func NewBlinkOverlay(rng *rand.Rand, minInterval, maxInterval float32) *BlinkOverlay {
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	b := &BlinkOverlay{
		rng:         rng,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
	b.schedule(0)
	return b
}

func (b *BlinkOverlay) schedule(now float32) {
	b.next = now + b.minInterval + b.rng.Float32()*(b.maxInterval-b.minInterval)
}

// State reports the phase of the blink in progress.
func (b *BlinkOverlay) State() BlinkState {
	return b.state
}

// Next is the session time the next blink is due.
func (b *BlinkOverlay) Next() float32 {
	return b.next
}

// Apply overrides both lids of p when a blink is due or in progress.
func (b *BlinkOverlay) Apply(now float32, p *Pose) {
	if !b.blinking {
		if now < b.next {
			return
		}
		b.blinking = true
		b.start = now
	}

	v, state := idleBlinkTiming.lid(now - b.start)
	b.state = state
	if now-b.start >= idleBlinkTiming.total() {
		b.blinking = false
		b.state = BlinkStateOpen
		p.SetLids(1)
		b.schedule(now)
		return
	}
	p.SetLids(v)
}

// Suppress abandons any blink in progress. It is called on frames where the
// active state owns the lids; an overdue blink is pushed out so it does not
// fire the instant the state hands the lids back.
func (b *BlinkOverlay) Suppress(now float32) {
	if b.blinking {
		b.blinking = false
		b.state = BlinkStateOpen
		b.schedule(now)
		return
	}
	if now >= b.next {
		b.schedule(now)
	}
}
