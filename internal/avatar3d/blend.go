package avatar3d

func easeInQuad(t float32) float32 {
	return t * t
}

func easeOutQuad(t float32) float32 {
	return t * (2 - t)
}

func easeInOutQuad(t float32) float32 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// progress maps elapsed time within [start, start+duration] onto [0,1].
func progress(elapsed, start, duration float32) float32 {
	if duration <= 0 {
		if elapsed >= start {
			return 1
		}
		return 0
	}
	return clamp((elapsed-start)/duration, 0, 1)
}

// Crossfade blends the pose frozen at a transition into the live output of
// the newly entered state. It holds no poses itself; the controller owns
// the buffers.
type Crossfade struct {
	active   bool
	elapsed  float32
	duration float32
}

// Start arms a crossfade of the given duration. A non-positive duration
// leaves the crossfade idle, which the controller treats as a hard cut.
func (c *Crossfade) Start(duration float32) {
	if duration <= 0 {
		c.Stop()
		return
	}
	c.active = true
	c.elapsed = 0
	c.duration = duration
}

// Stop ends any crossfade in progress.
func (c *Crossfade) Stop() {
	c.active = false
	c.elapsed = 0
	c.duration = 0
}

// Active reports whether a crossfade is in progress.
func (c *Crossfade) Active() bool {
	return c.active
}

// Apply advances the crossfade by dt and writes the composited pose into
// out. Once the duration has elapsed the crossfade ends and out becomes the
// live pose verbatim.
func (c *Crossfade) Apply(dt float32, out, frozen, live *Pose) {
	if !c.active {
		*out = *live
		return
	}
	c.elapsed += dt
	if c.elapsed >= c.duration {
		c.Stop()
		*out = *live
		return
	}
	LerpPose(out, frozen, live, easeOutQuad(c.elapsed/c.duration))
}
