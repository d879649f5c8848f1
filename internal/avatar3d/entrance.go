package avatar3d

import "github.com/charmbracelet/harmonica"

const (
	entranceStepFPS   = 120
	entranceFrequency = 9.0
	entranceDamping   = 0.55
)

// Entrance is the one-shot scale-up played before anything else animates.
// The scale follows an underdamped spring toward 1 and is pinned to exactly
// 1 once the duration has passed.
type Entrance struct {
	spring   harmonica.Spring
	step     float32
	duration float32

	elapsed float32
	acc     float32
	scale   float64
	vel     float64
	done    bool
}

func NewEntrance(duration float32) *Entrance {
	e := &Entrance{
		spring:   harmonica.NewSpring(harmonica.FPS(entranceStepFPS), entranceFrequency, entranceDamping),
		step:     1.0 / entranceStepFPS,
		duration: duration,
	}
	if duration <= 0 {
		e.done = true
		e.scale = 1
	}
	return e
}

// Done reports whether the entrance has finished.
func (e *Entrance) Done() bool {
	return e.done
}

// Scale is the current root scale.
func (e *Entrance) Scale() float32 {
	return float32(e.scale)
}

// Advance steps the spring by dt and returns the new scale.
func (e *Entrance) Advance(dt float32) float32 {
	if e.done {
		return 1
	}
	e.elapsed += dt
	if e.elapsed >= e.duration {
		e.done = true
		e.scale, e.vel = 1, 0
		return 1
	}

	e.acc += dt
	for e.acc >= e.step {
		e.scale, e.vel = e.spring.Update(e.scale, e.vel, 1)
		e.acc -= e.step
	}
	return float32(e.scale)
}
