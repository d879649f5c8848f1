package avatar3d

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	axisPitch   = mgl32.Vec3{1, 0, 0}
	axisYaw     = mgl32.Vec3{0, 1, 0}
	axisForward = mgl32.Vec3{0, 0, 1}
)

// wave is one slow sinusoid term of the idle motion.
type wave struct {
	amplitude float32
	frequency float32 // Hz
	phase     float32
}

func (w wave) at(t float32) float32 {
	return w.amplitude * float32(math.Sin(float64(2*math.Pi*w.frequency*t+w.phase)))
}

func sumWaves(ws []wave, t float32) float32 {
	var v float32
	for _, w := range ws {
		v += w.at(t)
	}
	return v
}

// idleState is the resting behavior: a sum of slow sinusoids on each head
// axis plus pupil drift, under a fixed content expression. Lids rest open;
// blinking is left to the overlay. Idle never asks to leave.
// The waves run on session time, so the motion continues across re-entries.
type idleState struct {
	pitch [2]wave
	yaw   [2]wave
	roll  [2]wave

	saccadeX [2]wave
	saccadeY [2]wave
}

func newIdleState(rng *rand.Rand) idleState {
	phase := func() float32 { return rng.Float32() * 2 * math.Pi }
	jitter := func(f float32) float32 { return f * (0.85 + rng.Float32()*0.3) }

	return idleState{
		pitch: [2]wave{
			{amplitude: 0.035, frequency: jitter(0.23), phase: phase()},
			{amplitude: 0.012, frequency: jitter(0.61), phase: phase()},
		},
		yaw: [2]wave{
			{amplitude: 0.05, frequency: jitter(0.13), phase: phase()},
			{amplitude: 0.015, frequency: jitter(0.41), phase: phase()},
		},
		roll: [2]wave{
			{amplitude: 0.02, frequency: jitter(0.17), phase: phase()},
			{amplitude: 0.008, frequency: jitter(0.53), phase: phase()},
		},
		saccadeX: [2]wave{
			{amplitude: 0.04, frequency: jitter(0.31), phase: phase()},
			{amplitude: 0.015, frequency: jitter(1.7), phase: phase()},
		},
		saccadeY: [2]wave{
			{amplitude: 0.02, frequency: jitter(0.27), phase: phase()},
			{amplitude: 0.01, frequency: jitter(1.3), phase: phase()},
		},
	}
}

func (s *idleState) enter(*Pose) {}

func (s *idleState) update(clock float32, out *Pose) request {
	yaw := mgl32.QuatRotate(sumWaves(s.yaw[:], clock), axisYaw)
	pitch := mgl32.QuatRotate(sumWaves(s.pitch[:], clock), axisPitch)
	roll := mgl32.QuatRotate(sumWaves(s.roll[:], clock), axisForward)
	out.HeadOrientation = yaw.Mul(pitch).Mul(roll)

	out.SetLids(1)
	applyContent(out)

	drift := mgl32.Vec2{sumWaves(s.saccadeX[:], clock), sumWaves(s.saccadeY[:], clock)}
	out.PupilOffsetLeft = drift
	out.PupilOffsetRight = drift

	return request{}
}

// applyContent writes the gentle resting expression: slight smile and
// lightly raised brows.
func applyContent(p *Pose) {
	p.ResetExpression()
	p.MouthCurve = 0.15
	p.BrowHeightLeft = 0.08
	p.BrowHeightRight = 0.08
}
