package avatar3d

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// GlyphSlot names one of the three text surfaces on the face.
type GlyphSlot int

const (
	SlotLeftEye GlyphSlot = iota
	SlotRightEye
	SlotMouth
)

func (s GlyphSlot) String() string {
	switch s {
	case SlotLeftEye:
		return "left_eye"
	case SlotRightEye:
		return "right_eye"
	default:
		return "mouth"
	}
}

// GlyphSurface is what a glyph surface shows this frame.
type GlyphSurface struct {
	Text   Glyph      `json:"text"`
	Roll   float32    `json:"roll"`
	Scale  float32    `json:"scale"`
	Offset mgl32.Vec2 `json:"offset"`
}

// RenderTarget receives the composited pose every frame. Implementations are
// called from the render loop only.
type RenderTarget interface {
	SetHeadRotation(q mgl32.Quat)
	SetGlyph(slot GlyphSlot, surface GlyphSurface)
	SetEntranceScale(scale float32)
}

// FrameCommitter is implemented by render targets that publish frames
// elsewhere. CommitFrame is called once after every write of a full frame.
type FrameCommitter interface {
	CommitFrame()
}

const lidClosedThreshold = 0.5

// writeTarget pushes p onto t. A lid below the threshold shows the closed
// glyph regardless of the pose's own eye glyph.
func writeTarget(t RenderTarget, p *Pose) {
	t.SetHeadRotation(p.HeadOrientation)

	left := p.LeftEyeGlyph
	if p.LeftLid < lidClosedThreshold {
		left = GlyphEyeClosed
	}
	right := p.RightEyeGlyph
	if p.RightLid < lidClosedThreshold {
		right = GlyphEyeClosed
	}

	t.SetGlyph(SlotLeftEye, GlyphSurface{
		Text:   left,
		Roll:   p.BrowAngleLeft,
		Scale:  p.PupilScaleLeft,
		Offset: p.PupilOffsetLeft,
	})
	t.SetGlyph(SlotRightEye, GlyphSurface{
		Text:   right,
		Roll:   p.BrowAngleRight,
		Scale:  p.PupilScaleRight,
		Offset: p.PupilOffsetRight,
	})
	t.SetGlyph(SlotMouth, GlyphSurface{
		Text:   p.MouthGlyph,
		Roll:   0,
		Scale:  p.MouthWidth,
		Offset: mgl32.Vec2{0, p.MouthCurve},
	})

	if c, ok := t.(FrameCommitter); ok {
		c.CommitFrame()
	}
}

// Frame is a snapshot of everything written to a render target.
type Frame struct {
	Head     mgl32.Quat   `json:"head"`
	LeftEye  GlyphSurface `json:"left_eye"`
	RightEye GlyphSurface `json:"right_eye"`
	Mouth    GlyphSurface `json:"mouth"`
	Scale    float32      `json:"scale"`
}

// FrameTarget records the latest values written to it. It is safe to read
// from other goroutines while the render loop writes.
type FrameTarget struct {
	mu    sync.RWMutex
	frame Frame
}

func NewFrameTarget() *FrameTarget {
	return &FrameTarget{frame: Frame{Head: mgl32.QuatIdent()}}
}

func (t *FrameTarget) SetHeadRotation(q mgl32.Quat) {
	t.mu.Lock()
	t.frame.Head = q
	t.mu.Unlock()
}

func (t *FrameTarget) SetGlyph(slot GlyphSlot, surface GlyphSurface) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch slot {
	case SlotLeftEye:
		t.frame.LeftEye = surface
	case SlotRightEye:
		t.frame.RightEye = surface
	case SlotMouth:
		t.frame.Mouth = surface
	}
}

func (t *FrameTarget) SetEntranceScale(scale float32) {
	t.mu.Lock()
	t.frame.Scale = scale
	t.mu.Unlock()
}

// Frame returns a copy of the latest frame.
func (t *FrameTarget) Frame() Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}
