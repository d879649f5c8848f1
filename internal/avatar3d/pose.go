package avatar3d

import "github.com/go-gl/mathgl/mgl32"

// Glyph is one symbol of the face vocabulary drawn on an eye or mouth surface.
type Glyph string

const (
	GlyphEyeOpen   Glyph = "●"
	GlyphEyeClosed Glyph = "─"
	GlyphEyeHappy  Glyph = "^"
	GlyphEyeHeart  Glyph = "♥"
	GlyphEyeStar   Glyph = "★"
	GlyphEyeCross  Glyph = "×"
	GlyphEyeWide   Glyph = "◉"
	GlyphEyeTear   Glyph = "T"
	GlyphEyeSmug   Glyph = "¬"
	GlyphEyeSpiral Glyph = "@"

	GlyphMouthDefault Glyph = "‿"
	GlyphMouthOpen    Glyph = "o"
	GlyphMouthSmile   Glyph = "▽"
	GlyphMouthFrown   Glyph = "︵"
	GlyphMouthFlat    Glyph = "_"
	GlyphMouthCat     Glyph = "ω"
	GlyphMouthTongue  Glyph = "P"
	GlyphMouthWavy    Glyph = "~"
)

// Pose is one instant of head and face state. It is a plain value: the
// controller copies and interpolates it every frame and never shares one by
// reference across frames.
type Pose struct {
	HeadOrientation mgl32.Quat

	LeftLid  float32 // 1 = fully open
	RightLid float32

	LeftEyeGlyph  Glyph
	RightEyeGlyph Glyph
	MouthGlyph    Glyph

	BrowAngleLeft   float32
	BrowAngleRight  float32
	BrowHeightLeft  float32
	BrowHeightRight float32

	MouthCurve float32
	MouthOpen  float32
	MouthWidth float32

	PupilOffsetLeft  mgl32.Vec2
	PupilOffsetRight mgl32.Vec2
	PupilScaleLeft   float32
	PupilScaleRight  float32
}

// NeutralPose returns the rest pose: identity orientation, open lids,
// default glyphs and neutral expression.
func NeutralPose() Pose {
	p := Pose{
		HeadOrientation: mgl32.QuatIdent(),
		LeftLid:         1,
		RightLid:        1,
	}
	p.ResetExpression()
	return p
}

// ResetExpression restores glyphs and every secondary expression field to
// neutral. Orientation and lids are left alone.
func (p *Pose) ResetExpression() {
	p.LeftEyeGlyph = GlyphEyeOpen
	p.RightEyeGlyph = GlyphEyeOpen
	p.MouthGlyph = GlyphMouthDefault

	p.BrowAngleLeft = 0
	p.BrowAngleRight = 0
	p.BrowHeightLeft = 0
	p.BrowHeightRight = 0

	p.MouthCurve = 0
	p.MouthOpen = 0
	p.MouthWidth = 1

	p.PupilOffsetLeft = mgl32.Vec2{}
	p.PupilOffsetRight = mgl32.Vec2{}
	p.PupilScaleLeft = 1
	p.PupilScaleRight = 1
}

// SetLids sets both eyelids to the same openness.
func (p *Pose) SetLids(v float32) {
	p.LeftLid = v
	p.RightLid = v
}

// SetGlyphs sets the eye and mouth glyph triple.
func (p *Pose) SetGlyphs(left, right, mouth Glyph) {
	p.LeftEyeGlyph = left
	p.RightEyeGlyph = right
	p.MouthGlyph = mouth
}

// LerpPose writes the interpolation of a and b at t into out. Scalars and
// vectors are linear, orientation is spherical, and glyphs snap from a to b
// once t passes the midpoint. out may alias a or b.
func LerpPose(out, a, b *Pose, t float32) {
	if t <= 0 {
		*out = *a
		return
	}
	if t >= 1 {
		*out = *b
		return
	}

	var glyphs [3]Glyph
	if t > 0.5 {
		glyphs = [3]Glyph{b.LeftEyeGlyph, b.RightEyeGlyph, b.MouthGlyph}
	} else {
		glyphs = [3]Glyph{a.LeftEyeGlyph, a.RightEyeGlyph, a.MouthGlyph}
	}

	out.HeadOrientation = slerp(a.HeadOrientation, b.HeadOrientation, t)

	out.LeftLid = lerp(a.LeftLid, b.LeftLid, t)
	out.RightLid = lerp(a.RightLid, b.RightLid, t)

	out.BrowAngleLeft = lerp(a.BrowAngleLeft, b.BrowAngleLeft, t)
	out.BrowAngleRight = lerp(a.BrowAngleRight, b.BrowAngleRight, t)
	out.BrowHeightLeft = lerp(a.BrowHeightLeft, b.BrowHeightLeft, t)
	out.BrowHeightRight = lerp(a.BrowHeightRight, b.BrowHeightRight, t)

	out.MouthCurve = lerp(a.MouthCurve, b.MouthCurve, t)
	out.MouthOpen = lerp(a.MouthOpen, b.MouthOpen, t)
	out.MouthWidth = lerp(a.MouthWidth, b.MouthWidth, t)

	out.PupilOffsetLeft = lerpVec2(a.PupilOffsetLeft, b.PupilOffsetLeft, t)
	out.PupilOffsetRight = lerpVec2(a.PupilOffsetRight, b.PupilOffsetRight, t)
	out.PupilScaleLeft = lerp(a.PupilScaleLeft, b.PupilScaleLeft, t)
	out.PupilScaleRight = lerp(a.PupilScaleRight, b.PupilScaleRight, t)

	out.LeftEyeGlyph, out.RightEyeGlyph, out.MouthGlyph = glyphs[0], glyphs[1], glyphs[2]
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func lerpVec2(a, b mgl32.Vec2, t float32) mgl32.Vec2 {
	return mgl32.Vec2{lerp(a[0], b[0], t), lerp(a[1], b[1], t)}
}

// slerp interpolates along the shorter arc. The endpoints are returned
// untouched so that t=0 and t=1 are exact.
func slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, t)
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
