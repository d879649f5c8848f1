package avatar3d

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	expressionBlendIn  = 0.3
	expressionHold     = 1.4
	expressionBlendOut = 0.3
	expressionDuration = expressionBlendIn + expressionHold + expressionBlendOut

	// Glyphs swap in 30% into the blend-in and back 70% into the blend-out.
	expressionShowAt = expressionBlendIn * 0.3
	expressionHideAt = expressionBlendIn + expressionHold + expressionBlendOut*0.7

	expressionExitBlend = 0.2
)

// GlyphSet is the three glyphs a named expression puts on the face.
type GlyphSet struct {
	LeftEye  Glyph
	RightEye Glyph
	Mouth    Glyph
}

var expressions = map[string]GlyphSet{
	"happy":      {GlyphEyeHappy, GlyphEyeHappy, GlyphMouthSmile},
	"love":       {GlyphEyeHeart, GlyphEyeHeart, GlyphMouthSmile},
	"starstruck": {GlyphEyeStar, GlyphEyeStar, GlyphMouthOpen},
	"dizzy":      {GlyphEyeSpiral, GlyphEyeSpiral, GlyphMouthWavy},
	"dead":       {GlyphEyeCross, GlyphEyeCross, GlyphMouthFlat},
	"surprised":  {GlyphEyeWide, GlyphEyeWide, GlyphMouthOpen},
	"cry":        {GlyphEyeTear, GlyphEyeTear, GlyphMouthFrown},
	"smug":       {GlyphEyeSmug, GlyphEyeSmug, GlyphMouthCat},
	"cat":        {GlyphEyeHappy, GlyphEyeHappy, GlyphMouthCat},
	"playful":    {GlyphEyeOpen, GlyphEyeHappy, GlyphMouthTongue},
	"annoyed":    {GlyphEyeSmug, GlyphEyeSmug, GlyphMouthFlat},
}

// LookupExpression returns the glyph set for a named expression.
func LookupExpression(name string) (GlyphSet, bool) {
	g, ok := expressions[name]
	return g, ok
}

// ExpressionNames lists the named-expression vocabulary in sorted order.
func ExpressionNames() []string {
	names := make([]string, 0, len(expressions))
	for name := range expressions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expressionState swaps the face glyphs for a named set while the head
// holds still.
type expressionState struct {
	name        string
	glyphs      GlyphSet
	known       bool
	orientation mgl32.Quat
}

// load selects the expression for the next enter.
func (s *expressionState) load(name string) {
	s.name = name
	s.glyphs, s.known = LookupExpression(name)
}

func (s *expressionState) enter(current *Pose) {
	s.orientation = current.HeadOrientation
}

func (s *expressionState) update(elapsed float32, out *Pose) request {
	if !s.known {
		return toIdle(0)
	}

	out.ResetExpression()
	out.HeadOrientation = s.orientation
	out.SetLids(1)

	if elapsed >= expressionDuration {
		return toIdle(expressionExitBlend)
	}
	if elapsed >= expressionShowAt && elapsed < expressionHideAt {
		out.SetGlyphs(s.glyphs.LeftEye, s.glyphs.RightEye, s.glyphs.Mouth)
	}
	return request{}
}
