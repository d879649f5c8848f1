package avatar3d

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// GestureKind selects the static expression held during gesture playback.
type GestureKind int

const (
	GestureNeutral GestureKind = iota
	GestureAffirmative
	GestureNegative
	GestureUncertain
)

func (k GestureKind) String() string {
	switch k {
	case GestureAffirmative:
		return "affirmative"
	case GestureNegative:
		return "negative"
	case GestureUncertain:
		return "uncertain"
	default:
		return "neutral"
	}
}

var gestureKinds = map[string]GestureKind{
	"nod":      GestureAffirmative,
	"yes":      GestureAffirmative,
	"agree":    GestureAffirmative,
	"shake":    GestureNegative,
	"no":       GestureNegative,
	"disagree": GestureNegative,
	"shrug":    GestureUncertain,
	"tilt":     GestureUncertain,
	"maybe":    GestureUncertain,
	"think":    GestureUncertain,
}

// GestureKindFor maps a gesture name to its kind. Unknown names are neutral.
func GestureKindFor(name string) GestureKind {
	return gestureKinds[strings.ToLower(name)]
}

// applyGestureExpression writes the preset for kind over the secondary
// expression fields of p.
func applyGestureExpression(p *Pose, kind GestureKind) {
	p.ResetExpression()

	switch kind {
	case GestureAffirmative:
		p.BrowHeightLeft = 0.2
		p.BrowHeightRight = 0.2
		p.MouthCurve = 0.35
		p.MouthWidth = 1.1
		p.PupilScaleLeft = 1.05
		p.PupilScaleRight = 1.05

	case GestureNegative:
		p.BrowAngleLeft = -0.2
		p.BrowAngleRight = 0.2
		p.BrowHeightLeft = -0.05
		p.BrowHeightRight = -0.05
		p.MouthCurve = -0.25
		p.MouthWidth = 0.9
		p.PupilScaleLeft = 0.95
		p.PupilScaleRight = 0.95

	case GestureUncertain:
		p.BrowAngleLeft = 0.1
		p.BrowHeightLeft = 0.25
		p.BrowHeightRight = -0.05
		p.MouthCurve = -0.05
		p.MouthWidth = 0.85
		p.PupilOffsetLeft = mgl32.Vec2{0.1, 0.15}
		p.PupilOffsetRight = mgl32.Vec2{0.1, 0.15}
	}
}
