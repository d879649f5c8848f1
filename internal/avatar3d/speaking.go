package avatar3d

import (
	"math"
	"time"
)

// SpeakingOverlay flaps the mouth while the host reports speech. It samples
// the wall clock rather than state time so the rhythm carries across
// transitions unbroken.
type SpeakingOverlay struct {
	hz  float64
	now func() time.Time
}

func NewSpeakingOverlay(hz float64, now func() time.Time) *SpeakingOverlay {
	if now == nil {
		now = time.Now
	}
	return &SpeakingOverlay{hz: hz, now: now}
}

// Apply replaces the mouth glyph with an alternation between the open and
// default glyphs.
func (s *SpeakingOverlay) Apply(p *Pose) {
	secs := float64(s.now().UnixNano()) / float64(time.Second)
	wave := math.Sin(2 * math.Pi * s.hz * secs)

	if wave > 0 {
		p.MouthGlyph = GlyphMouthOpen
		p.MouthOpen = float32(wave)
		return
	}
	p.MouthGlyph = GlyphMouthDefault
	p.MouthOpen = 0
}
