// Package gesture loads and caches pre-recorded head-orientation tracks.
package gesture

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tidwall/gjson"
)

var (
	ErrNotFound  = errors.New("gesture not found")
	ErrMalformed = errors.New("malformed gesture recording")
	ErrUnordered = errors.New("gesture samples are not time ordered")
)

// Sample is one timestamped head orientation.
type Sample struct {
	T float32
	Q mgl32.Quat
}

// Recording is an immutable keyframe track. Samples are ordered by time and
// Duration is the time of the last sample.
type Recording struct {
	ID       string
	Label    string
	Samples  []Sample
	Duration float32
}

// Empty reports whether there is nothing to play.
func (r *Recording) Empty() bool {
	return r == nil || len(r.Samples) == 0
}

// Bracket locates the two samples surrounding t by binary search and the
// fraction of the way from lo to hi. Times before the first sample or after
// the last collapse onto that sample. A zero-length span yields fraction 0.
func (r *Recording) Bracket(t float32) (lo, hi int, frac float32) {
	n := len(r.Samples)
	if n == 0 {
		return 0, 0, 0
	}
	if n == 1 || t <= r.Samples[0].T {
		return 0, 0, 0
	}
	if t >= r.Samples[n-1].T {
		return n - 1, n - 1, 0
	}

	lo, hi = 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if r.Samples[mid].T <= t {
			lo = mid
		} else {
			hi = mid
		}
	}

	span := r.Samples[hi].T - r.Samples[lo].T
	if span <= 0 {
		return lo, hi, 0
	}
	frac = (t - r.Samples[lo].T) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return lo, hi, frac
}

// newRecording validates ordering and normalizes every quaternion.
func newRecording(id, label string, samples []Sample) (*Recording, error) {
	for i := range samples {
		if samples[i].Q.Len() == 0 {
			return nil, fmt.Errorf("%w: sample %d has a zero quaternion", ErrMalformed, i)
		}
		samples[i].Q = samples[i].Q.Normalize()
		if i > 0 && samples[i].T < samples[i-1].T {
			return nil, fmt.Errorf("%w: sample %d at t=%g precedes t=%g", ErrUnordered, i, samples[i].T, samples[i-1].T)
		}
	}

	rec := &Recording{ID: id, Label: label, Samples: samples}
	if len(samples) > 0 {
		rec.Duration = samples[len(samples)-1].T
	}
	return rec, nil
}

// ParseRecording decodes the JSON track format
// {id, label, duration, samples:[{t,x,y,z,w}]}. The duration field is
// informational; the recording's duration is derived from its last sample.
func ParseRecording(data []byte) (*Recording, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformed)
	}

	raw := doc.Get("samples")
	if !raw.Exists() || !raw.IsArray() {
		return nil, fmt.Errorf("%w: missing samples array", ErrMalformed)
	}

	items := raw.Array()
	samples := make([]Sample, 0, len(items))
	for i, item := range items {
		for _, field := range [...]string{"t", "x", "y", "z", "w"} {
			if item.Get(field).Type != gjson.Number {
				return nil, fmt.Errorf("%w: sample %d field %q is not a number", ErrMalformed, i, field)
			}
		}
		samples = append(samples, Sample{
			T: float32(item.Get("t").Float()),
			Q: mgl32.Quat{
				W: float32(item.Get("w").Float()),
				V: mgl32.Vec3{
					float32(item.Get("x").Float()),
					float32(item.Get("y").Float()),
					float32(item.Get("z").Float()),
				},
			},
		})
	}

	return newRecording(doc.Get("id").String(), doc.Get("label").String(), samples)
}
