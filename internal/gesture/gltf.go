package gesture

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// GLTFSource reads gesture clips from the animations of one glTF document.
// The animation named after the gesture supplies the samples from its first
// rotation sampler (a VEC4 output accessor, float or normalized integer).
type GLTFSource struct {
	path string

	once sync.Once
	doc  *gltf.Document
	err  error
}

func NewGLTFSource(path string) *GLTFSource {
	return &GLTFSource{path: path}
}

func (s *GLTFSource) document() (*gltf.Document, error) {
	s.once.Do(func() {
		s.doc, s.err = gltf.Open(s.path)
		if s.err != nil {
			s.err = fmt.Errorf("open gltf %s: %w", s.path, s.err)
		}
	})
	return s.doc, s.err
}

func (s *GLTFSource) Load(ctx context.Context, name string) (*Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	return recordingFromDocument(doc, name)
}

// Names lists the animations in the document.
func (s *GLTFSource) Names() ([]string, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Animations))
	for _, anim := range doc.Animations {
		names = append(names, anim.Name)
	}
	return names, nil
}

func recordingFromDocument(doc *gltf.Document, name string) (*Recording, error) {
	var anim *gltf.Animation
	for _, a := range doc.Animations {
		if a.Name == name {
			anim = a
			break
		}
	}
	if anim == nil {
		return nil, ErrNotFound
	}

	for _, sampler := range anim.Samplers {
		if sampler.Input >= len(doc.Accessors) || sampler.Output >= len(doc.Accessors) {
			return nil, fmt.Errorf("%w: animation %q references a missing accessor", ErrMalformed, name)
		}
		out := doc.Accessors[sampler.Output]
		if out.Type != gltf.AccessorVec4 {
			continue
		}

		raw, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Input], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: animation %q input: %v", ErrMalformed, name, err)
		}
		times, ok := raw.([]float32)
		if !ok {
			return nil, fmt.Errorf("%w: animation %q input is %T, not float", ErrMalformed, name, raw)
		}

		raw, err = modeler.ReadAccessor(doc, out, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: animation %q output: %v", ErrMalformed, name, err)
		}
		quats, err := rotations(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: animation %q output: %v", ErrMalformed, name, err)
		}

		// Cubic spline outputs carry in-tangent, value, out-tangent per key.
		stride, offset := 1, 0
		if sampler.Interpolation == gltf.InterpolationCubicSpline {
			stride, offset = 3, 1
		}
		if len(quats) < len(times)*stride {
			return nil, fmt.Errorf("%w: animation %q has %d keys but %d values", ErrMalformed, name, len(times), len(quats))
		}

		samples := make([]Sample, len(times))
		for i, t := range times {
			q := quats[i*stride+offset]
			samples[i] = Sample{
				T: t,
				Q: mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}},
			}
		}
		return newRecording(name, anim.Name, samples)
	}

	return nil, fmt.Errorf("%w: animation %q has no rotation sampler", ErrMalformed, name)
}

// rotations converts a VEC4 accessor to float quaternions. Integer outputs
// are normalized the way glTF defines for rotation samplers.
func rotations(raw any) ([][4]float32, error) {
	switch v := raw.(type) {
	case [][4]float32:
		return v, nil
	case [][4]int8:
		return normalize(v, func(c int8) float32 { return max(float32(c)/127, -1) }), nil
	case [][4]uint8:
		return normalize(v, func(c uint8) float32 { return float32(c) / 255 }), nil
	case [][4]int16:
		return normalize(v, func(c int16) float32 { return max(float32(c)/32767, -1) }), nil
	case [][4]uint16:
		return normalize(v, func(c uint16) float32 { return float32(c) / 65535 }), nil
	default:
		return nil, fmt.Errorf("unsupported rotation component type %T", raw)
	}
}

func normalize[T int8 | uint8 | int16 | uint16](in [][4]T, conv func(T) float32) [][4]float32 {
	out := make([][4]float32, len(in))
	for i, q := range in {
		for c := range q {
			out[i][c] = conv(q[c])
		}
	}
	return out
}
