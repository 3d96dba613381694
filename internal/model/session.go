package model

import (
	"fmt"
	"math"

	"github.com/samcharles93/streamgen/internal/tensor"
)

// Session is the mutable decoding state of one generation: the key/value
// cache, the current position and scratch buffers. It is not safe for
// concurrent use; create one per generation with GPT2.NewSession.
type Session struct {
	m   *GPT2
	pos int

	// keys[l] and values[l] hold pos*n_embd entries, one row per position.
	keys   [][]float32
	values [][]float32

	scratch struct {
		x      []float32
		h      []float32
		qkv    []float32
		attn   []float32
		proj   []float32
		ff     []float32
		scores []float32
		logits []float32
	}
}

// NewSession allocates decoding state for m.
func (m *GPT2) NewSession() *Session {
	cfg := m.Config
	s := &Session{
		m:      m,
		keys:   make([][]float32, cfg.NLayer),
		values: make([][]float32, cfg.NLayer),
	}
	s.scratch.x = make([]float32, cfg.NEmbd)
	s.scratch.h = make([]float32, cfg.NEmbd)
	s.scratch.qkv = make([]float32, 3*cfg.NEmbd)
	s.scratch.attn = make([]float32, cfg.NEmbd)
	s.scratch.proj = make([]float32, cfg.NEmbd)
	s.scratch.ff = make([]float32, cfg.InnerDim())
	s.scratch.scores = make([]float32, 0, cfg.NPositions)
	s.scratch.logits = make([]float32, cfg.VocabSize)
	return s
}

// Pos is the number of tokens consumed so far.
func (s *Session) Pos() int { return s.pos }

// ForwardToken runs one autoregressive step for the provided token id.
// It returns a logits slice owned by the session (overwritten on next call).
func (s *Session) ForwardToken(tok int) ([]float32, error) {
	cfg := s.m.Config
	if tok < 0 || tok >= cfg.VocabSize {
		return nil, fmt.Errorf("token id out of range: %d", tok)
	}
	if s.pos >= cfg.NPositions {
		return nil, fmt.Errorf("%w: %d >= %d", ErrContextFull, s.pos, cfg.NPositions)
	}

	x := s.scratch.x
	copy(x, s.m.WTE.Row(tok))
	tensor.Add(x, s.m.WPE.Row(s.pos))

	eps := float32(cfg.LayerNormEps)
	for i := range s.m.Layers {
		layer := &s.m.Layers[i]

		// Attention block: pre-norm, causal self-attention, residual.
		tensor.LayerNorm(s.scratch.h, x, layer.Ln1W, layer.Ln1B, eps)
		s.attention(i, layer, s.scratch.h)
		tensor.Add(x, s.scratch.proj)

		// MLP block: pre-norm, fc, gelu, projection, residual.
		tensor.LayerNorm(s.scratch.h, x, layer.Ln2W, layer.Ln2B, eps)
		tensor.MatVecBias(s.scratch.ff, &layer.FcW, s.scratch.h, layer.FcB)
		tensor.GELUInPlace(s.scratch.ff)
		tensor.MatVecBias(s.scratch.proj, &layer.FcOutW, s.scratch.ff, layer.FcOutB)
		tensor.Add(x, s.scratch.proj)
	}

	tensor.LayerNorm(s.scratch.h, x, s.m.LnFW, s.m.LnFB, eps)
	tensor.MatVec(s.scratch.logits, &s.m.WTE, s.scratch.h)

	s.pos++
	return s.scratch.logits, nil
}

// attention writes the projected attention output for the current position
// into s.scratch.proj and appends this position's keys and values to the
// layer cache.
func (s *Session) attention(li int, layer *Layer, h []float32) {
	cfg := s.m.Config
	e := cfg.NEmbd
	hd := cfg.HeadDim()

	qkv := s.scratch.qkv
	tensor.MatVecBias(qkv, &layer.AttnW, h, layer.AttnB)
	q := qkv[:e]
	s.keys[li] = append(s.keys[li], qkv[e:2*e]...)
	s.values[li] = append(s.values[li], qkv[2*e:]...)
	keys, values := s.keys[li], s.values[li]

	n := s.pos + 1
	scale := float32(1 / math.Sqrt(float64(hd)))
	out := s.scratch.attn
	for head := 0; head < cfg.NHead; head++ {
		off := head * hd
		qh := q[off : off+hd]

		scores := s.scratch.scores[:n]
		for t := 0; t < n; t++ {
			kh := keys[t*e+off : t*e+off+hd]
			scores[t] = tensor.Dot(qh, kh) * scale
		}
		tensor.Softmax(scores)

		oh := out[off : off+hd]
		clear(oh)
		for t := 0; t < n; t++ {
			p := scores[t]
			vh := values[t*e+off : t*e+off+hd]
			for j := range oh {
				oh[j] += p * vh[j]
			}
		}
	}
	tensor.MatVecBias(s.scratch.proj, &layer.ProjW, out, layer.ProjB)
}

// Reset rewinds the session to position zero, keeping allocated buffers.
func (s *Session) Reset() {
	s.pos = 0
	for i := range s.keys {
		s.keys[i] = s.keys[i][:0]
		s.values[i] = s.values[i][:0]
	}
}

var _ Model = (*Session)(nil)
