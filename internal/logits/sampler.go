// Package logits picks the next token from a logits vector the way Hugging
// Face generate does for GPT-2: repetition penalty first, then either the
// argmax or a seeded draw after temperature, top-k and top-p filtering.
package logits

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// Config holds the decoding parameters of one generation.
type Config struct {
	Seed int64

	// Temperature <= 0 selects greedy decoding.
	Temperature float64

	// TopK <= 0 keeps every token.
	TopK int

	// TopP outside (0, 1) keeps every token.
	TopP float64

	// RepeatPenalty <= 1 disables the penalty.
	RepeatPenalty float64
}

type candidate struct {
	id int
	p  float64
}

// Sampler is not safe for concurrent use; each generation owns one.
type Sampler struct {
	cfg  Config
	rng  *rand.Rand
	seen []bool
	cand []candidate
}

func NewSampler(cfg Config) *Sampler {
	return &Sampler{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Greedy reports whether Sample always returns the argmax.
func (s *Sampler) Greedy() bool {
	return s.cfg.Temperature <= 0 || s.cfg.TopK == 1
}

// Sample returns the next token id. history is every id the model has seen
// so far, prompt included; each distinct id in it is penalised once. The
// penalty is applied to logits in place.
func (s *Sampler) Sample(logits []float32, history []int) int {
	if s.cfg.RepeatPenalty > 1 {
		s.penalise(logits, history)
	}
	if s.Greedy() {
		return argmax(logits)
	}

	inv := 1 / s.cfg.Temperature
	cand := s.cand[:0]
	for id, l := range logits {
		cand = append(cand, candidate{id: id, p: float64(l) * inv})
	}
	slices.SortFunc(cand, func(a, b candidate) int {
		if c := cmp.Compare(b.p, a.p); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if k := s.cfg.TopK; k > 0 && k < len(cand) {
		cand = cand[:k]
	}

	// Softmax over the survivors; cand[0] holds the largest logit.
	top := cand[0].p
	var sum float64
	for i := range cand {
		cand[i].p = math.Exp(cand[i].p - top)
		sum += cand[i].p
	}
	if p := s.cfg.TopP; p > 0 && p < 1 {
		var cum float64
		for i := range cand {
			cum += cand[i].p / sum
			if cum >= p {
				cand = cand[:i+1]
				break
			}
		}
		sum = 0
		for _, c := range cand {
			sum += c.p
		}
	}
	s.cand = cand

	r := s.rng.Float64() * sum
	for _, c := range cand {
		r -= c.p
		if r <= 0 {
			return c.id
		}
	}
	return cand[len(cand)-1].id
}

func (s *Sampler) penalise(logits []float32, history []int) {
	if len(s.seen) < len(logits) {
		s.seen = make([]bool, len(logits))
	}
	penalty := float32(s.cfg.RepeatPenalty)
	for _, id := range history {
		if id < 0 || id >= len(logits) || s.seen[id] {
			continue
		}
		s.seen[id] = true
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
	for _, id := range history {
		if id >= 0 && id < len(logits) {
			s.seen[id] = false
		}
	}
}

// argmax returns the lowest index holding the largest value. It panics on
// an empty slice.
func argmax(x []float32) int {
	best := 0
	for i, v := range x[1:] {
		if v > x[best] {
			best = i + 1
		}
	}
	return best
}
