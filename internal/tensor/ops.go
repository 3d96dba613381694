package tensor

import (
	"math"
	"slices"
)

// Add accumulates src into dst.
func Add(dst, src []float32) {
	for i, v := range src[:len(dst)] {
		dst[i] += v
	}
}

func Dot(a, b []float32) float32 {
	b = b[:len(a)]
	var s float32
	for i, v := range a {
		s += v * b[i]
	}
	return s
}

// LayerNorm writes (src-mean)/sqrt(var+eps)*weight+bias to dst. Statistics
// are accumulated in float64. dst and src may alias.
func LayerNorm(dst, src, weight, bias []float32, eps float32) {
	if len(src) == 0 {
		return
	}
	var sum, sumSq float64
	for _, v := range src {
		sum += float64(v)
	}
	mean := sum / float64(len(src))
	for _, v := range src {
		d := float64(v) - mean
		sumSq += d * d
	}
	scale := 1 / math.Sqrt(sumSq/float64(len(src))+float64(eps))
	for i, v := range src {
		dst[i] = float32((float64(v)-mean)*scale)*weight[i] + bias[i]
	}
}

// Softmax normalises x into a probability distribution in place.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	peak := slices.Max(x)
	var total float64
	for i, v := range x {
		e := math.Exp(float64(v - peak))
		x[i] = float32(e)
		total += e
	}
	if total == 0 {
		return
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / total)
	}
}

// GELU is the tanh approximation GPT-2 calls "gelu_new".
func GELU(x float32) float32 {
	const c = 0.044715
	v := float64(x)
	inner := math.Sqrt(2/math.Pi) * (v + c*v*v*v)
	return float32(v * 0.5 * (1 + math.Tanh(inner)))
}

func GELUInPlace(x []float32) {
	for i := range x {
		x[i] = GELU(x[i])
	}
}
