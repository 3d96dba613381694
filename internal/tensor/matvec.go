package tensor

import (
	"runtime"
	"sync"
)

// minRowsPerTask keeps small products on the calling goroutine and stops
// large ones from being split finer than is worth a goroutine.
const minRowsPerTask = 64

// helpers bounds the goroutines MatVec starts across all concurrent calls.
// When it is full the caller computes the block itself.
var helpers = make(chan struct{}, runtime.GOMAXPROCS(0))

// MatVec computes dst = w * x, splitting rows into blocks that run in
// parallel. It is safe to call from several generations at once.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}
	x = x[:w.C]

	block := max(minRowsPerTask, (w.R+cap(helpers)-1)/cap(helpers))
	if block >= w.R {
		dotRows(dst, w, x, 0, w.R)
		return
	}

	var wg sync.WaitGroup
	for rs := 0; rs < w.R; rs += block {
		re := min(rs+block, w.R)
		select {
		case helpers <- struct{}{}:
			wg.Go(func() {
				defer func() { <-helpers }()
				dotRows(dst, w, x, rs, re)
			})
		default:
			dotRows(dst, w, x, rs, re)
		}
	}
	wg.Wait()
}

// MatVecBias computes dst = w * x + bias. A nil bias is skipped.
func MatVecBias(dst []float32, w *Mat, x, bias []float32) {
	MatVec(dst, w, x)
	if bias != nil {
		Add(dst[:w.R], bias)
	}
}

// dotRows fills dst[rs:re] using four independent accumulators per row.
func dotRows(dst []float32, w *Mat, x []float32, rs, re int) {
	n := len(x)
	for i := rs; i < re; i++ {
		row := w.Row(i)
		var s0, s1, s2, s3 float32
		j := 0
		for ; j+4 <= n; j += 4 {
			s0 += row[j] * x[j]
			s1 += row[j+1] * x[j+1]
			s2 += row[j+2] * x[j+2]
			s3 += row[j+3] * x[j+3]
		}
		for ; j < n; j++ {
			s0 += row[j] * x[j]
		}
		dst[i] = (s0 + s1) + (s2 + s3)
	}
}
