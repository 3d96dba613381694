package model

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/samcharles93/streamgen/internal/tensor"
	"github.com/samcharles93/streamgen/internal/toy"
)

func loadToy(t *testing.T, opts toy.Options) *GPT2 {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "gpt2")
	if err := toy.Write(dir, opts); err != nil {
		t.Fatalf("write toy checkpoint: %v", err)
	}
	m, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

func runTokens(t *testing.T, s *Session, toks []int) []float32 {
	t.Helper()
	var logits []float32
	for _, tok := range toks {
		out, err := s.ForwardToken(tok)
		if err != nil {
			t.Fatalf("forward %d: %v", tok, err)
		}
		logits = append(logits[:0], out...)
	}
	return logits
}

// referenceForward recomputes the last position from scratch without a
// key/value cache.
func referenceForward(m *GPT2, toks []int) []float32 {
	cfg := m.Config
	e, hd := cfg.NEmbd, cfg.HeadDim()
	eps := float32(cfg.LayerNormEps)
	n := len(toks)

	xs := make([][]float32, n)
	for p, tok := range toks {
		x := make([]float32, e)
		copy(x, m.WTE.Row(tok))
		tensor.Add(x, m.WPE.Row(p))
		xs[p] = x
	}
	for li := range m.Layers {
		l := &m.Layers[li]
		qs := make([][]float32, n)
		ks := make([][]float32, n)
		vs := make([][]float32, n)
		for p := range xs {
			h := make([]float32, e)
			tensor.LayerNorm(h, xs[p], l.Ln1W, l.Ln1B, eps)
			qkv := make([]float32, 3*e)
			naiveLinear(qkv, &l.AttnW, h, l.AttnB)
			qs[p], ks[p], vs[p] = qkv[:e], qkv[e:2*e], qkv[2*e:]
		}
		for p := range xs {
			out := make([]float32, e)
			for head := 0; head < cfg.NHead; head++ {
				off := head * hd
				scores := make([]float32, p+1)
				for t := 0; t <= p; t++ {
					var dot float32
					for j := 0; j < hd; j++ {
						dot += qs[p][off+j] * ks[t][off+j]
					}
					scores[t] = dot / float32(math.Sqrt(float64(hd)))
				}
				tensor.Softmax(scores)
				for t := 0; t <= p; t++ {
					for j := 0; j < hd; j++ {
						out[off+j] += scores[t] * vs[t][off+j]
					}
				}
			}
			proj := make([]float32, e)
			naiveLinear(proj, &l.ProjW, out, l.ProjB)
			tensor.Add(xs[p], proj)

			h := make([]float32, e)
			tensor.LayerNorm(h, xs[p], l.Ln2W, l.Ln2B, eps)
			ff := make([]float32, cfg.InnerDim())
			naiveLinear(ff, &l.FcW, h, l.FcB)
			tensor.GELUInPlace(ff)
			mlp := make([]float32, e)
			naiveLinear(mlp, &l.FcOutW, ff, l.FcOutB)
			tensor.Add(xs[p], mlp)
		}
	}
	h := make([]float32, e)
	tensor.LayerNorm(h, xs[n-1], m.LnFW, m.LnFB, eps)
	logits := make([]float32, cfg.VocabSize)
	naiveLinear(logits, &m.WTE, h, nil)
	return logits
}

func naiveLinear(dst []float32, w *tensor.Mat, x, bias []float32) {
	for r := 0; r < w.R; r++ {
		var sum float32
		row := w.Row(r)
		for c := range row {
			sum += row[c] * x[c]
		}
		if bias != nil {
			sum += bias[r]
		}
		dst[r] = sum
	}
}

func assertClose(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestLoadToyCheckpoint(t *testing.T) {
	t.Parallel()

	opts := toy.DefaultOptions()
	m := loadToy(t, opts)
	if len(m.Layers) != opts.Layers {
		t.Fatalf("layers: got %d want %d", len(m.Layers), opts.Layers)
	}
	if m.Config.EOSTokenID != toy.EOSID {
		t.Fatalf("eos: got %d want %d", m.Config.EOSTokenID, toy.EOSID)
	}
	e := opts.Embd
	perLayer := 2*e + (3*e*e + 3*e) + (e*e + e) + 2*e + (4*e*e + 4*e) + (4*e*e + e)
	want := toy.VocabSize*e + opts.Positions*e + opts.Layers*perLayer + 2*e
	if m.ParamCount != want {
		t.Fatalf("param count: got %d want %d", m.ParamCount, want)
	}
	// Conv1D weights are transposed to [out, in].
	if m.Layers[0].AttnW.R != 3*e || m.Layers[0].AttnW.C != e {
		t.Fatalf("c_attn shape: %dx%d", m.Layers[0].AttnW.R, m.Layers[0].AttnW.C)
	}
}

func TestLoadTransformerPrefix(t *testing.T) {
	t.Parallel()

	opts := toy.DefaultOptions()
	opts.Prefix = "transformer."
	m := loadToy(t, opts)
	if m.WTE.R != toy.VocabSize {
		t.Fatalf("wte rows: got %d", m.WTE.R)
	}
}

func TestLoadShapeMismatch(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "gpt2")
	if err := toy.Write(dir, toy.DefaultOptions()); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.VocabSize++
	if _, err := LoadSafetensors(filepath.Join(dir, "model.safetensors"), cfg); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestSessionMatchesReference(t *testing.T) {
	t.Parallel()

	m := loadToy(t, toy.DefaultOptions())
	toks := []int{'h', 'e', 'l', 'l', 'o'}
	s := m.NewSession()
	for i := range toks {
		got := runTokens(t, s, toks[i:i+1])
		want := referenceForward(m, toks[:i+1])
		assertClose(t, got, want, 1e-3)
	}
	if s.Pos() != len(toks) {
		t.Fatalf("pos: got %d want %d", s.Pos(), len(toks))
	}
}

func TestSessionResetReplays(t *testing.T) {
	t.Parallel()

	m := loadToy(t, toy.DefaultOptions())
	s := m.NewSession()
	first := runTokens(t, s, []int{1, 2, 3})
	s.Reset()
	if s.Pos() != 0 {
		t.Fatalf("pos after reset: %d", s.Pos())
	}
	second := runTokens(t, s, []int{1, 2, 3})
	assertClose(t, second, first, 0)
}

func TestSessionContextFull(t *testing.T) {
	t.Parallel()

	opts := toy.DefaultOptions()
	opts.Positions = 3
	m := loadToy(t, opts)
	s := m.NewSession()
	runTokens(t, s, []int{1, 2, 3})
	if _, err := s.ForwardToken(4); !errors.Is(err, ErrContextFull) {
		t.Fatalf("expected ErrContextFull, got %v", err)
	}
}

func TestSessionRejectsOutOfRangeToken(t *testing.T) {
	t.Parallel()

	m := loadToy(t, toy.DefaultOptions())
	if _, err := m.NewSession().ForwardToken(toy.VocabSize); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestConcurrentSessionsShareModel(t *testing.T) {
	t.Parallel()

	m := loadToy(t, toy.DefaultOptions())
	toks := []int{10, 20, 30, 40}
	want := runTokens(t, m.NewSession(), toks)

	var wg sync.WaitGroup
	results := make([][]float32, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.NewSession()
			var logits []float32
			for _, tok := range toks {
				out, err := s.ForwardToken(tok)
				if err != nil {
					t.Errorf("forward: %v", err)
					return
				}
				logits = append(logits[:0], out...)
			}
			results[i] = logits
		}()
	}
	wg.Wait()
	for i, got := range results {
		if got == nil {
			t.Fatalf("session %d produced no logits", i)
		}
		assertClose(t, got, want, 0)
	}
}
