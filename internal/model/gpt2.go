package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/samcharles93/streamgen/internal/safetensors"
	"github.com/samcharles93/streamgen/internal/tensor"
)

// Layer holds the weights of one transformer block. Linear weights are
// stored as [out, in] so they feed tensor.MatVec directly.
type Layer struct {
	Ln1W, Ln1B []float32

	AttnW tensor.Mat // [3*n_embd, n_embd]
	AttnB []float32
	ProjW tensor.Mat // [n_embd, n_embd]
	ProjB []float32

	Ln2W, Ln2B []float32

	FcW    tensor.Mat // [n_inner, n_embd]
	FcB    []float32
	FcOutW tensor.Mat // [n_embd, n_inner]
	FcOutB []float32
}

// GPT2 is a loaded GPT-2 checkpoint. The output projection is tied to the
// token embedding matrix.
type GPT2 struct {
	Config Config

	WTE    tensor.Mat // [vocab, n_embd]
	WPE    tensor.Mat // [n_positions, n_embd]
	Layers []Layer
	LnFW   []float32
	LnFB   []float32

	// ParamCount is the number of scalar weights loaded.
	ParamCount int
}

// LoadDir loads config.json and model.safetensors from a checkpoint
// directory.
func LoadDir(dir string) (*GPT2, error) {
	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}
	return LoadSafetensors(filepath.Join(dir, "model.safetensors"), cfg)
}

// LoadSafetensors reads all weights into memory and closes the file.
func LoadSafetensors(path string, cfg Config) (*GPT2, error) {
	st, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer func() { _ = st.Close() }()
	return load(st, cfg)
}

type weightReader struct {
	st     *safetensors.File
	prefix string
	params int
}

func load(st *safetensors.File, cfg Config) (*GPT2, error) {
	r := &weightReader{st: st}
	if _, ok := st.Tensor("wte.weight"); !ok {
		if _, ok := st.Tensor("transformer.wte.weight"); ok {
			r.prefix = "transformer."
		}
	}

	m := &GPT2{Config: cfg}
	var err error
	if m.WTE, err = r.mat("wte.weight", cfg.VocabSize, cfg.NEmbd); err != nil {
		return nil, err
	}
	if m.WPE, err = r.mat("wpe.weight", cfg.NPositions, cfg.NEmbd); err != nil {
		return nil, err
	}
	if m.LnFW, err = r.vec("ln_f.weight", cfg.NEmbd); err != nil {
		return nil, err
	}
	if m.LnFB, err = r.vec("ln_f.bias", cfg.NEmbd); err != nil {
		return nil, err
	}

	m.Layers = make([]Layer, cfg.NLayer)
	for i := range m.Layers {
		if err := r.layer(&m.Layers[i], i, cfg); err != nil {
			return nil, err
		}
	}
	m.ParamCount = r.params
	return m, nil
}

func (r *weightReader) layer(l *Layer, i int, cfg Config) error {
	e, inner := cfg.NEmbd, cfg.InnerDim()
	name := func(s string) string { return fmt.Sprintf("h.%d.%s", i, s) }

	var err error
	if l.Ln1W, err = r.vec(name("ln_1.weight"), e); err != nil {
		return err
	}
	if l.Ln1B, err = r.vec(name("ln_1.bias"), e); err != nil {
		return err
	}
	if l.AttnW, err = r.conv1D(name("attn.c_attn.weight"), e, 3*e); err != nil {
		return err
	}
	if l.AttnB, err = r.vec(name("attn.c_attn.bias"), 3*e); err != nil {
		return err
	}
	if l.ProjW, err = r.conv1D(name("attn.c_proj.weight"), e, e); err != nil {
		return err
	}
	if l.ProjB, err = r.vec(name("attn.c_proj.bias"), e); err != nil {
		return err
	}
	if l.Ln2W, err = r.vec(name("ln_2.weight"), e); err != nil {
		return err
	}
	if l.Ln2B, err = r.vec(name("ln_2.bias"), e); err != nil {
		return err
	}
	if l.FcW, err = r.conv1D(name("mlp.c_fc.weight"), e, inner); err != nil {
		return err
	}
	if l.FcB, err = r.vec(name("mlp.c_fc.bias"), inner); err != nil {
		return err
	}
	if l.FcOutW, err = r.conv1D(name("mlp.c_proj.weight"), inner, e); err != nil {
		return err
	}
	if l.FcOutB, err = r.vec(name("mlp.c_proj.bias"), e); err != nil {
		return err
	}
	return nil
}

func (r *weightReader) read(name string, shape ...int) ([]float32, error) {
	data, info, err := r.st.ReadTensorF32(r.prefix + name)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(info.Shape, shape) {
		return nil, fmt.Errorf("%s: shape %v, want %v", name, info.Shape, shape)
	}
	r.params += len(data)
	return data, nil
}

func (r *weightReader) vec(name string, n int) ([]float32, error) {
	return r.read(name, n)
}

func (r *weightReader) mat(name string, rows, cols int) (tensor.Mat, error) {
	data, err := r.read(name, rows, cols)
	if err != nil {
		return tensor.Mat{}, err
	}
	m, err := tensor.NewMatFromData(rows, cols, data)
	if err != nil {
		return tensor.Mat{}, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// conv1D loads a Hugging Face Conv1D weight, stored as [in, out], and
// returns it transposed to [out, in].
func (r *weightReader) conv1D(name string, in, out int) (tensor.Mat, error) {
	m, err := r.mat(name, in, out)
	if err != nil {
		return tensor.Mat{}, err
	}
	return m.Transpose(), nil
}

// ErrContextFull is returned by Session.ForwardToken once every position of
// the context window has been used.
var ErrContextFull = errors.New("context window exhausted")
