// Package safetensors reads and writes the safetensors weight format used by
// Hugging Face checkpoints.
//
// A file is an 8-byte little-endian header length, a JSON header mapping
// tensor names to dtype, shape and byte offsets, then the raw payload.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/x448/float16"
	"golang.org/x/sys/unix"
)

const (
	metadataKey  = "__metadata__"
	maxHeaderLen = 100 << 20
)

var (
	ErrCorruptFile     = errors.New("safetensors: corrupt file")
	ErrTensorNotFound  = errors.New("safetensors: tensor not found")
	ErrUnsupportedType = errors.New("safetensors: unsupported dtype")
)

// TensorInfo locates one tensor. Start and End are payload-relative.
type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is an opened safetensors file.
type File struct {
	Path      string
	DataStart int64
	Tensors   map[string]TensorInfo
	Metadata  map[string]string

	buf   []byte
	unmap func([]byte) error
}

// decoders convert one little-endian element to float32, keyed by dtype.
var decoders = map[string]struct {
	width  int
	decode func([]byte) float32
}{
	"F32":  {4, func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }},
	"F16":  {2, func(b []byte) float32 { return f16ToF32(binary.LittleEndian.Uint16(b)) }},
	"BF16": {2, func(b []byte) float32 { return bf16ToF32(binary.LittleEndian.Uint16(b)) }},
}

// Open maps path read-only, or reads it into memory where mmap fails, and
// parses the header. Close releases the file.
func Open(path string) (*File, error) {
	buf, unmap, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parse(path, buf)
	if err != nil {
		if unmap != nil {
			_ = unmap(buf)
		}
		return nil, err
	}
	f.unmap = unmap
	return f, nil
}

func mapFile(path string) ([]byte, func([]byte) error, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = fd.Close() }()

	st, err := fd.Stat()
	if err != nil {
		return nil, nil, err
	}
	if st.Size() < 8 || st.Size() > math.MaxInt {
		return nil, nil, fmt.Errorf("%w: %s is %d bytes", ErrCorruptFile, path, st.Size())
	}
	size := int(st.Size())

	if buf, err := unix.Mmap(int(fd.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED); err == nil {
		return buf, unix.Munmap, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(fd, buf); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf, nil, nil
}

type headerEntry struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

func (e headerEntry) info(payload int64) (TensorInfo, error) {
	if len(e.DataOffsets) != 2 {
		return TensorInfo{}, fmt.Errorf("data_offsets has %d values", len(e.DataOffsets))
	}
	start, end := e.DataOffsets[0], e.DataOffsets[1]
	if start < 0 || end < start || end > payload {
		return TensorInfo{}, fmt.Errorf("offsets [%d,%d) outside payload of %d bytes", start, end, payload)
	}
	return TensorInfo{DType: e.DType, Shape: e.Shape, Start: start, End: end}, nil
}

func parse(path string, buf []byte) (*File, error) {
	n := binary.LittleEndian.Uint64(buf)
	if n > maxHeaderLen || n > uint64(len(buf)-8) {
		return nil, fmt.Errorf("%w: header length %d", ErrCorruptFile, n)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(buf[8:8+n], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptFile, err)
	}

	f := &File{
		Path:      path,
		DataStart: int64(8 + n),
		Tensors:   make(map[string]TensorInfo, len(header)),
		buf:       buf,
	}
	payload := int64(len(buf)) - f.DataStart
	for name, raw := range header {
		if name == metadataKey {
			// Metadata is advisory; a malformed block is ignored.
			_ = json.Unmarshal(raw, &f.Metadata)
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
		}
		info, err := e.info(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
		}
		f.Tensors[name] = info
	}
	return f, nil
}

// Close releases the file. Slices returned by ReadTensor are invalid
// afterwards.
func (f *File) Close() error {
	if f == nil || f.buf == nil {
		return nil
	}
	buf, unmap := f.buf, f.unmap
	f.buf, f.unmap = nil, nil
	if unmap == nil {
		return nil
	}
	return unmap(buf)
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.Tensors))
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Size returns the payload size in bytes.
func (f *File) Size() int64 {
	return int64(len(f.buf)) - f.DataStart
}

// ReadTensor returns the raw bytes of a tensor. The slice aliases the file
// and must not be modified.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	if f.buf == nil {
		return nil, TensorInfo{}, fmt.Errorf("read tensor %s: file closed", name)
	}
	lo, hi := f.DataStart+t.Start, f.DataStart+t.End
	return f.buf[lo:hi:hi], t, nil
}

// ReadTensorF32 decodes a tensor into a newly allocated float32 slice.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	raw, info, err := f.ReadTensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	dec, ok := decoders[info.DType]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w %s for tensor %s", ErrUnsupportedType, info.DType, name)
	}
	n, err := numElements(info.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	if len(raw) != n*dec.width {
		return nil, TensorInfo{}, fmt.Errorf("%w: tensor %s holds %d bytes, shape %v needs %d", ErrCorruptFile, name, len(raw), info.Shape, n*dec.width)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = dec.decode(raw[i*dec.width:])
	}
	return out, info, nil
}

// numElements multiplies out shape; an empty shape is a scalar.
func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > math.MaxInt/d {
			return 0, errors.New("tensor too large")
		}
		n *= d
	}
	return n, nil
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func f16ToF32(h uint16) float32 {
	return float16.Frombits(h).Float32()
}
