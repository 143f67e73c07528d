// Package window slices a normalized feature stream into fixed-length,
// fixed-stride overlapping windows.
//
// Window k covers rows [k*stride, k*stride+length) and exists only while
// k*stride+length <= N. A trailing partial window is dropped, never padded.
package window

import (
	"fmt"
	"iter"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"gonum.org/v1/gonum/mat"
)

// Defaults used when configuration leaves the window unset.
const (
	DefaultLength = 256
	DefaultStride = 128
)

// Window is a read-only Length x FeatureDim view over a recording's stream.
type Window struct {
	Data   *mat.Dense
	Label  string
	Index  int
	Offset int
}

// Segmenter holds a validated window length and stride.
type Segmenter struct {
	length int
	stride int
}

// NewSegmenter validates 1 <= stride <= length.
func NewSegmenter(length, stride int) (*Segmenter, error) {
	if length < 1 {
		return nil, common.NewConfigError("window.length", "must be >= 1, got %d", length)
	}
	if stride < 1 {
		return nil, common.NewConfigError("window.stride", "must be >= 1, got %d", stride)
	}
	if stride > length {
		return nil, common.NewConfigError("window.stride", "stride %d exceeds window length %d; gaps between windows are not supported", stride, length)
	}
	return &Segmenter{length: length, stride: stride}, nil
}

// Length returns the window length in feature vectors.
func (s *Segmenter) Length() int {
	return s.length
}

// Stride returns the offset between consecutive window starts.
func (s *Segmenter) Stride() int {
	return s.stride
}

// Count returns how many windows a stream of n feature vectors yields.
func (s *Segmenter) Count(n int) int {
	if n < s.length {
		return 0
	}
	return (n-s.length)/s.stride + 1
}

// Segment prepares the windows of a row-major stream with FeatureDim
// columns. Nothing is copied; windows are produced on demand.
func (s *Segmenter) Segment(stream []float64, label string) (*Windows, error) {
	if len(stream)%model.FeatureDim != 0 {
		return nil, fmt.Errorf("stream length %d is not a multiple of %d features", len(stream), model.FeatureDim)
	}
	rows := len(stream) / model.FeatureDim
	return &Windows{
		stream: stream,
		label:  label,
		rows:   rows,
		count:  s.Count(rows),
		length: s.length,
		stride: s.stride,
	}, nil
}

// Windows is a lazy, finite, restartable sequence of windows.
type Windows struct {
	label  string
	stream []float64
	rows   int
	count  int
	length int
	stride int
}

// Len returns the number of windows.
func (w *Windows) Len() int {
	return w.count
}

// Rows returns the number of feature vectors in the underlying stream.
func (w *Windows) Rows() int {
	return w.rows
}

// At returns window k. It panics if k is out of range.
func (w *Windows) At(k int) Window {
	if k < 0 || k >= w.count {
		panic(fmt.Sprintf("window: index %d out of range [0,%d)", k, w.count))
	}
	offset := k * w.stride
	lo := offset * model.FeatureDim
	hi := (offset + w.length) * model.FeatureDim
	return Window{
		Data:   mat.NewDense(w.length, model.FeatureDim, w.stream[lo:hi:hi]),
		Label:  w.label,
		Index:  k,
		Offset: offset,
	}
}

// All yields every window in order. Each call starts from the first window.
func (w *Windows) All() iter.Seq2[int, Window] {
	return func(yield func(int, Window) bool) {
		for k := 0; k < w.count; k++ {
			if !yield(k, w.At(k)) {
				return
			}
		}
	}
}
