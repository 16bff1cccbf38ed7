package frame

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Frame 시간 인덱스 테이블
// 컬럼 단위로 저장하며 NaN은 결측값을 의미한다.
// 동일 timestamp가 여러 행에 나타날 수 있다 (horizon별 행 복제).
type Frame struct {
	index   []time.Time
	columns []string
	data    [][]float64
}

// New creates an empty frame over index with NaN-filled columns.
func New(index []time.Time, columns ...string) *Frame {
	f := &Frame{
		index:   append([]time.Time(nil), index...),
		columns: make([]string, 0, len(columns)),
		data:    make([][]float64, 0, len(columns)),
	}
	for _, c := range columns {
		f.columns = append(f.columns, c)
		f.data = append(f.data, NaNs(len(index)))
	}
	return f
}

// FromColumns builds a frame from column-major values.
func FromColumns(index []time.Time, columns []string, values [][]float64) (*Frame, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("frame: %d columns but %d value slices", len(columns), len(values))
	}
	f := New(index)
	for i, name := range columns {
		if err := f.Set(name, values[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns the row timestamps. Callers must not modify the slice.
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the frame has a column.
func (f *Frame) Has(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// Column returns the values of a column. Callers must not modify the slice.
func (f *Frame) Column(name string) ([]float64, bool) {
	i := f.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return f.data[i], true
}

// ColumnAt returns the values of the i-th column.
func (f *Frame) ColumnAt(i int) []float64 {
	return f.data[i]
}

// At returns a single cell, NaN if the column does not exist.
func (f *Frame) At(name string, row int) float64 {
	col, ok := f.Column(name)
	if !ok {
		return math.NaN()
	}
	return col[row]
}

// Set adds or replaces a column. The values are copied.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("frame: column %q has %d values, index has %d", name, len(values), len(f.index))
	}
	cp := append([]float64(nil), values...)
	if i := f.ColumnIndex(name); i >= 0 {
		f.data[i] = cp
		return nil
	}
	f.columns = append(f.columns, name)
	f.data = append(f.data, cp)
	return nil
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := New(f.index)
	for i, c := range f.columns {
		if _, ok := skip[c]; ok {
			continue
		}
		out.columns = append(out.columns, c)
		out.data = append(out.data, append([]float64(nil), f.data[i]...))
	}
	return out
}

// Select returns a frame with the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New(f.index)
	for _, n := range names {
		col, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("frame: column %q not found", n)
		}
		out.columns = append(out.columns, n)
		out.data = append(out.data, append([]float64(nil), col...))
	}
	return out, nil
}

// SliceColumns returns columns [from, to) by position.
func (f *Frame) SliceColumns(from, to int) *Frame {
	out := New(f.index)
	for i := from; i < to && i < len(f.columns); i++ {
		out.columns = append(out.columns, f.columns[i])
		out.data = append(out.data, append([]float64(nil), f.data[i]...))
	}
	return out
}

// Rows returns a frame with the given row positions, in order.
func (f *Frame) Rows(rows []int) *Frame {
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = f.index[r]
	}
	out := New(index)
	for ci, c := range f.columns {
		col := make([]float64, len(rows))
		for i, r := range rows {
			col[i] = f.data[ci][r]
		}
		out.columns = append(out.columns, c)
		out.data = append(out.data, col)
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	rows := make([]int, 0, f.Len())
	for i := range f.index {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Rows(rows)
}

// Between keeps rows with start <= t <= end.
func (f *Frame) Between(start, end time.Time) *Frame {
	return f.Filter(func(i int) bool {
		t := f.index[i]
		return !t.Before(start) && !t.After(end)
	})
}

// SortByIndex returns a copy with rows stably sorted by timestamp.
func (f *Frame) SortByIndex() *Frame {
	rows := make([]int, f.Len())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return f.index[rows[a]].Before(f.index[rows[b]])
	})
	return f.Rows(rows)
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := New(f.index)
	for i, c := range f.columns {
		out.columns = append(out.columns, c)
		out.data = append(out.data, append([]float64(nil), f.data[i]...))
	}
	return out
}

// Matrix returns the frame as a rows x columns dense matrix.
func (f *Frame) Matrix() *mat.Dense {
	if f.Len() == 0 || len(f.columns) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(f.Len(), len(f.columns), nil)
	for c := range f.columns {
		m.SetCol(c, f.data[c])
	}
	return m
}

// CountValid returns the number of non-NaN values in a column.
func CountValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// LastValid returns the row of the last non-NaN value, or -1.
func LastValid(values []float64) int {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return i
		}
	}
	return -1
}
