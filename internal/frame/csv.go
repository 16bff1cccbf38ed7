package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Concat stacks frames with identical columns row-wise.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return New(nil), nil
	}
	cols := frames[0].Columns()
	var index []time.Time
	for i, f := range frames {
		if len(f.columns) != len(cols) {
			return nil, fmt.Errorf("frame: concat part %d has %d columns, want %d", i, len(f.columns), len(cols))
		}
		for j, c := range f.columns {
			if c != cols[j] {
				return nil, fmt.Errorf("frame: concat part %d column %d is %q, want %q", i, j, c, cols[j])
			}
		}
		index = append(index, f.index...)
	}
	out := New(index)
	for j, c := range cols {
		col := make([]float64, 0, len(index))
		for _, f := range frames {
			col = append(col, f.data[j]...)
		}
		out.columns = append(out.columns, c)
		out.data = append(out.data, col)
	}
	return out, nil
}

// ReadCSV parses a CSV whose first column is an RFC 3339 timestamp and whose
// remaining columns are numeric. Empty cells and "nan" become NaN.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("frame: empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("frame: read header: %w", err)
	}
	if len(header) < 1 {
		return nil, errors.New("frame: csv needs a timestamp column")
	}
	columns := header[1:]

	var index []time.Time
	values := make([][]float64, len(columns))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame: line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("frame: line %d: timestamp: %w", line, err)
		}
		index = append(index, ts)
		for i := range columns {
			v, err := parseCell(rec[i+1])
			if err != nil {
				return nil, fmt.Errorf("frame: line %d column %q: %w", line, columns[i], err)
			}
			values[i] = append(values[i], v)
		}
	}
	return FromColumns(index, columns, values)
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes the frame with a leading RFC 3339 timestamp column.
// NaN values are written as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"timestamp"}, f.columns...)); err != nil {
		return err
	}
	rec := make([]string, len(f.columns)+1)
	for r, ts := range f.index {
		rec[0] = ts.Format(time.RFC3339)
		for c := range f.columns {
			v := f.data[c][r]
			if math.IsNaN(v) {
				rec[c+1] = ""
			} else {
				rec[c+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
