package types

import (
	"strconv"
	"strings"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Array is the built-in two-dimensional numeric array produced by the
// `@[...]` literal. Every element is stored as a Float; Array is Green
// (acyclic: it owns no Values that can themselves own it back).
type Array struct {
	hdr  *heap.Header
	rows int
	cols int
	data []float64
}

func NewArray(cls *class.Class, rows, cols int, data []float64) *Array {
	a := &Array{rows: rows, cols: cols, data: data}
	a.hdr = heap.NewHeader(a, cls, true)
	return a
}

func (a *Array) Hdr() *heap.Header { return a.hdr }
func (a *Array) Rows() int         { return a.rows }
func (a *Array) Cols() int         { return a.cols }

func (a *Array) cellIndex(line int, r, c int64) (int, error) {
	if r < 1 || r > int64(a.rows) || c < 1 || c > int64(a.cols) {
		return 0, errors.New(errors.IndexError, line, "array index (%d,%d) out of range (%dx%d)", r, c, a.rows, a.cols)
	}
	return int(r-1)*a.cols + int(c-1), nil
}

func (a *Array) Get(line int, r, c int64) (float64, error) {
	idx, err := a.cellIndex(line, r, c)
	if err != nil {
		return 0, err
	}
	return a.data[idx], nil
}

func (a *Array) Set(line int, r, c int64, v float64) error {
	idx, err := a.cellIndex(line, r, c)
	if err != nil {
		return err
	}
	a.data[idx] = v
	return nil
}

func toStringArray(o heap.Object, quote bool) string {
	a := o.(*Array)
	var rows []string
	for r := 0; r < a.rows; r++ {
		var cells []string
		for c := 0; c < a.cols; c++ {
			cells = append(cells, strconv.FormatFloat(a.data[r*a.cols+c], 'g', -1, 64))
		}
		rows = append(rows, "["+strings.Join(cells, ", ")+"]")
	}
	return "@[" + strings.Join(rows, ", ") + "]"
}

func getItemArray(o heap.Object, line int, indices []value.Value, needsRef bool) (value.Value, error) {
	a := o.(*Array)
	if needsRef {
		return value.Value{}, errors.New(errors.ReferenceError, line, "cannot take a reference to an array element")
	}
	if len(indices) != 2 {
		return value.Value{}, errors.New(errors.IndexError, line, "array indexing takes exactly two indices (row, col), got %d", len(indices))
	}
	r, err := value.ToInteger(line, indices[0])
	if err != nil {
		return value.Value{}, err
	}
	c, err := value.ToInteger(line, indices[1])
	if err != nil {
		return value.Value{}, err
	}
	f, err := a.Get(line, r, c)
	if err != nil {
		return value.Value{}, err
	}
	return value.FloatValue(f), nil
}

func setItemArray(o heap.Object, line int, indices []value.Value, v value.Value) error {
	a := o.(*Array)
	if len(indices) != 2 {
		return errors.New(errors.IndexError, line, "array indexing takes exactly two indices (row, col), got %d", len(indices))
	}
	r, err := value.ToInteger(line, indices[0])
	if err != nil {
		return err
	}
	c, err := value.ToInteger(line, indices[1])
	if err != nil {
		return err
	}
	f, err := value.ToFloat(line, v)
	if err != nil {
		return err
	}
	return a.Set(line, r, c, f)
}

func registerArraySlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringArray)
	cls.Slots.GetItem = value.ItemGetFunc(getItemArray)
	cls.Slots.SetItem = value.ItemSetFunc(setItemArray)
}
