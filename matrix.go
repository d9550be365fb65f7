package signals

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Matrix is a two dimensional array of samples as it appears in node state:
// rows are frames and columns are channels. In text form it is a nested JSON
// array such as [[0.5, -0.5]].
type Matrix [][]float32

var ErrNotMatrix = errors.New("value must be a 2D array")

// Shape returns the frames × channels extent of the matrix. A matrix without
// rows has shape (0, 0).
func (m Matrix) Shape() Shape {
	if len(m) == 0 {
		return Shape{}
	}
	return Shape{Frames: len(m), Channels: len(m[0])}
}

// Rectangular reports whether every row has the same length.
func (m Matrix) Rectangular() bool {
	for _, row := range m {
		if len(row) != len(m[0]) {
			return false
		}
	}
	return true
}

// Block copies the matrix into a block.
func (m Matrix) Block() Block {
	b := NewBlock(m.Shape())
	for f, row := range m {
		copy(b.Frame(f), row)
	}
	return b
}

// MatrixOf copies a block into a matrix.
func MatrixOf(b Block) Matrix {
	m := make(Matrix, b.Shape.Frames)
	for f := range m {
		m[f] = append([]float32(nil), b.Frame(f)...)
	}
	return m
}

func (m *Matrix) UnmarshalJSON(data []byte) error {
	var rows [][]float32
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: %v", ErrNotMatrix, err)
	}
	if !Matrix(rows).Rectangular() {
		return fmt.Errorf("%w: rows differ in length", ErrNotMatrix)
	}
	*m = rows
	return nil
}
