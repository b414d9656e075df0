package dataset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scale maps x from [min, max] onto [-b, a-b]:
//
//	a·(x-min)/(max-min) - b
func Scale(min, max, x, a, b float64) (float64, error) {
	if max == min {
		return 0, errors.Wrapf(ErrDegenerateColumn, "min = max = %g", min)
	}
	return a*((x-min)/(max-min)) - b, nil
}

// Descale is the inverse of Scale.
func Descale(min, max, x, a, b float64) (float64, error) {
	if max == min {
		return 0, errors.Wrapf(ErrDegenerateColumn, "min = max = %g", min)
	}
	return (x+b)/a*(max-min) + min, nil
}

// Normalize scales every column except the bias column in place. The bounds of each column are
// computed on the first call and kept; bounds restored with LoadMinMax are used as they are,
// so prediction inputs are scaled like the training data was.
func (d *Dataset) Normalize() error {
	if d.Minimums == nil || d.Maximums == nil {
		d.computeBounds()
	} else if d.Minimums.Len() < d.Columns || d.Maximums.Len() < d.Columns {
		return errors.Wrapf(ErrColumnCount, "bounds cover %d columns, dataset has %d",
			d.Minimums.Len(), d.Columns)
	}

	a, b := d.Mode.Coefficients()
	for j := 1; j < d.Columns; j++ {
		min, max := d.Minimums.AtVec(j), d.Maximums.AtVec(j)
		for i := 0; i < d.Rows; i++ {
			v, err := Scale(min, max, d.Data.At(i, j), a, b)
			if err != nil {
				return errors.Wrapf(err, "column %d", j)
			}
			d.Data.Set(i, j, v)
		}
	}
	return nil
}

func (d *Dataset) computeBounds() {
	d.Minimums = mat.NewVecDense(d.Columns, nil)
	d.Maximums = mat.NewVecDense(d.Columns, nil)
	col := make([]float64, d.Rows)
	for j := 1; j < d.Columns; j++ {
		mat.Col(col, j, d.Data)
		d.Minimums.SetVec(j, floats.Min(col))
		d.Maximums.SetVec(j, floats.Max(col))
	}
}

// DescaleColumns reverses Normalize on m, whose column j was scaled with the bounds of dataset
// column offset+j. It is used to bring predicted outputs back to the original range.
func (d *Dataset) DescaleColumns(m *mat.Dense, offset int) error {
	if d.Minimums == nil || d.Maximums == nil {
		return errors.Wrap(ErrColumnCount, "no column bounds")
	}
	rows, cols := m.Dims()
	if offset < 1 || offset+cols > d.Minimums.Len() {
		return errors.Wrapf(ErrColumnCount, "columns %d to %d are outside the %d known bounds",
			offset, offset+cols-1, d.Minimums.Len())
	}

	a, b := d.Mode.Coefficients()
	for j := 0; j < cols; j++ {
		min, max := d.Minimums.AtVec(offset+j), d.Maximums.AtVec(offset+j)
		for i := 0; i < rows; i++ {
			v, err := Descale(min, max, m.At(i, j), a, b)
			if err != nil {
				return errors.Wrapf(err, "column %d", offset+j)
			}
			m.Set(i, j, v)
		}
	}
	return nil
}
