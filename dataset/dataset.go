// Package dataset reads header-prefixed numeric matrices, prepends the bias column the network
// expects and provides reversible min-max scaling of their columns.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"neuralnet/nn"
)

// Bias is the constant stored in column 0 of every dataset.
const Bias = -1.0

// maxCells bounds the matrix size a header may declare.
const maxCells = 1 << 28

// Error is a dataset error for which no additional information is necessary.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrHeader           = Error{"could not read the row and column counts"}
	ErrShortData        = Error{"fewer values than the header declares"}
	ErrDegenerateColumn = Error{"column minimum equals its maximum"}
	ErrColumnCount      = Error{"column count mismatch"}
)

// ParseError reports a value that is not a floating-point number.
type ParseError struct {
	Row, Column int
	Value       string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d, column %d: parsing %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Mode selects the scaling range of a dataset.
type Mode int

const (
	// Classification scales into [0, 1].
	Classification Mode = iota
	// Regression scales into [-1, 1], for curve fitting.
	Regression
)

// Coefficients returns the (a, b) pair passed to Scale for m.
func (m Mode) Coefficients() (a, b float64) {
	if m == Regression {
		return 2, 1
	}
	return 1, 0
}

func (m Mode) String() string {
	switch m {
	case Classification:
		return "pattern-classification"
	case Regression:
		return "curve-fitting"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Dataset is a sample matrix whose column 0 holds the bias signal, followed by the input
// signals and, for training data, the desired outputs.
type Dataset struct {
	Rows    int
	Columns int // bias column included
	Data    *mat.Dense
	Mode    Mode

	// Per-column bounds used for scaling, index 0 unused. Nil until Normalize computes them
	// or LoadMinMax restores them.
	Minimums *mat.VecDense
	Maximums *mat.VecDense
}

// Read parses a dataset: a line holding the row count, a line holding the column count, then
// rows×columns whitespace-separated values in row-major order. Values past the declared count
// are ignored.
func Read(r io.Reader, mode Mode) (*Dataset, error) {
	br := bufio.NewReader(r)
	rows, err := readCount(br, "row")
	if err != nil {
		return nil, err
	}
	columns, err := readCount(br, "column")
	if err != nil {
		return nil, err
	}
	if columns >= maxCells/rows {
		return nil, errors.Wrapf(ErrHeader, "%d×%d values", rows, columns)
	}

	d := &Dataset{
		Rows:    rows,
		Columns: columns + 1,
		Data:    mat.NewDense(rows, columns+1, nil),
		Mode:    mode,
	}

	scanner := bufio.NewScanner(br)
	scanner.Split(bufio.ScanWords)
	for i := 0; i < rows; i++ {
		d.Data.Set(i, 0, Bias)
		for j := 1; j <= columns; j++ {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, errors.Wrap(err, "reading values")
				}
				return nil, errors.Wrapf(ErrShortData, "expected %d values, got %d",
					rows*columns, i*columns+j-1)
			}
			v, err := strconv.ParseFloat(scanner.Text(), 64)
			if err != nil {
				return nil, &ParseError{Row: i + 1, Column: j, Value: scanner.Text(), Err: err}
			}
			d.Data.Set(i, j, v)
		}
	}
	return d, nil
}

func readCount(br *bufio.Reader, what string) (int, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return 0, errors.Wrapf(ErrHeader, "reading the %s count: %v", what, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, errors.Wrapf(ErrHeader, "parsing the %s count: %v", what, err)
	}
	if n < 1 {
		return 0, errors.Wrapf(ErrHeader, "%s count %d", what, n)
	}
	return n, nil
}

// Samples splits the dataset into a training set: the first signals columns, bias included,
// become the input signals and the rest the desired outputs. Both are copies.
func (d *Dataset) Samples(signals int) (*nn.Samples, error) {
	if signals < 1 || signals >= d.Columns {
		return nil, errors.Wrapf(ErrColumnCount, "%d signals leave no output columns out of %d", signals, d.Columns)
	}
	return nn.NewSamples(
		d.Data.Slice(0, d.Rows, 0, signals),
		d.Data.Slice(0, d.Rows, signals, d.Columns),
	)
}

// WriteMatrix prints m one row per line, each value followed by a space.
func WriteMatrix(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			bw.WriteString(strconv.FormatFloat(m.At(i, j), 'g', 6, 64))
			bw.WriteByte(' ')
		}
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "writing predictions")
}
