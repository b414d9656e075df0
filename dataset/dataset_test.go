package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const xorData = `4
3
0 0 0
0 1 1
1 0 1
1 1 0
`

func TestRead(t *testing.T) {
	d, err := Read(strings.NewReader(xorData), Classification)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Rows)
	assert.Equal(t, 4, d.Columns)

	want := mat.NewDense(4, 4, []float64{
		-1, 0, 0, 0,
		-1, 0, 1, 1,
		-1, 1, 0, 1,
		-1, 1, 1, 0,
	})
	assert.True(t, mat.Equal(want, d.Data))
}

func TestReadLayoutIndependent(t *testing.T) {
	d, err := Read(strings.NewReader("2\n2\n1.5 -2e3\t\n  7\n\n0.25 trailing"), Regression)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1.5, -2000}, mat.Row(nil, 0, d.Data))
	assert.Equal(t, []float64{-1, 7, 0.25}, mat.Row(nil, 1, d.Data))
}

func TestReadErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrHeader},
		{"no column line", "3\n", ErrHeader},
		{"bad row count", "three\n2\n", ErrHeader},
		{"zero columns", "3\n0\n", ErrHeader},
		{"short data", "2\n2\n1 2 3\n", ErrShortData},
		{"oversized header", "4294967296\n4294967296\n1 2 3\n", ErrHeader},
		{"too many cells", "65536\n65536\n1 2 3\n", ErrHeader},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.input), Classification)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Read(strings.NewReader("1\n2\n1 x\n"), Classification)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Row)
	assert.Equal(t, 2, perr.Column)
	assert.ErrorIs(t, err, strconv.ErrSyntax)
}

func TestSamples(t *testing.T) {
	d, err := Read(strings.NewReader(xorData), Classification)
	require.NoError(t, err)

	s, err := d.Samples(3)
	require.NoError(t, err)
	r, c := s.Signals.Dims()
	assert.Equal(t, [2]int{4, 3}, [2]int{r, c})
	r, c = s.Desired.Dims()
	assert.Equal(t, [2]int{4, 1}, [2]int{r, c})
	assert.Equal(t, []float64{0, 1, 1, 0}, mat.Col(nil, 0, s.Desired))

	d.Data.Set(1, 1, 42)
	assert.Equal(t, 0.0, s.Signals.At(1, 1))

	_, err = d.Samples(4)
	assert.ErrorIs(t, err, ErrColumnCount)
}

func TestWriteMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, mat.NewDense(2, 2, []float64{0.5, 1e-7, 3, 0.1234567})))
	assert.Equal(t, "0.5 1e-07 \n3 0.123457 \n", buf.String())
}

func TestScaleDescaleInverse(t *testing.T) {
	for _, mode := range []Mode{Classification, Regression} {
		a, b := mode.Coefficients()
		min, max := -3.5, 12.25
		for _, x := range []float64{min, -1, 0, 0.3, 7.75, max} {
			s, err := Scale(min, max, x, a, b)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s, -b-1e-12)
			assert.LessOrEqual(t, s, a-b+1e-12)

			back, err := Descale(min, max, s, a, b)
			require.NoError(t, err)
			assert.InDelta(t, x, back, 1e-12, "%s x=%g", mode, x)
		}
	}
}

func TestScaleRanges(t *testing.T) {
	a, b := Classification.Coefficients()
	lo, _ := Scale(2, 4, 2, a, b)
	hi, _ := Scale(2, 4, 4, a, b)
	assert.Equal(t, [2]float64{0, 1}, [2]float64{lo, hi})

	a, b = Regression.Coefficients()
	lo, _ = Scale(2, 4, 2, a, b)
	hi, _ = Scale(2, 4, 4, a, b)
	assert.Equal(t, [2]float64{-1, 1}, [2]float64{lo, hi})
}

func TestScaleDegenerate(t *testing.T) {
	_, err := Scale(1, 1, 1, 1, 0)
	assert.ErrorIs(t, err, ErrDegenerateColumn)
	_, err = Descale(1, 1, 1, 1, 0)
	assert.ErrorIs(t, err, ErrDegenerateColumn)

	d, err := Read(strings.NewReader("2\n2\n1 5\n2 5\n"), Classification)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Normalize(), ErrDegenerateColumn)
}

func TestNormalize(t *testing.T) {
	d, err := Read(strings.NewReader("3\n2\n0 10\n5 20\n10 30\n"), Regression)
	require.NoError(t, err)
	require.NoError(t, d.Normalize())

	assert.Equal(t, []float64{-1, -1, -1}, mat.Col(nil, 0, d.Data))
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, mat.Col(nil, 1, d.Data), 1e-12)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, mat.Col(nil, 2, d.Data), 1e-12)
	assert.Equal(t, []float64{0, 0, 10}, d.Minimums.RawVector().Data)
	assert.Equal(t, []float64{0, 10, 30}, d.Maximums.RawVector().Data)

	pred := mat.NewDense(2, 1, []float64{-1, 0.5})
	require.NoError(t, d.DescaleColumns(pred, 2))
	assert.InDeltaSlice(t, []float64{10, 25}, mat.Col(nil, 0, pred), 1e-12)

	assert.ErrorIs(t, d.DescaleColumns(pred, 3), ErrColumnCount)
}

func TestMinMaxRoundTrip(t *testing.T) {
	train, err := Read(strings.NewReader("3\n3\n0 10 1\n5 20 2\n10 30 3\n"), Classification)
	require.NoError(t, err)
	require.NoError(t, train.Normalize())

	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, train.DumpMinMax(dir))
	_, err = os.Stat(filepath.Join(dir, MinMaxFile))
	require.NoError(t, err)

	// prediction input carries the signals only
	in, err := Read(strings.NewReader("1\n2\n5 30\n"), Classification)
	require.NoError(t, err)
	require.NoError(t, in.LoadMinMax(dir))
	assert.True(t, mat.Equal(train.Minimums, in.Minimums))
	assert.True(t, mat.Equal(train.Maximums, in.Maximums))

	require.NoError(t, in.Normalize())
	assert.InDeltaSlice(t, []float64{-1, 0.5, 1}, mat.Row(nil, 0, in.Data), 1e-12)

	out := mat.NewDense(1, 1, []float64{0.5})
	require.NoError(t, in.DescaleColumns(out, 3))
	assert.InDelta(t, 2.0, out.At(0, 0), 1e-12)
}

func TestReadMinMaxCorrupted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMinMax(&buf, mat.NewVecDense(2, []float64{0, 1}), mat.NewVecDense(2, []float64{2, 3})))
	data := buf.Bytes()
	data[0] = 5

	_, _, err := ReadMinMax(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrColumnCount)

	assert.ErrorIs(t, WriteMinMax(&buf, mat.NewVecDense(2, nil), mat.NewVecDense(3, nil)), ErrColumnCount)
}
