package dataset

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MinMaxFile is the name of the column bounds file inside a model directory.
const MinMaxFile = "minmax.bin"

// WriteMinMax writes the column count, then the minimums and the maximums.
func WriteMinMax(w io.Writer, min, max *mat.VecDense) error {
	if min.Len() != max.Len() {
		return errors.Wrapf(ErrColumnCount, "%d minimums but %d maximums", min.Len(), max.Len())
	}
	if err := binary.Write(w, binary.LittleEndian, int64(min.Len())); err != nil {
		return errors.Wrap(err, "writing column count")
	}
	if _, err := min.MarshalBinaryTo(w); err != nil {
		return errors.Wrap(err, "marshalling minimums")
	}
	_, err := max.MarshalBinaryTo(w)
	return errors.Wrap(err, "marshalling maximums")
}

// ReadMinMax reads bounds written by WriteMinMax.
func ReadMinMax(r io.Reader) (min, max *mat.VecDense, err error) {
	var columns int64
	if err := binary.Read(r, binary.LittleEndian, &columns); err != nil {
		return nil, nil, errors.Wrap(err, "reading column count")
	}
	min, max = &mat.VecDense{}, &mat.VecDense{}
	if _, err := min.UnmarshalBinaryFrom(r); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshalling minimums")
	}
	if _, err := max.UnmarshalBinaryFrom(r); err != nil {
		return nil, nil, errors.Wrap(err, "unmarshalling maximums")
	}
	if int64(min.Len()) != columns || int64(max.Len()) != columns {
		return nil, nil, errors.Wrapf(ErrColumnCount, "header says %d columns, vectors hold %d and %d",
			columns, min.Len(), max.Len())
	}
	return min, max, nil
}

// DumpMinMax stores the dataset's column bounds in dir.
func (d *Dataset) DumpMinMax(dir string) error {
	if d.Minimums == nil || d.Maximums == nil {
		return errors.Wrap(ErrColumnCount, "no column bounds to dump")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating model directory")
	}
	f, err := os.Create(filepath.Join(dir, MinMaxFile))
	if err != nil {
		return errors.Wrap(err, "creating bounds file")
	}
	bw := bufio.NewWriter(f)
	if err := WriteMinMax(bw, d.Minimums, d.Maximums); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "flushing bounds file")
	}
	return errors.Wrap(f.Close(), "closing bounds file")
}

// LoadMinMax restores column bounds stored in dir by DumpMinMax.
func (d *Dataset) LoadMinMax(dir string) error {
	f, err := os.Open(filepath.Join(dir, MinMaxFile))
	if err != nil {
		return errors.Wrap(err, "opening bounds file")
	}
	defer f.Close()

	min, max, err := ReadMinMax(bufio.NewReader(f))
	if err != nil {
		return err
	}
	d.Minimums, d.Maximums = min, max
	return nil
}
