package nn

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// File names inside a model directory.
const (
	ConfigFile  = "config.bin"
	WeightsFile = "weights.bin"
)

// Bounds on what a config record may declare.
const (
	maxLayers  = 1 << 16
	maxWeights = 1 << 24 // per layer
)

var byteOrder = binary.LittleEndian

// configRecord is the fixed-size tail of config.bin, following the neuron counts.
type configRecord struct {
	Signals    int64
	Epsilon    float64
	Eta        float64
	Momentum   float64
	Alpha      float64
	Beta       float64
	Epochs     int64
	Activation int32
	Training   int32
}

// WriteConfig writes cfg as a config record: the layer count, one count per layer, then the
// scalar hyperparameters and both strategy selectors.
func WriteConfig(w io.Writer, cfg *Config) error {
	counts := make([]int64, len(cfg.Neurons)+1)
	counts[0] = int64(len(cfg.Neurons))
	for i, n := range cfg.Neurons {
		counts[i+1] = int64(n)
	}
	if err := binary.Write(w, byteOrder, counts); err != nil {
		return errors.Wrap(err, "writing neuron counts")
	}

	rec := configRecord{
		Signals:    int64(cfg.Signals),
		Epsilon:    cfg.Epsilon,
		Eta:        cfg.Eta,
		Momentum:   cfg.Momentum,
		Alpha:      cfg.Alpha,
		Beta:       cfg.Beta,
		Epochs:     int64(cfg.Epochs),
		Activation: int32(cfg.Activation),
		Training:   int32(cfg.Training),
	}
	return errors.Wrap(binary.Write(w, byteOrder, &rec), "writing hyperparameters")
}

// corruption marks err as a corrupted config record while keeping err in the chain.
type corruption struct{ err error }

func (c corruption) Error() string {
	return ErrCorruptedConfig.string + ": " + c.err.Error()
}

func (c corruption) Unwrap() error {
	return c.err
}

func (c corruption) Is(target error) bool {
	return target == ErrCorruptedConfig
}

// ReadConfig reads a config record into cfg, replacing the topology and every hyperparameter.
// cfg is only written once the record validates.
func ReadConfig(r io.Reader, cfg *Config) error {
	var layers int64
	if err := binary.Read(r, byteOrder, &layers); err != nil {
		return corruption{errors.Wrap(err, "reading layer count")}
	}
	if layers < 1 || layers > maxLayers {
		return errors.Wrapf(ErrCorruptedConfig, "layer count %d", layers)
	}
	counts := make([]int64, layers)
	if err := binary.Read(r, byteOrder, counts); err != nil {
		return corruption{errors.Wrap(err, "reading neuron counts")}
	}
	var rec configRecord
	if err := binary.Read(r, byteOrder, &rec); err != nil {
		return corruption{errors.Wrap(err, "reading hyperparameters")}
	}

	if rec.Signals < 1 || rec.Signals > math.MaxInt32 {
		return errors.Wrapf(ErrCorruptedConfig, "%d input signals", rec.Signals)
	}
	if rec.Epochs > math.MaxInt32 {
		return errors.Wrapf(ErrCorruptedConfig, "%d epochs", rec.Epochs)
	}
	neurons := make([]int, layers)
	inputs := rec.Signals
	for i, n := range counts {
		if n < 1 || n > math.MaxInt32 {
			return errors.Wrapf(ErrCorruptedConfig, "layer %d has %d neurons", i, n)
		}
		if n*inputs > maxWeights {
			return errors.Wrapf(ErrCorruptedConfig, "layer %d has %d×%d weights", i, n, inputs)
		}
		neurons[i] = int(n)
		inputs = n + 1
	}

	read := Config{
		Neurons:    neurons,
		Signals:    int(rec.Signals),
		Epsilon:    rec.Epsilon,
		Eta:        rec.Eta,
		Momentum:   rec.Momentum,
		Alpha:      rec.Alpha,
		Beta:       rec.Beta,
		Epochs:     int(rec.Epochs),
		Activation: ActivationType(rec.Activation),
		Training:   TrainingType(rec.Training),
	}
	if err := read.Validate(); err != nil {
		return corruption{err}
	}
	*cfg = read
	return nil
}

// WriteWeights writes every layer's weight matrix in layer order.
func WriteWeights(w io.Writer, net *Network) error {
	for i, layer := range net.layers {
		if _, err := layer.weights.MarshalBinaryTo(w); err != nil {
			return errors.Wrapf(err, "marshalling weights of layer %d", i)
		}
	}
	return nil
}

// ReadWeights reads one weight matrix per layer into net, in layer order. Every matrix must have
// the shape of the layer it replaces.
func ReadWeights(r io.Reader, net *Network) error {
	for i, layer := range net.layers {
		var m mat.Dense
		if _, err := m.UnmarshalBinaryFrom(r); err != nil {
			return errors.Wrapf(err, "unmarshalling weights of layer %d", i)
		}
		rows, cols := m.Dims()
		if rows != layer.Neurons() || cols != layer.Inputs() {
			return errors.Wrapf(ErrDimension, "layer %d: stored %dx%d weights, expected %dx%d",
				i, rows, cols, layer.Neurons(), layer.Inputs())
		}
		layer.weights.Copy(&m)
		layer.resetScratch()
	}
	return nil
}

// Dump writes config.bin and weights.bin for net into dir, creating dir if needed.
func Dump(net *Network, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating model directory")
	}
	if err := writeFile(filepath.Join(dir, ConfigFile), func(w io.Writer) error {
		return WriteConfig(w, net.config)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, WeightsFile), func(w io.Writer) error {
		return WriteWeights(w, net)
	})
}

// Load reads the model stored in dir. The configuration is read into cfg, which becomes the new
// network's configuration; a nil cfg allocates one. The restored network has the stored weights
// and zeroed scratch buffers.
func Load(cfg *Config, dir string) (*Network, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := readFile(filepath.Join(dir, ConfigFile), func(r io.Reader) error {
		return ReadConfig(r, cfg)
	}); err != nil {
		return nil, err
	}

	net, err := NewNetwork(cfg, nil)
	if err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, WeightsFile), func(r io.Reader) error {
		return ReadWeights(r, net)
	}); err != nil {
		return nil, err
	}
	return net, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Base(path))
	}
	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", filepath.Base(path))
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "flushing %s", filepath.Base(path))
	}
	return errors.Wrapf(f.Close(), "closing %s", filepath.Base(path))
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filepath.Base(path))
	}
	defer f.Close()
	return errors.Wrapf(read(bufio.NewReader(f)), "reading %s", filepath.Base(path))
}
