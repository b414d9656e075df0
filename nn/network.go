package nn

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// defaultSeed seeds the weight initialisation when NewNetwork is given no source.
const defaultSeed = 1

// Network is a fully-connected feedforward perceptron. Forward and backward passes mutate the
// per-layer scratch buffers in place, so a Network must not be used from several goroutines
// at once.
type Network struct {
	config    *Config
	layers    []*Layer
	activator Activator
	trainer   Trainer
}

// NewNetwork builds a network for cfg, drawing the initial weights from src. The network keeps
// a reference to cfg, which must not be modified afterwards. A nil src uses a fixed seed.
func NewNetwork(cfg *Config, src rand.Source) (*Network, error) {
	if cfg == nil {
		return nil, errors.New("nil network configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid network configuration")
	}
	activator, err := cfg.Activation.Activator()
	if err != nil {
		return nil, err
	}
	trainer, err := cfg.Training.Trainer()
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewSource(defaultSeed)
	}

	net := &Network{
		config:    cfg,
		layers:    make([]*Layer, cfg.Layers()),
		activator: activator,
		trainer:   trainer,
	}

	last := len(net.layers) - 1
	for i := range net.layers {
		var inputs int
		if i == 0 { // fed by the input signals, bias included
			inputs = cfg.Signals
		} else { // fed by the previous layer's neurons plus its bias slot
			inputs = cfg.Neurons[i-1] + 1
		}
		net.layers[i] = newLayer(cfg.Neurons[i], inputs, i == last, src)
	}

	return net, nil
}

// Config returns the configuration the network was built from.
func (net *Network) Config() *Config {
	return net.config
}

// Layers returns the layers in order, the output layer last.
func (net *Network) Layers() []*Layer {
	return net.layers
}

// Layer returns the i-th layer.
func (net *Network) Layer(i int) *Layer {
	return net.layers[i]
}

// Activator returns the activation function used by every neuron.
func (net *Network) Activator() Activator {
	return net.activator
}

// Trainer returns the training strategy used by Train.
func (net *Network) Trainer() Trainer {
	return net.trainer
}

// SetTrainer replaces the training strategy, e.g. with a ResilientBackprop using non-default
// step bounds.
func (net *Network) SetTrainer(t Trainer) {
	net.trainer = t
}

func (net *Network) lastIndex() int {
	return len(net.layers) - 1
}

// Output returns the terminal layer's output buffer, i.e. the latest prediction.
func (net *Network) Output() *mat.VecDense {
	return net.layers[net.lastIndex()].output
}

// Train runs the network's training strategy over s until its stop condition is met.
func (net *Network) Train(s *Samples, report ReportFunc) (Result, error) {
	if net.trainer == nil {
		return Result{}, errors.Wrap(ErrTrainingType, "no training strategy")
	}
	return net.trainer.Train(net, s, report)
}

// Forward propagates one input vector, bias signal at index 0 included, and returns a copy of
// the network's prediction.
func (net *Network) Forward(input []float64) ([]float64, error) {
	if len(input) != net.config.Signals {
		return nil, errors.Wrapf(ErrSignalCount, "expected %d signals, got %d", net.config.Signals, len(input))
	}
	net.feedForward(mat.NewVecDense(len(input), input))
	return outputCopy(net.Output()), nil
}

// ForwardFromAggregate finishes a forward pass whose first-layer aggregates were computed
// elsewhere, for example under encryption.
func (net *Network) ForwardFromAggregate(aggregate []float64) ([]float64, error) {
	first := net.layers[0]
	if len(aggregate) != first.Neurons() {
		return nil, errors.Wrapf(ErrDimension, "expected %d aggregates, got %d", first.Neurons(), len(aggregate))
	}
	for i, v := range aggregate {
		first.aggregate.SetVec(i, v)
	}
	first.activate(net.activator, net.config.Alpha, net.config.Beta)
	net.feedForwardFrom(1)
	return outputCopy(net.Output()), nil
}

// Predict feeds every row of signals through the network and returns one row of outputs per
// input row.
func (net *Network) Predict(signals mat.Matrix) (*mat.Dense, error) {
	rows, cols := signals.Dims()
	if cols != net.config.Signals {
		return nil, errors.Wrapf(ErrSignalCount, "expected %d signal columns, got %d", net.config.Signals, cols)
	}
	if rows == 0 {
		return nil, errors.Wrap(ErrEmptySamples, "nothing to predict")
	}
	results := mat.NewDense(rows, net.config.Outputs(), nil)
	row := make([]float64, cols)
	input := mat.NewVecDense(cols, row)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, signals)
		net.feedForward(input)
		results.SetRow(i, outputCopy(net.Output()))
	}
	return results, nil
}

func outputCopy(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
