package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TrainingType selects the Trainer a Network is built with. Persisted in config.bin.
type TrainingType int32

const (
	BackpropTraining TrainingType = iota
	ResilientTraining
)

// TrainerLookup maps the names accepted on the command line to training strategies.
var TrainerLookup = map[string]TrainingType{
	"backprop":        BackpropTraining,
	"backpropagation": BackpropTraining,
	"rprop":           ResilientTraining,
	"resilient":       ResilientTraining,
}

// Trainer returns a fresh strategy for t with its default settings.
func (t TrainingType) Trainer() (Trainer, error) {
	switch t {
	case BackpropTraining:
		return Backprop{}, nil
	case ResilientTraining:
		return NewResilientBackprop(), nil
	}
	return nil, errors.Wrapf(ErrTrainingType, "type %d", int32(t))
}

func (t TrainingType) String() string {
	switch t {
	case BackpropTraining:
		return "backprop"
	case ResilientTraining:
		return "rprop"
	}
	return fmt.Sprintf("TrainingType(%d)", int32(t))
}

// ParseTraining resolves a training strategy name to its selector.
func ParseTraining(name string) (TrainingType, error) {
	t, ok := TrainerLookup[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, errors.Wrapf(ErrTrainingType, "%q", name)
	}
	return t, nil
}

// Config is the topology and the hyperparameters of a Network. It is owned by the caller: a
// Network keeps a reference to it and never modifies it.
type Config struct {
	// Neurons holds the neuron count of every layer, hidden layers first and the output layer
	// last. The number of layers is len(Neurons).
	Neurons []int
	// Signals is the number of input signals, including the constant bias signal at index 0.
	Signals int

	Eta      float64 // learning rate
	Momentum float64
	Epsilon  float64 // convergence threshold on the MSE change between epochs
	Epochs   int     // maximum number of epochs
	Alpha    float64
	Beta     float64

	Activation ActivationType
	Training   TrainingType
}

// DefaultConfig returns a Config with the default hyperparameters and no topology.
func DefaultConfig() Config {
	return Config{
		Eta:        0.5,
		Momentum:   0.09,
		Epsilon:    1e-8,
		Epochs:     1000,
		Alpha:      1.0,
		Beta:       0.0,
		Activation: LogisticActivation,
		Training:   BackpropTraining,
	}
}

// Layers returns the number of layers, hidden and output.
func (c *Config) Layers() int {
	return len(c.Neurons)
}

// Outputs returns the neuron count of the output layer.
func (c *Config) Outputs() int {
	if len(c.Neurons) == 0 {
		return 0
	}
	return c.Neurons[len(c.Neurons)-1]
}

// Validate reports the first precondition c violates.
func (c *Config) Validate() error {
	if len(c.Neurons) == 0 {
		return errors.Wrap(ErrLayerCount, "no layers configured")
	}
	for i, n := range c.Neurons {
		if n < 1 {
			return errors.Wrapf(ErrNeuronCount, "layer %d has %d neurons", i, n)
		}
	}
	if c.Signals < 1 {
		return errors.Wrapf(ErrSignalCount, "%d input signals", c.Signals)
	}
	if c.Epochs < 1 {
		return errors.Wrapf(ErrHyperparameter, "epochs must be positive, got %d", c.Epochs)
	}
	if c.Eta <= 0 {
		return errors.Wrapf(ErrHyperparameter, "learning rate must be positive, got %g", c.Eta)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Wrapf(ErrHyperparameter, "momentum must be in [0,1), got %g", c.Momentum)
	}
	if c.Epsilon < 0 {
		return errors.Wrapf(ErrHyperparameter, "epsilon must not be negative, got %g", c.Epsilon)
	}
	if _, err := c.Activation.Activator(); err != nil {
		return err
	}
	if _, err := c.Training.Trainer(); err != nil {
		return err
	}
	return nil
}

// CheckLayers verifies that a separately declared layer count agrees with the neuron list.
func (c *Config) CheckLayers(declared int) error {
	if declared != len(c.Neurons) {
		return errors.Wrapf(ErrLayerCount, "declared %d layers, got %d neuron counts", declared, len(c.Neurons))
	}
	return nil
}
