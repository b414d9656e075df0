package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"neuralnet/dataset"
	"neuralnet/nn"
)

// Actions and tasks accepted in Options.
const (
	ActionTrain   = "train"
	ActionPredict = "predict"

	TaskClassification = "pattern-classification"
	TaskCurveFitting   = "curve-fitting"
)

// Options holds the command line configuration. It can also be read from a YAML file.
type Options struct {
	Action    string `yaml:"action"`
	Task      string `yaml:"task"`
	Normalize bool   `yaml:"normalize"`

	InFile  string `yaml:"in_file"`
	OutFile string `yaml:"out_file"`
	DumpDir string `yaml:"dump_dir"`
	LoadDir string `yaml:"load_dir"`
	JSONOut string `yaml:"json_out"`
	JSONIn  string `yaml:"json_in"`

	Signals    int    `yaml:"signals"`
	Layers     int    `yaml:"layers"`
	Neurons    []int  `yaml:"neurons_per_layer"`
	Activation string `yaml:"activation"`
	Training   string `yaml:"training"`

	Epsilon  float64 `yaml:"epsilon"`
	Eta      float64 `yaml:"eta"`
	Momentum float64 `yaml:"momentum"`
	Epochs   int     `yaml:"epochs"`
	Alpha    float64 `yaml:"alpha"`
	Beta     float64 `yaml:"beta"`
	Seed     uint64  `yaml:"seed"`

	Private bool `yaml:"private"`
	Verbose bool `yaml:"verbose"`
}

// DefaultOptions returns the options used when nothing else is given.
func DefaultOptions() Options {
	cfg := nn.DefaultConfig()
	return Options{
		Task:       TaskClassification,
		Activation: cfg.Activation.String(),
		Training:   cfg.Training.String(),
		Epsilon:    cfg.Epsilon,
		Eta:        cfg.Eta,
		Momentum:   cfg.Momentum,
		Epochs:     cfg.Epochs,
		Alpha:      cfg.Alpha,
		Beta:       cfg.Beta,
		Seed:       1,
	}
}

// LoadOptions reads a YAML option file on top of opts. Keys missing from the file keep the
// values already in opts.
func LoadOptions(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading option file")
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return errors.Wrapf(err, "parsing option file %s", path)
	}
	return nil
}

// ParseNeurons parses a neuron count list such as "[4,3,1]" or "4, 3, 1".
func ParseNeurons(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(parts) == 0 {
		return nil, errors.New("empty neuron count list")
	}
	neurons := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "neuron count %d", i+1)
		}
		neurons[i] = n
	}
	return neurons, nil
}

// ValidateOptions checks that opts describe a runnable action.
func ValidateOptions(opts *Options) error {
	switch opts.Task {
	case TaskClassification, TaskCurveFitting:
	default:
		return errors.Errorf("task must be %q or %q, got %q", TaskClassification, TaskCurveFitting, opts.Task)
	}

	switch opts.Action {
	case ActionTrain:
		if opts.DumpDir == "" {
			return errors.New("training needs a dump directory")
		}
		if opts.Signals < 1 {
			return errors.Errorf("signal count must be positive, got %d", opts.Signals)
		}
		if len(opts.Neurons) == 0 {
			return errors.New("training needs the neurons per layer")
		}
		if opts.Private {
			return errors.New("private mode only applies to prediction")
		}
		if opts.JSONIn != "" {
			return errors.New("JSON weights are only imported for prediction")
		}
	case ActionPredict:
		if opts.LoadDir == "" {
			return errors.New("prediction needs a load directory")
		}
		if opts.JSONOut != "" {
			return errors.New("weights are only exported after training")
		}
	default:
		return errors.Errorf("exactly one of train or predict must be given, got %q", opts.Action)
	}
	return nil
}

// DatasetMode returns the scaling mode matching the task.
func (o *Options) DatasetMode() dataset.Mode {
	if o.Task == TaskCurveFitting {
		return dataset.Regression
	}
	return dataset.Classification
}

// NetworkConfig builds the network configuration described by o. A non-zero layer count must
// match the neuron list.
func (o *Options) NetworkConfig() (*nn.Config, error) {
	activation, err := nn.ParseActivation(o.Activation)
	if err != nil {
		return nil, err
	}
	training, err := nn.ParseTraining(o.Training)
	if err != nil {
		return nil, err
	}
	cfg := &nn.Config{
		Neurons:    append([]int(nil), o.Neurons...),
		Signals:    o.Signals,
		Eta:        o.Eta,
		Momentum:   o.Momentum,
		Epsilon:    o.Epsilon,
		Epochs:     o.Epochs,
		Alpha:      o.Alpha,
		Beta:       o.Beta,
		Activation: activation,
		Training:   training,
	}
	if o.Layers != 0 {
		if err := cfg.CheckLayers(o.Layers); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
