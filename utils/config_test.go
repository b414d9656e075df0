package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralnet/dataset"
	"neuralnet/nn"
)

func TestParseNeurons(t *testing.T) {
	cases := map[string][]int{
		"[4,3,1]":     {4, 3, 1},
		"4,3,1":       {4, 3, 1},
		" [ 5, 2 ] ":  {5, 2},
		"7":           {7},
		"2 2":         {2, 2},
		"[10,\t1]":    {10, 1},
		"[,3,,1,]":    {3, 1},
		"[12,-1]":     {12, -1},
		"[0004, 001]": {4, 1},
	}
	for in, want := range cases {
		got, err := ParseNeurons(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "[]", "[a,1]", "1.5"} {
		_, err := ParseNeurons(in)
		assert.Error(t, err, in)
	}
}

func trainOptions() Options {
	opts := DefaultOptions()
	opts.Action = ActionTrain
	opts.DumpDir = "model"
	opts.Signals = 3
	opts.Neurons = []int{4, 1}
	return opts
}

func TestValidateOptions(t *testing.T) {
	opts := trainOptions()
	require.NoError(t, ValidateOptions(&opts))

	predict := DefaultOptions()
	predict.Action = ActionPredict
	predict.LoadDir = "model"
	predict.Private = true
	predict.JSONIn = "w.json"
	require.NoError(t, ValidateOptions(&predict))

	cases := map[string]func(*Options){
		"no action":        func(o *Options) { o.Action = "" },
		"bad task":         func(o *Options) { o.Task = "clustering" },
		"no dump dir":      func(o *Options) { o.DumpDir = "" },
		"no signals":       func(o *Options) { o.Signals = 0 },
		"no neurons":       func(o *Options) { o.Neurons = nil },
		"private training": func(o *Options) { o.Private = true },
		"predict json":     func(o *Options) { o.Action, o.LoadDir, o.JSONOut = ActionPredict, "m", "w.json" },
		"predict no dir":   func(o *Options) { o.Action = ActionPredict },
		"train json in":    func(o *Options) { o.JSONIn = "w.json" },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			o := trainOptions()
			modify(&o)
			assert.Error(t, ValidateOptions(&o))
		})
	}
}

func TestNetworkConfig(t *testing.T) {
	opts := trainOptions()
	opts.Activation = "tanh"
	opts.Training = "rprop"
	opts.Layers = 2
	opts.Momentum = 0.2

	cfg, err := opts.NetworkConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, cfg.Neurons)
	assert.Equal(t, 3, cfg.Signals)
	assert.Equal(t, nn.TanhActivation, cfg.Activation)
	assert.Equal(t, nn.ResilientTraining, cfg.Training)
	assert.Equal(t, 0.2, cfg.Momentum)
	assert.Equal(t, 1000, cfg.Epochs)

	opts.Neurons[0] = 9
	assert.Equal(t, 4, cfg.Neurons[0], "config must not share the option slice")

	opts.Layers = 3
	_, err = opts.NetworkConfig()
	assert.ErrorIs(t, err, nn.ErrLayerCount)

	opts.Layers = 0
	opts.Activation = "softmax"
	_, err = opts.NetworkConfig()
	assert.ErrorIs(t, err, nn.ErrActivationType)

	opts.Activation = "linear"
	opts.Eta = -1
	_, err = opts.NetworkConfig()
	assert.ErrorIs(t, err, nn.ErrHyperparameter)
}

func TestDatasetMode(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, dataset.Classification, opts.DatasetMode())
	opts.Task = TaskCurveFitting
	assert.Equal(t, dataset.Regression, opts.DatasetMode())
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
action: train
task: curve-fitting
normalize: true
dump_dir: out/model
signals: 2
neurons_per_layer: [5, 1]
eta: 0.1
epochs: 250
`), 0o600))

	opts := DefaultOptions()
	require.NoError(t, LoadOptions(path, &opts))
	assert.Equal(t, ActionTrain, opts.Action)
	assert.Equal(t, TaskCurveFitting, opts.Task)
	assert.True(t, opts.Normalize)
	assert.Equal(t, "out/model", opts.DumpDir)
	assert.Equal(t, []int{5, 1}, opts.Neurons)
	assert.Equal(t, 0.1, opts.Eta)
	assert.Equal(t, 250, opts.Epochs)
	// untouched keys keep their defaults
	assert.Equal(t, 0.09, opts.Momentum)
	assert.Equal(t, "logistic", opts.Activation)
	require.NoError(t, ValidateOptions(&opts))

	require.NoError(t, os.WriteFile(path, []byte("signals: [1, 2]\n"), 0o600))
	assert.Error(t, LoadOptions(path, &opts))
	assert.Error(t, LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"), &opts))
}
