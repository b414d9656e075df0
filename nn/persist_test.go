package nn

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestConfigRecordRoundTrip(t *testing.T) {
	cfg := Config{
		Neurons:    []int{7, 3, 2},
		Signals:    5,
		Eta:        0.25,
		Momentum:   0.3,
		Epsilon:    1e-6,
		Epochs:     321,
		Alpha:      1.5,
		Beta:       -0.25,
		Activation: TanhActivation,
		Training:   ResilientTraining,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, &cfg))
	assert.Equal(t, 8*(1+3)+8+5*8+8+4+4, buf.Len())

	var got Config
	require.NoError(t, ReadConfig(&buf, &got))
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestReadConfigCorrupted(t *testing.T) {
	cfg := testConfig(3, 2, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, cfg))
	data := buf.Bytes()

	err := ReadConfig(bytes.NewReader(data[:len(data)-3]), &Config{})
	assert.ErrorIs(t, err, ErrCorruptedConfig)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := append([]byte(nil), data...)
	bad[0] = 0 // zero layers
	err = ReadConfig(bytes.NewReader(bad), &Config{})
	assert.ErrorIs(t, err, ErrCorruptedConfig)

	bad = append([]byte(nil), data...)
	bad[len(bad)-8] = 9 // activation selector
	skeleton := Config{Neurons: []int{9}}
	err = ReadConfig(bytes.NewReader(bad), &skeleton)
	assert.ErrorIs(t, err, ErrActivationType)
	assert.ErrorIs(t, err, ErrCorruptedConfig)
	assert.Equal(t, []int{9}, skeleton.Neurons, "skeleton written before validation")
}

func TestReadConfigOversized(t *testing.T) {
	cases := map[string]Config{
		"wide first layer":  {Neurons: []int{1 << 30}, Signals: 1 << 30},
		"wide second layer": {Neurons: []int{1 << 20, 1 << 20}, Signals: 2},
		"huge signal count": {Neurons: []int{1}, Signals: 1 << 40},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := cfg
			defaults := DefaultConfig()
			cfg.Eta, cfg.Epochs, cfg.Alpha = defaults.Eta, defaults.Epochs, defaults.Alpha
			var buf bytes.Buffer
			require.NoError(t, WriteConfig(&buf, &cfg))

			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), buf.Bytes(), 0o600))
			_, err := Load(nil, dir)
			assert.ErrorIs(t, err, ErrCorruptedConfig)
		})
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	cfg := testConfig(4, 5, 3)
	cfg.Activation = TanhActivation
	net, err := NewNetwork(cfg, rand.NewSource(13))
	require.NoError(t, err)

	samples, err := NewSamples(
		mat.NewDense(2, 4, []float64{-1, 0.1, 0.2, 0.3, -1, 0.9, 0.8, 0.7}),
		mat.NewDense(2, 3, []float64{0, 0.5, 1, 1, 0.5, 0}),
	)
	require.NoError(t, err)
	_, err = net.Train(samples, nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, Dump(net, dir))
	for _, name := range []string{ConfigFile, WeightsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	loaded, err := Load(nil, dir)
	require.NoError(t, err)
	if diff := cmp.Diff(*cfg, *loaded.Config()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	for i, layer := range loaded.Layers() {
		assert.True(t, mat.Equal(net.Layer(i).Weights(), layer.Weights()), "layer %d", i)
		assert.Equal(t, 0.0, mat.Sum(layer.PrevWeights()), "layer %d", i)
	}

	input := []float64{-1, 0.33, -0.5, 0.25}
	want, err := net.Forward(input)
	require.NoError(t, err)
	got, err := loaded.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFillsSkeleton(t *testing.T) {
	net, err := NewNetwork(testConfig(3, 2, 1), nil)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, Dump(net, dir))

	var skeleton Config
	loaded, err := Load(&skeleton, dir)
	require.NoError(t, err)
	assert.Same(t, &skeleton, loaded.Config())
	assert.Equal(t, []int{2, 1}, skeleton.Neurons)
}

func TestReadWeightsShapeMismatch(t *testing.T) {
	small, err := NewNetwork(testConfig(3, 2, 1), nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteWeights(&buf, small))

	large, err := NewNetwork(testConfig(3, 4, 1), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, ReadWeights(&buf, large), ErrDimension)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
