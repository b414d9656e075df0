package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"neuralnet/nn"
)

// WeightsVersion is written into every exported weight file.
const WeightsVersion = "1"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version    string                 `json:"version"`
	Activation string                 `json:"activation"`
	Neurons    []int                  `json:"neurons"`
	Signals    int                    `json:"signals"`
	Layers     map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer. The bias of a neuron is the weight of
// its constant -1 input signal.
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

// LayerName returns the key of layer i in ModelWeights.Layers.
func LayerName(i int) string {
	return fmt.Sprintf("layer%d", i)
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	return errors.Wrap(os.WriteFile(filepath, data, 0644), "failed to write weights file")
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}
	return &weights, nil
}

// ExportWeights copies the weights of net, splitting off the bias column of every layer.
func ExportWeights(net *nn.Network) *ModelWeights {
	cfg := net.Config()
	mw := &ModelWeights{
		Version:    WeightsVersion,
		Activation: cfg.Activation.String(),
		Neurons:    append([]int(nil), cfg.Neurons...),
		Signals:    cfg.Signals,
		Layers:     make(map[string]LayerWeight, len(net.Layers())),
	}
	for i, layer := range net.Layers() {
		w := layer.Weights()
		rows, cols := w.Dims()
		name := LayerName(i)
		lw := LayerWeight{Bias: MatrixToWeightData(name+".bias", w.Slice(0, rows, 0, 1))}
		if cols > 1 {
			lw.Weight = MatrixToWeightData(name+".weight", w.Slice(0, rows, 1, cols))
		}
		mw.Layers[name] = lw
	}
	return mw
}

// ImportWeights writes exported weights back into net, whose topology must match.
func ImportWeights(net *nn.Network, mw *ModelWeights) error {
	for i, layer := range net.Layers() {
		name := LayerName(i)
		rows, cols := layer.Weights().Dims()
		lw, ok := mw.Layers[name]
		if !ok || lw.Bias == nil || (lw.Weight == nil) != (cols == 1) {
			return errors.Errorf("missing or unexpected weights for %s", name)
		}
		bias, err := WeightDataToMatrix(lw.Bias)
		if err != nil {
			return err
		}
		if br, bc := bias.Dims(); br != rows || bc != 1 {
			return errors.Wrapf(nn.ErrDimension, "%s: got %dx%d bias for %d neurons", name, br, bc, rows)
		}
		if lw.Weight != nil {
			weight, err := WeightDataToMatrix(lw.Weight)
			if err != nil {
				return err
			}
			if wr, wc := weight.Dims(); wr != rows || wc != cols-1 {
				return errors.Wrapf(nn.ErrDimension, "%s: got %dx%d weights for a %dx%d layer",
					name, wr, wc, rows, cols-1)
			}
			layer.Weights().Slice(0, rows, 1, cols).(*mat.Dense).Copy(weight)
		}
		layer.Weights().Slice(0, rows, 0, 1).(*mat.Dense).Copy(bias)
	}
	return nil
}

// MatrixToWeightData converts a matrix to serializable weight data
func MatrixToWeightData(name string, m mat.Matrix) *WeightData {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return &WeightData{
		Name:  name,
		Shape: []int{rows, cols},
		Data:  data,
	}
}

// WeightDataToMatrix converts weight data back to a matrix
func WeightDataToMatrix(wd *WeightData) (*mat.Dense, error) {
	if len(wd.Shape) != 2 || wd.Shape[0] < 1 || wd.Shape[1] < 1 || wd.Shape[0]*wd.Shape[1] != len(wd.Data) {
		return nil, errors.Wrapf(nn.ErrDimension, "%s: shape %v with %d values", wd.Name, wd.Shape, len(wd.Data))
	}
	return mat.NewDense(wd.Shape[0], wd.Shape[1], append([]float64{}, wd.Data...)), nil
}

// LoadModel loads the model dumped in dir. If jsonPath is set, the weights exported there replace
// the dumped ones; their topology must match config.bin.
func LoadModel(dir, jsonPath string) (*nn.Network, error) {
	net, err := nn.Load(nil, dir)
	if err != nil {
		return nil, err
	}
	if jsonPath == "" {
		return net, nil
	}
	mw, err := LoadWeights(jsonPath)
	if err != nil {
		return nil, err
	}
	cfg := net.Config()
	if mw.Signals != cfg.Signals || !slices.Equal(mw.Neurons, cfg.Neurons) {
		return nil, errors.Wrapf(nn.ErrDimension, "%s holds a %d→%v network, model is %d→%v",
			jsonPath, mw.Signals, mw.Neurons, cfg.Signals, cfg.Neurons)
	}
	if err := ImportWeights(net, mw); err != nil {
		return nil, errors.Wrapf(err, "importing %s", jsonPath)
	}
	return net, nil
}
