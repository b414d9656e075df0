package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// biasSignal is the constant fed through the bias slot of every non-terminal layer.
const biasSignal = -1.0

// Layer is one fully-connected set of neurons. Apart from its weights, every buffer is scratch
// overwritten by each forward or backward pass, so a Layer must not be shared between
// concurrent passes.
type Layer struct {
	weights     *mat.Dense    // neurons × inputs
	aggregate   *mat.VecDense // neurons
	output      *mat.VecDense // neurons, plus a leading bias slot unless terminal
	gradient    *mat.VecDense // neurons
	prevWeights *mat.Dense    // weights before the last update, for momentum

	isOutput bool
}

func newLayer(neurons, inputs int, isOutput bool, src rand.Source) *Layer {
	outputs := neurons + 1
	if isOutput {
		outputs = neurons
	}
	return &Layer{
		weights:     mat.NewDense(neurons, inputs, uniformArray(neurons*inputs, src)),
		aggregate:   mat.NewVecDense(neurons, nil),
		output:      mat.NewVecDense(outputs, nil),
		gradient:    mat.NewVecDense(neurons, nil),
		prevWeights: mat.NewDense(neurons, inputs, nil),
		isOutput:    isOutput,
	}
}

// uniformArray draws size values uniformly from the open interval (0, 1).
func uniformArray(size int, src rand.Source) []float64 {
	dist := distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: src,
	}

	data := make([]float64, size)
	for i := 0; i < size; i++ {
		w := dist.Rand()
		if w == 0 {
			// discard and try again
			i--
			continue
		}
		data[i] = w
	}
	return data
}

// Neurons returns the number of neurons in the layer.
func (l *Layer) Neurons() int {
	r, _ := l.weights.Dims()
	return r
}

// Inputs returns the number of signals feeding every neuron, bias included.
func (l *Layer) Inputs() int {
	_, c := l.weights.Dims()
	return c
}

// IsOutput reports whether l is the terminal layer of its network.
func (l *Layer) IsOutput() bool {
	return l.isOutput
}

// Weights returns the layer's weight matrix. The matrix is live: changes are seen by the
// next forward pass.
func (l *Layer) Weights() *mat.Dense {
	return l.weights
}

// PrevWeights returns the weights as they were before the most recent update.
func (l *Layer) PrevWeights() *mat.Dense {
	return l.prevWeights
}

// Aggregate returns the pre-activation sums of the last forward pass.
func (l *Layer) Aggregate() *mat.VecDense {
	return l.aggregate
}

// Output returns the activations of the last forward pass. Unless the layer is terminal,
// element 0 is the bias slot.
func (l *Layer) Output() *mat.VecDense {
	return l.output
}

// Gradient returns the local error terms of the last backward pass.
func (l *Layer) Gradient() *mat.VecDense {
	return l.gradient
}

// activate fills the output buffer from the aggregates and injects the bias signal.
func (l *Layer) activate(act Activator, alpha, beta float64) {
	offset := 1
	if l.isOutput {
		offset = 0
	}
	for i := 0; i < l.aggregate.Len(); i++ {
		l.output.SetVec(i+offset, act.Activate(l.aggregate.AtVec(i), alpha, beta))
	}
	if !l.isOutput {
		l.output.SetVec(0, biasSignal)
	}
}

// resetScratch zeroes every buffer except the weights.
func (l *Layer) resetScratch() {
	l.aggregate.Zero()
	l.output.Zero()
	l.gradient.Zero()
	l.prevWeights.Zero()
}
