package nn

import (
	"gonum.org/v1/gonum/mat"
)

// feedForward computes the aggregates and outputs of every layer for one input vector.
func (net *Network) feedForward(input mat.Vector) {
	first := net.layers[0]
	first.aggregate.MulVec(first.weights, input)
	first.activate(net.activator, net.config.Alpha, net.config.Beta)
	net.feedForwardFrom(1)
}

// feedForwardFrom propagates from layer start onwards, reading the output of layer start-1.
func (net *Network) feedForwardFrom(start int) {
	for l := start; l < len(net.layers); l++ {
		layer := net.layers[l]
		layer.aggregate.MulVec(layer.weights, net.layers[l-1].output)
		layer.activate(net.activator, net.config.Alpha, net.config.Beta)
	}
}

// source returns the signals feeding layer l during the pass started with input.
func (net *Network) source(l int, input mat.Vector) mat.Vector {
	if l == 0 {
		return input
	}
	return net.layers[l-1].output
}

// localGradients fills every layer's gradient buffer for the desired output of the sample
// last fed forward, starting at the output layer.
//
// For an output neuron j the gradient is (d_j - y_j)·f'(I_j). For a hidden neuron j it is
// f'(I_j)·Σ_k W'[k][j+1]·δ'_k over the neurons k of the next layer, where column j+1 of the
// next layer's weights is the one fed by neuron j (column 0 is fed by the bias slot, which has
// no upstream neuron and therefore receives no gradient).
func (net *Network) localGradients(desired mat.Vector) {
	alpha, beta := net.config.Alpha, net.config.Beta
	last := net.lastIndex()

	out := net.layers[last]
	for j := 0; j < out.gradient.Len(); j++ {
		e := desired.AtVec(j) - out.output.AtVec(j)
		out.gradient.SetVec(j, e*net.activator.Derivative(out.aggregate.AtVec(j), alpha, beta))
	}

	for l := last - 1; l >= 0; l-- {
		layer, next := net.layers[l], net.layers[l+1]
		for j := 0; j < layer.gradient.Len(); j++ {
			sum := mat.Dot(next.weights.ColView(j+1), next.gradient)
			layer.gradient.SetVec(j, sum*net.activator.Derivative(layer.aggregate.AtVec(j), alpha, beta))
		}
	}
}

// momentumUpdate applies
//
//	W[j][i] += momentum·(W[j][i] - O[j][i]) + eta·δ_j·x_i
//
// to every weight of every layer, where O holds the weights before the previous update and x
// is the layer's source signal. The bias column is updated like any other.
func (net *Network) momentumUpdate(input mat.Vector, eta, momentum float64) {
	for l := len(net.layers) - 1; l >= 0; l-- {
		layer := net.layers[l]
		src := net.source(l, input)
		rows, cols := layer.weights.Dims()
		for j := 0; j < rows; j++ {
			dj := layer.gradient.AtVec(j)
			for i := 0; i < cols; i++ {
				w := layer.weights.At(j, i)
				shift := w + momentum*(w-layer.prevWeights.At(j, i)) + eta*dj*src.AtVec(i)
				layer.prevWeights.Set(j, i, w)
				layer.weights.Set(j, i, shift)
			}
		}
	}
}

// backpropagate performs one online update for the sample last fed forward.
func (net *Network) backpropagate(input, desired mat.Vector, eta, momentum float64) {
	net.localGradients(desired)
	net.momentumUpdate(input, eta, momentum)
}
