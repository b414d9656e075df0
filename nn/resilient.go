package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Default resilient propagation parameters.
const (
	DefaultIncreaseFactor = 1.2
	DefaultDecreaseFactor = 0.5
	DefaultInitialStep    = 0.1
	DefaultMinStep        = 1e-6
	DefaultMaxStep        = 50.0
)

// ResilientBackprop is resilient propagation with weight backtracking. Gradients are summed over
// a whole epoch and every weight then moves by its own step size in the direction that lowers
// the error. A step grows by IncreaseFactor while the gradient keeps its sign. When the sign
// flips the step shrinks by DecreaseFactor, the previous move of that weight is undone and the
// weight sits out the next adaptation. Steps stay within [MinStep, MaxStep].
//
// The learning rate and the momentum of the Config are not used.
type ResilientBackprop struct {
	IncreaseFactor float64
	DecreaseFactor float64
	InitialStep    float64
	MinStep        float64
	MaxStep        float64
}

// NewResilientBackprop returns a ResilientBackprop with the default parameters.
func NewResilientBackprop() *ResilientBackprop {
	return &ResilientBackprop{
		IncreaseFactor: DefaultIncreaseFactor,
		DecreaseFactor: DefaultDecreaseFactor,
		InitialStep:    DefaultInitialStep,
		MinStep:        DefaultMinStep,
		MaxStep:        DefaultMaxStep,
	}
}

func (r *ResilientBackprop) String() string {
	return "rprop"
}

// rpropState is the per-weight memory of one training run, one matrix per layer.
type rpropState struct {
	sum   []*mat.Dense // Σ δ_j·x_i over the epoch, the negated error gradient
	prev  []*mat.Dense // gradient sum of the previous epoch, zeroed after a sign flip
	step  []*mat.Dense
	moved []*mat.Dense // last change applied to each weight
}

func (r *ResilientBackprop) newState(net *Network) *rpropState {
	st := &rpropState{}
	for _, layer := range net.layers {
		rows, cols := layer.weights.Dims()
		step := mat.NewDense(rows, cols, nil)
		for j := 0; j < rows; j++ {
			for i := 0; i < cols; i++ {
				step.Set(j, i, r.InitialStep)
			}
		}
		st.sum = append(st.sum, mat.NewDense(rows, cols, nil))
		st.prev = append(st.prev, mat.NewDense(rows, cols, nil))
		st.step = append(st.step, step)
		st.moved = append(st.moved, mat.NewDense(rows, cols, nil))
	}
	return st
}

func (r *ResilientBackprop) validate() error {
	switch {
	case r.IncreaseFactor <= 1:
		return errors.Wrapf(ErrHyperparameter, "rprop increase factor must exceed 1, got %g", r.IncreaseFactor)
	case r.DecreaseFactor <= 0 || r.DecreaseFactor >= 1:
		return errors.Wrapf(ErrHyperparameter, "rprop decrease factor must be in (0,1), got %g", r.DecreaseFactor)
	case r.MinStep <= 0 || r.MaxStep < r.MinStep:
		return errors.Wrapf(ErrHyperparameter, "rprop step bounds [%g, %g]", r.MinStep, r.MaxStep)
	case r.InitialStep < r.MinStep || r.InitialStep > r.MaxStep:
		return errors.Wrapf(ErrHyperparameter, "rprop initial step %g outside [%g, %g]", r.InitialStep, r.MinStep, r.MaxStep)
	}
	return nil
}

func (r *ResilientBackprop) Train(net *Network, s *Samples, report ReportFunc) (Result, error) {
	if err := r.validate(); err != nil {
		return Result{}, err
	}
	st := r.newState(net)
	return epochLoop(net, s, report, func() {
		for _, sum := range st.sum {
			sum.Zero()
		}
		for i := 0; i < s.Len(); i++ {
			input := s.Signals.RowView(i)
			net.feedForward(input)
			net.localGradients(s.Desired.RowView(i))
			for l, layer := range net.layers {
				st.sum[l].RankOne(st.sum[l], 1, layer.gradient, net.source(l, input))
			}
		}
		for l := range net.layers {
			r.adapt(net.layers[l], st, l)
		}
	})
}

// adapt applies one resilient update to every weight of layer l.
func (r *ResilientBackprop) adapt(layer *Layer, st *rpropState, l int) {
	sum, prev, step, moved := st.sum[l], st.prev[l], st.step[l], st.moved[l]
	rows, cols := layer.weights.Dims()
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			g := sum.At(j, i)
			w := layer.weights.At(j, i)
			layer.prevWeights.Set(j, i, w)

			switch sign := g * prev.At(j, i); {
			case sign > 0:
				delta := math.Min(step.At(j, i)*r.IncreaseFactor, r.MaxStep)
				step.Set(j, i, delta)
				d := math.Copysign(delta, g)
				layer.weights.Set(j, i, w+d)
				moved.Set(j, i, d)
				prev.Set(j, i, g)
			case sign < 0:
				step.Set(j, i, math.Max(step.At(j, i)*r.DecreaseFactor, r.MinStep))
				layer.weights.Set(j, i, w-moved.At(j, i))
				moved.Set(j, i, 0)
				prev.Set(j, i, 0)
			default:
				d := 0.0
				if g != 0 {
					d = math.Copysign(step.At(j, i), g)
				}
				layer.weights.Set(j, i, w+d)
				moved.Set(j, i, d)
				prev.Set(j, i, g)
			}
		}
	}
}
