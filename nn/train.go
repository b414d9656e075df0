package nn

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Samples is a training set split into input signals (bias column included) and desired
// outputs, one sample per row. Both matrices are private copies, so they never share storage
// with a caller's matrix or with a network's buffers.
type Samples struct {
	Signals *mat.Dense
	Desired *mat.Dense
}

// NewSamples copies signals and desired into a training set.
func NewSamples(signals, desired mat.Matrix) (*Samples, error) {
	r1, _ := signals.Dims()
	r2, _ := desired.Dims()
	if r1 != r2 {
		return nil, errors.Wrapf(ErrDimension, "%d signal rows but %d desired-output rows", r1, r2)
	}
	if r1 == 0 {
		return nil, ErrEmptySamples
	}
	return &Samples{
		Signals: mat.DenseCopyOf(signals),
		Desired: mat.DenseCopyOf(desired),
	}, nil
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	r, _ := s.Signals.Dims()
	return r
}

func (s *Samples) check(cfg *Config) error {
	if s == nil || s.Signals == nil || s.Desired == nil {
		return ErrEmptySamples
	}
	r1, c1 := s.Signals.Dims()
	r2, c2 := s.Desired.Dims()
	switch {
	case r1 == 0:
		return ErrEmptySamples
	case r1 != r2:
		return errors.Wrapf(ErrDimension, "%d signal rows but %d desired-output rows", r1, r2)
	case c1 != cfg.Signals:
		return errors.Wrapf(ErrSignalCount, "expected %d signal columns, got %d", cfg.Signals, c1)
	case c2 != cfg.Outputs():
		return errors.Wrapf(ErrDimension, "expected %d desired-output columns, got %d", cfg.Outputs(), c2)
	}
	return nil
}

// EpochStats describes one finished training epoch.
type EpochStats struct {
	Epoch   int
	MSE     float64       // mean squared error after the epoch
	Loss    float64       // absolute MSE change over the epoch
	Elapsed time.Duration // wall time of the epoch
}

// ReportFunc receives the statistics of every epoch as training progresses.
type ReportFunc func(EpochStats)

// Result summarises a training run.
type Result struct {
	Epochs    int
	MSE       float64
	Loss      float64
	Converged bool      // stopped because the MSE change fell to epsilon
	History   []float64 // MSE after each epoch
}

// Trainer is a training strategy. Implementations hold no per-network state between calls.
type Trainer interface {
	Train(net *Network, s *Samples, report ReportFunc) (Result, error)
	String() string
}

// ShouldStop is the stop policy shared by all trainers, checked after every full epoch:
// training stops as soon as the MSE change is at most epsilon or the epoch limit is reached,
// whichever comes first. converged tells which condition fired.
func ShouldStop(epoch, maxEpochs int, loss, epsilon float64) (stop, converged bool) {
	if loss <= epsilon {
		return true, true
	}
	return epoch >= maxEpochs, false
}

// MeanSquaredError feeds every sample through net and returns
//
//	(1/n) Σ_samples Σ_outputs (d - y)²/2
func MeanSquaredError(net *Network, s *Samples) (float64, error) {
	if err := s.check(net.config); err != nil {
		return 0, err
	}
	return net.meanSquaredError(s), nil
}

func (net *Network) meanSquaredError(s *Samples) float64 {
	n := s.Len()
	outputs := net.config.Outputs()
	desired := make([]float64, outputs)
	diff := make([]float64, outputs)

	var total float64
	for i := 0; i < n; i++ {
		net.feedForward(s.Signals.RowView(i))
		mat.Row(desired, i, s.Desired)
		floats.SubTo(diff, desired, net.Output().RawVector().Data)
		total += floats.Dot(diff, diff) / 2.0
	}
	return total / float64(n)
}

// epochLoop runs the epoch/convergence structure common to every strategy. epoch performs one
// full pass over the samples.
func epochLoop(net *Network, s *Samples, report ReportFunc, epoch func()) (Result, error) {
	if err := s.check(net.config); err != nil {
		return Result{}, errors.Wrap(err, "invalid training set")
	}

	var res Result
	errPrev := net.meanSquaredError(s)
	for {
		start := time.Now()
		epoch()
		errCurr := net.meanSquaredError(s)

		res.Epochs++
		res.MSE = errCurr
		res.Loss = math.Abs(errCurr - errPrev)
		res.History = append(res.History, errCurr)
		if report != nil {
			report(EpochStats{
				Epoch:   res.Epochs,
				MSE:     res.MSE,
				Loss:    res.Loss,
				Elapsed: time.Since(start),
			})
		}

		stop, converged := ShouldStop(res.Epochs, net.config.Epochs, res.Loss, net.config.Epsilon)
		if stop {
			res.Converged = converged
			return res, nil
		}
		errPrev = errCurr
	}
}

// Backprop is online backpropagation with a momentum term: every sample is fed forward and
// immediately followed by a weight update.
type Backprop struct{}

func (Backprop) String() string {
	return "backprop"
}

func (Backprop) Train(net *Network, s *Samples, report ReportFunc) (Result, error) {
	eta, momentum := net.config.Eta, net.config.Momentum
	return epochLoop(net, s, report, func() {
		for i := 0; i < s.Len(); i++ {
			input := s.Signals.RowView(i)
			net.feedForward(input)
			net.backpropagate(input, s.Desired.RowView(i), eta, momentum)
		}
	})
}
