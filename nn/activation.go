package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Activator is the activation function of every neuron in a Network together with its
// derivative. Both receive the neuron's aggregate and the two coefficients of the Config.
type Activator interface {
	Activate(x, alpha, beta float64) float64
	Derivative(x, alpha, beta float64) float64
	fmt.Stringer
}

// ActivationType selects an Activator. Its value is what gets persisted in config.bin, so the
// numbering must stay stable.
type ActivationType int32

const (
	LogisticActivation ActivationType = iota
	TanhActivation
	LinearActivation
)

var activators = map[ActivationType]Activator{
	LogisticActivation: Logistic{},
	TanhActivation:     HyperbolicTangent{},
	LinearActivation:   Linear{},
}

// ActivatorLookup maps the names accepted on the command line to activation functions.
var ActivatorLookup = map[string]Activator{
	"logistic": Logistic{},
	"sigmoid":  Logistic{},
	"tanh":     HyperbolicTangent{},
	"linear":   Linear{},
}

// Activator returns the implementation selected by t.
func (t ActivationType) Activator() (Activator, error) {
	a, ok := activators[t]
	if !ok {
		return nil, errors.Wrapf(ErrActivationType, "type %d", int32(t))
	}
	return a, nil
}

func (t ActivationType) String() string {
	if a, ok := activators[t]; ok {
		return a.String()
	}
	return fmt.Sprintf("ActivationType(%d)", int32(t))
}

// ParseActivation resolves an activation name to its selector.
func ParseActivation(name string) (ActivationType, error) {
	a, ok := ActivatorLookup[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, errors.Wrapf(ErrActivationType, "%q", name)
	}
	for t, impl := range activators {
		if impl == a {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrActivationType, "%q", name)
}

// Logistic is 1/(1+e^-(αx+β)).
type Logistic struct{}

func (Logistic) Activate(x, alpha, beta float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(alpha*x + beta)))
}

func (l Logistic) Derivative(x, alpha, beta float64) float64 {
	s := l.Activate(x, alpha, beta)
	return alpha * s * (1.0 - s)
}

func (Logistic) String() string {
	return "logistic"
}

// HyperbolicTangent is (1-e^-(αx+β))/(1+e^-(αx+β)), a tanh of half the scaled argument with
// range (-1, 1).
type HyperbolicTangent struct{}

func (HyperbolicTangent) Activate(x, alpha, beta float64) float64 {
	return math.Tanh((alpha*x + beta) / 2.0)
}

func (h HyperbolicTangent) Derivative(x, alpha, beta float64) float64 {
	t := h.Activate(x, alpha, beta)
	return alpha / 2.0 * (1.0 - t*t)
}

func (HyperbolicTangent) String() string {
	return "tanh"
}

// Linear is αx+β.
type Linear struct{}

func (Linear) Activate(x, alpha, beta float64) float64 {
	return alpha*x + beta
}

func (Linear) Derivative(x, alpha, beta float64) float64 {
	return alpha
}

func (Linear) String() string {
	return "linear"
}
