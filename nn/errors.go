package nn

// Error is a wrapper for specific types of errors for which there is no additional information
// necessary. Callers compare against the package variables with errors.Is.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the errors that may be returned, usually wrapped with more context.
var (
	ErrLayerCount      = Error{"neuron count list does not match the layer count"}
	ErrNeuronCount     = Error{"neuron counts must be at least 1"}
	ErrSignalCount     = Error{"input signal count mismatch"}
	ErrDimension       = Error{"matrix dimension mismatch"}
	ErrHyperparameter  = Error{"hyperparameter out of range"}
	ErrActivationType  = Error{"unknown activation function"}
	ErrTrainingType    = Error{"unknown training strategy"}
	ErrEmptySamples    = Error{"training set has no samples"}
	ErrCorruptedConfig = Error{"corrupted configuration record"}
)
