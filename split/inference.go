package split

import (
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"
)

// Client encrypts input signals and decrypts the aggregates a Server returns.
type Client struct {
	params    hefloat.Parameters
	width     int
	encoder   *hefloat.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
}

// Encrypt packs input, bias signal included, into the first slots of one ciphertext.
func (c *Client) Encrypt(input []float64) (*rlwe.Ciphertext, error) {
	if len(input) > c.width {
		return nil, errors.Errorf("%d signals exceed the context width %d", len(input), c.width)
	}
	pt := hefloat.NewPlaintext(c.params, c.params.MaxLevel())
	if err := c.encoder.Encode(input, pt); err != nil {
		return nil, errors.Wrap(err, "encoding input")
	}
	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, errors.Wrap(err, "encrypting input")
	}
	return ct, nil
}

// Decrypt returns slot 0 of every ciphertext, which holds one neuron's aggregate.
func (c *Client) Decrypt(cts []*rlwe.Ciphertext) ([]float64, error) {
	agg := make([]float64, len(cts))
	values := make([]float64, c.params.MaxSlots())
	for i, ct := range cts {
		pt := c.decryptor.DecryptNew(ct)
		if err := c.encoder.Decode(pt, values); err != nil {
			return nil, errors.Wrapf(err, "decoding aggregate %d", i)
		}
		agg[i] = values[0]
	}
	return agg, nil
}

// Server evaluates the aggregates of a network's first layer on encrypted inputs. It holds
// the layer's weights and public evaluation keys only.
type Server struct {
	params  hefloat.Parameters
	width   int
	encoder *hefloat.Encoder
	eval    *hefloat.Evaluator
	rows    [][]float64
}

// NewServer prepares a server for the weights of a first layer, one row per neuron and one
// column per input signal.
func NewServer(params hefloat.Parameters, evk rlwe.EvaluationKeySet, width int, weights mat.Matrix) (*Server, error) {
	neurons, inputs := weights.Dims()
	if inputs > width {
		return nil, errors.Errorf("%d weights per neuron exceed the context width %d", inputs, width)
	}
	rows := make([][]float64, neurons)
	for i := range rows {
		rows[i] = mat.Row(nil, i, weights)
	}
	return &Server{
		params:  params,
		width:   width,
		encoder: hefloat.NewEncoder(params),
		eval:    hefloat.NewEvaluator(params, evk),
		rows:    rows,
	}, nil
}

// Neurons returns the number of aggregates produced per input.
func (s *Server) Neurons() int {
	return len(s.rows)
}

// Aggregate computes Σ_j W[i][j]·x[j] for every neuron i. Each result is a ciphertext whose
// slot 0 holds the aggregate of one neuron.
func (s *Server) Aggregate(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	out := make([]*rlwe.Ciphertext, len(s.rows))
	for i, row := range s.rows {
		pt := hefloat.NewPlaintext(s.params, ct.Level())
		if err := s.encoder.Encode(row, pt); err != nil {
			return nil, errors.Wrapf(err, "encoding weights of neuron %d", i)
		}
		prod, err := s.eval.MulNew(ct, pt)
		if err != nil {
			return nil, errors.Wrapf(err, "multiplying neuron %d", i)
		}
		if err := s.eval.Rescale(prod, prod); err != nil {
			return nil, errors.Wrapf(err, "rescaling neuron %d", i)
		}
		if err := s.innerSum(prod); err != nil {
			return nil, errors.Wrapf(err, "summing neuron %d", i)
		}
		out[i] = prod
	}
	return out, nil
}

// innerSum folds the first width slots of ct into slot 0 by rotate-and-add.
func (s *Server) innerSum(ct *rlwe.Ciphertext) error {
	for k := 1; k < s.width; k *= 2 {
		rot, err := s.eval.RotateNew(ct, k)
		if err != nil {
			return err
		}
		if err := s.eval.Add(ct, rot, ct); err != nil {
			return err
		}
	}
	return nil
}
