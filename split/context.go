// Package split runs the first layer of a network on encrypted inputs. The client encrypts its
// input signals under CKKS, the server evaluates the first layer's aggregates homomorphically
// without ever seeing the input, and the client decrypts them and finishes the forward pass in
// plaintext.
package split

import (
	"math/bits"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// DefaultLogN is the ring degree used when none is given.
const DefaultLogN = 13

// Context holds the CKKS parameters and keys of one client. The secret key never leaves it:
// servers only get the parameters and the evaluation keys.
type Context struct {
	Params hefloat.Parameters
	// Width is the number of slots summed into an aggregate, a power of two no smaller than
	// the number of input signals.
	Width int

	sk  *rlwe.SecretKey
	pk  *rlwe.PublicKey
	evk *rlwe.MemEvaluationKeySet
}

// NewContext generates parameters and keys for inputs of up to signals values. A logN of zero
// selects DefaultLogN.
func NewContext(logN, signals int) (*Context, error) {
	if logN == 0 {
		logN = DefaultLogN
	}
	if signals < 1 {
		return nil, errors.Errorf("signal count must be positive, got %d", signals)
	}

	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{55, 40}, // one rescale after the weight product
		LogP:            []int{61},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating CKKS parameters")
	}

	width := Width(signals)
	if width > params.MaxSlots() {
		return nil, errors.Errorf("%d signals do not fit into %d slots", signals, params.MaxSlots())
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()

	galEls := make([]uint64, 0, bits.Len(uint(width)))
	for k := 1; k < width; k *= 2 {
		galEls = append(galEls, params.GaloisElement(k))
	}
	evk := rlwe.NewMemEvaluationKeySet(nil, kgen.GenGaloisKeysNew(galEls, sk)...)

	return &Context{
		Params: params,
		Width:  width,
		sk:     sk,
		pk:     pk,
		evk:    evk,
	}, nil
}

// Width returns the smallest power of two that is at least n.
func Width(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// EvaluationKeys returns the public keys a server needs to compute aggregates.
func (c *Context) EvaluationKeys() rlwe.EvaluationKeySet {
	return c.evk
}

// NewClient returns a client encrypting under this context's keys.
func (c *Context) NewClient() *Client {
	return &Client{
		params:    c.Params,
		width:     c.Width,
		encoder:   hefloat.NewEncoder(c.Params),
		encryptor: hefloat.NewEncryptor(c.Params, c.pk),
		decryptor: hefloat.NewDecryptor(c.Params, c.sk),
	}
}
