package split

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

func init() {
	// Register types for gob encoding
	gob.Register(SetupPayload{})
	gob.Register(InputPayload{})
	gob.Register(AggregatePayload{})
}

// MessageType defines message types for the private prediction protocol
type MessageType int

const (
	MsgSetup MessageType = iota
	MsgInput
	MsgAggregates
	MsgDone
	MsgError
)

// Message represents a message in the private prediction protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// SetupPayload carries the public CKKS material a server needs: parameters, evaluation keys
// and the summation width
type SetupPayload struct {
	Params []byte
	Keys   []byte
	Width  int
}

// InputPayload carries one encrypted input vector from client to server
type InputPayload struct {
	RequestID  int
	Ciphertext []byte // serialized ciphertext
}

// AggregatePayload carries the encrypted first-layer aggregates of one input back to the client
type AggregatePayload struct {
	RequestID   int
	Ciphertexts [][]byte // one per neuron
}

// Protocol handles client/server communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendSetup sends the parameters and evaluation keys of ctx. The secret key is not sent.
func (p *Protocol) SendSetup(ctx *Context) error {
	params, err := ctx.Params.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshalling parameters")
	}
	keys, err := ctx.evk.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshalling evaluation keys")
	}
	return p.Send(&Message{
		Type: MsgSetup,
		Payload: SetupPayload{
			Params: params,
			Keys:   keys,
			Width:  ctx.Width,
		},
	})
}

// SendInput sends an encrypted input
func (p *Protocol) SendInput(requestID int, ct *rlwe.Ciphertext) error {
	data, err := ct.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshalling input")
	}
	return p.Send(&Message{
		Type: MsgInput,
		Payload: InputPayload{
			RequestID:  requestID,
			Ciphertext: data,
		},
	})
}

// SendAggregates sends the encrypted aggregates of one input
func (p *Protocol) SendAggregates(requestID int, cts []*rlwe.Ciphertext) error {
	payload := AggregatePayload{
		RequestID:   requestID,
		Ciphertexts: make([][]byte, len(cts)),
	}
	for i, ct := range cts {
		data, err := ct.MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "marshalling aggregate %d", i)
		}
		payload.Ciphertexts[i] = data
	}
	return p.Send(&Message{Type: MsgAggregates, Payload: payload})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// receive returns the next message of the wanted type. A done message yields io.EOF and an
// error message the remote error.
func (p *Protocol) receive(want MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case want:
		return msg, nil
	case MsgError:
		return nil, errors.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	}
	return nil, errors.Errorf("expected message type %d, got %d", want, msg.Type)
}

// ReceiveSetup receives the public material sent by SendSetup
func (p *Protocol) ReceiveSetup() (hefloat.Parameters, rlwe.EvaluationKeySet, int, error) {
	var params hefloat.Parameters
	msg, err := p.receive(MsgSetup)
	if err != nil {
		return params, nil, 0, err
	}
	payload, ok := msg.Payload.(SetupPayload)
	if !ok {
		return params, nil, 0, errors.New("invalid setup payload type")
	}
	if err := params.UnmarshalBinary(payload.Params); err != nil {
		return params, nil, 0, errors.Wrap(err, "unmarshalling parameters")
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := evk.UnmarshalBinary(payload.Keys); err != nil {
		return params, nil, 0, errors.Wrap(err, "unmarshalling evaluation keys")
	}
	if payload.Width < 1 || payload.Width > params.MaxSlots() {
		return params, nil, 0, errors.Errorf("invalid width %d", payload.Width)
	}
	return params, evk, payload.Width, nil
}

// ReceiveInput receives an encrypted input
func (p *Protocol) ReceiveInput() (int, *rlwe.Ciphertext, error) {
	msg, err := p.receive(MsgInput)
	if err != nil {
		return 0, nil, err
	}
	payload, ok := msg.Payload.(InputPayload)
	if !ok {
		return 0, nil, errors.New("invalid input payload type")
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(payload.Ciphertext); err != nil {
		return 0, nil, errors.Wrap(err, "unmarshalling input")
	}
	return payload.RequestID, ct, nil
}

// ReceiveAggregates receives the encrypted aggregates of one input
func (p *Protocol) ReceiveAggregates() (int, []*rlwe.Ciphertext, error) {
	msg, err := p.receive(MsgAggregates)
	if err != nil {
		return 0, nil, err
	}
	payload, ok := msg.Payload.(AggregatePayload)
	if !ok {
		return 0, nil, errors.New("invalid aggregate payload type")
	}
	cts := make([]*rlwe.Ciphertext, len(payload.Ciphertexts))
	for i, data := range payload.Ciphertexts {
		cts[i] = new(rlwe.Ciphertext)
		if err := cts[i].UnmarshalBinary(data); err != nil {
			return 0, nil, errors.Wrapf(err, "unmarshalling aggregate %d", i)
		}
	}
	return payload.RequestID, cts, nil
}
