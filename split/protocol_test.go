package split

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"gonum.org/v1/gonum/mat"
)

func TestProtocolInputRoundTrip(t *testing.T) {
	ctx := newTestContext(t, 3)
	ct, err := ctx.NewClient().Encrypt([]float64{-1, 0.5, 0.25})
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	require.NoError(t, writer.SendInput(7, ct))

	reader := NewProtocol(&buf, nil)
	id, got, err := reader.ReceiveInput()
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.Equal(t, ct.Level(), got.Level())

	values, err := ctx.NewClient().Decrypt([]*rlwe.Ciphertext{got})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1}, values, 1e-6)
}

func TestProtocolAggregatesRoundTrip(t *testing.T) {
	ctx := newTestContext(t, 2)
	client := ctx.NewClient()
	a, err := client.Encrypt([]float64{1.5})
	require.NoError(t, err)
	b, err := client.Encrypt([]float64{-2.25})
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	require.NoError(t, writer.SendAggregates(42, []*rlwe.Ciphertext{a, b}))

	reader := NewProtocol(&buf, nil)
	id, cts, err := reader.ReceiveAggregates()
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	require.Len(t, cts, 2)

	values, err := client.Decrypt(cts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, -2.25}, values, 1e-6)
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendDone()
	if err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, _, err = reader.ReceiveInput()
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendError(io.ErrUnexpectedEOF)
	if err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, _, err = reader.ReceiveAggregates()
	require.Error(t, err)
	assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
}

func TestProtocolUnexpectedType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewProtocol(nil, &buf).SendAggregates(1, nil))

	_, _, err := NewProtocol(&buf, nil).ReceiveInput()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestProtocolSetupRoundTrip(t *testing.T) {
	ctx := newTestContext(t, 3)

	var buf bytes.Buffer
	require.NoError(t, NewProtocol(nil, &buf).SendSetup(ctx))

	params, evk, width, err := NewProtocol(&buf, nil).ReceiveSetup()
	require.NoError(t, err)
	assert.Equal(t, ctx.Width, width)
	assert.Equal(t, ctx.Params.LogN(), params.LogN())
	assert.Equal(t, ctx.Params.MaxLevel(), params.MaxLevel())

	// a server built from the received material computes aggregates the client can decrypt
	weights := mat.NewDense(1, 3, []float64{0.5, -1, 2})
	server, err := NewServer(params, evk, width, weights)
	require.NoError(t, err)
	client := ctx.NewClient()
	ct, err := client.Encrypt([]float64{-1, 0.25, 0.5})
	require.NoError(t, err)
	cts, err := server.Aggregate(ct)
	require.NoError(t, err)
	got, err := client.Decrypt(cts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.5 - 0.25 + 1}, got, 1e-4)
}

func TestProtocolSetupDone(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewProtocol(nil, &buf).SendDone())
	require.NoError(t, ServeLayer(NewProtocol(&buf, io.Discard), mat.NewDense(1, 1, nil)))
}

func TestMessageTypes(t *testing.T) {
	if MsgSetup != 0 {
		t.Errorf("MsgSetup = %d, want 0", MsgSetup)
	}
	if MsgInput != 1 {
		t.Errorf("MsgInput = %d, want 1", MsgInput)
	}
	if MsgAggregates != 2 {
		t.Errorf("MsgAggregates = %d, want 2", MsgAggregates)
	}
	if MsgDone != 3 {
		t.Errorf("MsgDone = %d, want 3", MsgDone)
	}
	if MsgError != 4 {
		t.Errorf("MsgError = %d, want 4", MsgError)
	}
}
