package split

import (
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"neuralnet/nn"
)

// Serve answers encrypted inputs with their aggregates until the client sends done. Errors
// are reported to the client before being returned.
func Serve(p *Protocol, s *Server) error {
	for {
		id, ct, err := p.ReceiveInput()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			p.SendError(err)
			return err
		}
		agg, err := s.Aggregate(ct)
		if err != nil {
			p.SendError(err)
			return err
		}
		if err := p.SendAggregates(id, agg); err != nil {
			return err
		}
	}
}

// ServeLayer waits for a client's setup, then serves the aggregates of a layer with the given
// weights until the client sends done.
func ServeLayer(p *Protocol, weights mat.Matrix) error {
	params, evk, width, err := p.ReceiveSetup()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		p.SendError(err)
		return err
	}
	server, err := NewServer(params, evk, width, weights)
	if err != nil {
		p.SendError(err)
		return err
	}
	return Serve(p, server)
}

// Session is a client's side of a private prediction exchange.
type Session struct {
	client *Client
	proto  *Protocol
	closer io.Closer
	drain  io.Reader // unread server replies, discarded on Close
	served chan error
	next   int
}

// Dial sends the public material of ctx over p and returns a session talking to the server
// at the other end.
func Dial(ctx *Context, p *Protocol) (*Session, error) {
	if err := p.SendSetup(ctx); err != nil {
		return nil, errors.Wrap(err, "sending setup")
	}
	return &Session{
		client: ctx.NewClient(),
		proto:  p,
	}, nil
}

// NewSession starts an in-process server for the first layer of net and dials it.
func NewSession(ctx *Context, net *nn.Network) (*Session, error) {
	if net.Config().Signals > ctx.Width {
		return nil, errors.Errorf("%d signals exceed the context width %d", net.Config().Signals, ctx.Width)
	}
	weights := net.Layer(0).Weights()

	srvIn, toSrv := io.Pipe()
	cliIn, toCli := io.Pipe()
	served := make(chan error, 1)
	go func() {
		err := ServeLayer(NewProtocol(srvIn, toCli), weights)
		toCli.CloseWithError(io.ErrClosedPipe)
		srvIn.Close()
		served <- err
	}()

	sess, err := Dial(ctx, NewProtocol(cliIn, toSrv))
	if err != nil {
		toSrv.Close()
		<-served
		return nil, err
	}
	sess.closer = toSrv
	sess.drain = cliIn
	sess.served = served
	return sess, nil
}

// Aggregates returns the first-layer aggregates of input computed by the server.
func (s *Session) Aggregates(input []float64) ([]float64, error) {
	ct, err := s.client.Encrypt(input)
	if err != nil {
		return nil, err
	}
	s.next++
	if err := s.proto.SendInput(s.next, ct); err != nil {
		return nil, errors.Wrap(err, "sending input")
	}
	id, cts, err := s.proto.ReceiveAggregates()
	if err != nil {
		return nil, errors.Wrap(err, "receiving aggregates")
	}
	if id != s.next {
		return nil, errors.Errorf("answer to request %d while waiting for %d", id, s.next)
	}
	return s.client.Decrypt(cts)
}

// Close ends the session. For an in-process server it also waits for it to finish.
func (s *Session) Close() error {
	if s.drain != nil {
		// a server stuck sending an error must be able to finish before done reaches it
		go io.Copy(io.Discard, s.drain)
	}
	sendErr := s.proto.SendDone()
	if s.closer != nil {
		s.closer.Close()
	}
	if s.served != nil {
		if err := <-s.served; err != nil {
			return err
		}
	}
	return errors.Wrap(sendErr, "ending session")
}

// Predict feeds every row of signals through net, computing the first layer under encryption.
func Predict(net *nn.Network, ctx *Context, signals mat.Matrix) (result *mat.Dense, err error) {
	rows, cols := signals.Dims()
	if cols != net.Config().Signals {
		return nil, errors.Wrapf(nn.ErrSignalCount, "expected %d signal columns, got %d", net.Config().Signals, cols)
	}
	if rows == 0 {
		return nil, errors.Wrap(nn.ErrEmptySamples, "nothing to predict")
	}

	sess, err := NewSession(ctx, net)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); err == nil {
			err = cerr
		}
	}()
	return sess.Predict(net, signals)
}

// Predict feeds every row of signals through net, asking the session's server for the first
// layer's aggregates. The server must hold the first layer of net.
func (s *Session) Predict(net *nn.Network, signals mat.Matrix) (*mat.Dense, error) {
	rows, cols := signals.Dims()
	if cols != net.Config().Signals {
		return nil, errors.Wrapf(nn.ErrSignalCount, "expected %d signal columns, got %d", net.Config().Signals, cols)
	}
	if rows == 0 {
		return nil, errors.Wrap(nn.ErrEmptySamples, "nothing to predict")
	}
	result := mat.NewDense(rows, net.Config().Outputs(), nil)
	for i := 0; i < rows; i++ {
		agg, err := s.Aggregates(mat.Row(nil, i, signals))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out, err := net.ForwardFromAggregate(agg)
		if err != nil {
			return nil, err
		}
		result.SetRow(i, out)
	}
	return result, nil
}
