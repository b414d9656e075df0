// neuralnet-server: Server-side component of private prediction. It holds the first layer of a
// dumped model and computes its aggregates on encrypted inputs.
//
// Without --listen the exchange runs over standard input and output.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"gonum.org/v1/gonum/mat"

	"neuralnet/nn"
	"neuralnet/split"
)

var (
	loadDir = flag.String("load-dir", "", "Directory the model is read from")
	listen  = flag.String("listen", "", "TCP address to accept clients on, e.g. :7300")
	verbose = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()

	model, err := nn.Load(nil, *loadDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading model: %v\n", err)
		os.Exit(1)
	}
	weights := model.Layer(0).Weights()
	r, c := weights.Dims()
	log("Model ready: first layer %dx%d", r, c)

	if *listen == "" {
		log("Waiting for client on standard input...")
		if err := split.ServeLayer(split.NewProtocol(os.Stdin, os.Stdout), weights); err != nil {
			fmt.Fprintf(os.Stderr, "serving: %v\n", err)
			os.Exit(1)
		}
		log("Server done")
		return
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listening: %v\n", err)
		os.Exit(1)
	}
	log("Listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "accepting: %v\n", err)
			os.Exit(1)
		}
		go serve(conn, weights)
	}
}

func serve(conn net.Conn, weights mat.Matrix) {
	defer conn.Close()
	log("Client %s connected", conn.RemoteAddr())
	if err := split.ServeLayer(split.NewProtocol(conn, conn), weights); err != nil {
		log("Client %s: %v", conn.RemoteAddr(), err)
		return
	}
	log("Client %s done", conn.RemoteAddr())
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
