// neuralnet-client: Client-side component of private prediction. It encrypts every dataset row,
// lets a neuralnet-server compute the first layer and finishes the forward pass locally.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"neuralnet/dataset"
	"neuralnet/nn"
	"neuralnet/split"
	"neuralnet/utils"
)

var (
	connect      = flag.String("connect", "", "Server address, e.g. localhost:7300")
	loadDir      = flag.String("load-dir", "", "Directory the model is read from")
	inFile       = flag.String("in-file", "", "Dataset file (default standard input)")
	outFile      = flag.String("out-file", "", "Prediction output file (default standard output)")
	normalize    = flag.Bool("normalize", false, "Scale with the bounds dumped next to the model")
	curveFitting = flag.Bool("curve-fitting", false, "Scale into [-1,1] for regression")
	logN         = flag.Int("logN", split.DefaultLogN, "Ring dimension log2")
	verbose      = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *connect == "" {
		fmt.Fprintln(os.Stderr, "--connect is required")
		os.Exit(2)
	}
	stats := &utils.TimingStats{}
	start := time.Now()
	if err := run(stats); err != nil {
		fmt.Fprintf(os.Stderr, "neuralnet-client: %v\n", err)
		os.Exit(1)
	}
	stats.TotalTime = time.Since(start)
	utils.PrintTimingStats(stats)
}

func run(stats *utils.TimingStats) (err error) {
	stop := stats.Track(&stats.PersistenceTime)
	model, err := nn.Load(nil, *loadDir)
	stop()
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	signals := model.Config().Signals

	ds, err := readDataset(stats)
	if err != nil {
		return err
	}
	if ds.Columns < signals {
		return fmt.Errorf("dataset has %d columns, model expects %d signals", ds.Columns, signals)
	}
	if *normalize {
		if err := ds.LoadMinMax(*loadDir); err != nil {
			return err
		}
		stop := stats.Track(&stats.ScalingTime)
		err := ds.Normalize()
		stop()
		if err != nil {
			return fmt.Errorf("normalizing dataset: %w", err)
		}
	}

	stop = stats.Track(&stats.HEInitTime)
	ctx, err := split.NewContext(*logN, signals)
	stop()
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", *connect)
	if err != nil {
		return err
	}
	defer conn.Close()
	log("Connected to %s", conn.RemoteAddr())

	stop = stats.Track(&stats.PrivateTime)
	sess, err := split.Dial(ctx, split.NewProtocol(conn, conn))
	if err != nil {
		stop()
		return err
	}
	pred, err := sess.Predict(model, ds.Data.Slice(0, ds.Rows, 0, signals))
	if cerr := sess.Close(); err == nil {
		err = cerr
	}
	stop()
	if err != nil {
		return err
	}
	log("%d rows predicted", ds.Rows)

	if *normalize {
		if err := ds.DescaleColumns(pred, signals); err != nil {
			return err
		}
	}
	return writePredictions(pred)
}

func readDataset(stats *utils.TimingStats) (*dataset.Dataset, error) {
	defer stats.Track(&stats.DataLoadingTime)()
	var r io.Reader = os.Stdin
	if *inFile != "" {
		f, err := os.Open(*inFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	mode := dataset.Classification
	if *curveFitting {
		mode = dataset.Regression
	}
	return dataset.Read(r, mode)
}

func writePredictions(m mat.Matrix) error {
	var w io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return dataset.WriteMatrix(w, m)
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[CLIENT] "+format+"\n", args...)
	}
}
