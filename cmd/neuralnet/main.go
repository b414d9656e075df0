// neuralnet: trains a multilayer perceptron on a dataset file and predicts with a dumped model
//
// Usage:
//
//	neuralnet --train (--curve-fitting | --pattern-classification) [--normalize] --in-file=<path>
//	    --dump-dir=<dir> --signals=<n> --layers=<n> --neurons-per-layer=[n1,n2,..]
//	    [--activation=logistic|tanh|linear] [--training=backprop|rprop] [--epsilon=1e-8]
//	    [--eta=0.5] [--momentum=0.09] [--epochs=1000] [--alpha=1] [--beta=0] [--json-out=<path>]
//
//	neuralnet --predict (--curve-fitting | --pattern-classification) [--normalize] [--private]
//	    --in-file=<path> --load-dir=<dir> [--json-in=<path>]
//
// The dataset starts with a line holding the row count and a line holding the column count,
// followed by the values. Without --in-file it is read from standard input.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"neuralnet/dataset"
	"neuralnet/nn"
	"neuralnet/split"
	"neuralnet/utils"
)

var (
	train          = flag.Bool("train", false, "Train a network and dump it")
	predict        = flag.Bool("predict", false, "Predict with a dumped network")
	curveFitting   = flag.Bool("curve-fitting", false, "Scale into [-1,1] for regression")
	classification = flag.Bool("pattern-classification", false, "Scale into [0,1] for classification (default)")
	normalize      = flag.Bool("normalize", false, "Min-max scale every column")
	inFile         = flag.String("in-file", "", "Dataset file (default standard input)")
	outFile        = flag.String("out-file", "", "Prediction output file (default standard output)")
	dumpDir        = flag.String("dump-dir", "", "Directory the trained model is written to")
	loadDir        = flag.String("load-dir", "", "Directory the model is read from")
	jsonOut        = flag.String("json-out", "", "Also export the trained weights as JSON")
	jsonIn         = flag.String("json-in", "", "Predict with weights exported as JSON instead of weights.bin")
	signals        = flag.Int("signals", 0, "Input signal count, bias included")
	layers         = flag.Int("layers", 0, "Layer count, must match the neuron list")
	neurons        = flag.String("neurons-per-layer", "", "Neurons per layer, e.g. [4,1]")
	activation     = flag.String("activation", "logistic", "Activation function: logistic, tanh, linear")
	training       = flag.String("training", "backprop", "Training strategy: backprop, rprop")
	epsilon        = flag.Float64("epsilon", 1e-8, "Convergence threshold on the MSE change")
	eta            = flag.Float64("eta", 0.5, "Learning rate")
	momentum       = flag.Float64("momentum", 0.09, "Momentum coefficient")
	epochs         = flag.Int("epochs", 1000, "Maximum number of epochs")
	alpha          = flag.Float64("alpha", 1.0, "Activation slope")
	beta           = flag.Float64("beta", 0.0, "Activation offset")
	seed           = flag.Uint64("seed", 1, "Weight initialisation seed")
	private        = flag.Bool("private", false, "Compute the first layer on encrypted inputs")
	logN           = flag.Int("logN", split.DefaultLogN, "Ring dimension log2 for --private")
	configFile     = flag.String("config", "", "YAML option file, overridden by explicit flags")
	reportEvery    = flag.Int("report-every", 100, "Print training progress every n epochs")
	verbose        = flag.Bool("verbose", false, "Print progress and timing statistics")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("neuralnet: ")

	opts, err := options()
	if err != nil {
		log.Fatalf("%v", err)
	}
	utils.Verbose = opts.Verbose

	stats := &utils.TimingStats{}
	start := time.Now()
	if opts.Action == utils.ActionTrain {
		err = runTrain(&opts, stats)
	} else {
		err = runPredict(&opts, stats)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	stats.TotalTime = time.Since(start)
	utils.PrintTimingStats(stats)
}

// options merges the defaults, the option file and the flags given on the command line.
func options() (utils.Options, error) {
	opts := utils.DefaultOptions()
	if *configFile != "" {
		if err := utils.LoadOptions(*configFile, &opts); err != nil {
			return opts, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "train":
			if *train {
				opts.Action = utils.ActionTrain
			}
		case "predict":
			if *predict {
				opts.Action = utils.ActionPredict
			}
		case "curve-fitting":
			if *curveFitting {
				opts.Task = utils.TaskCurveFitting
			}
		case "pattern-classification":
			if *classification {
				opts.Task = utils.TaskClassification
			}
		case "normalize":
			opts.Normalize = *normalize
		case "in-file":
			opts.InFile = *inFile
		case "out-file":
			opts.OutFile = *outFile
		case "dump-dir":
			opts.DumpDir = *dumpDir
		case "load-dir":
			opts.LoadDir = *loadDir
		case "json-out":
			opts.JSONOut = *jsonOut
		case "json-in":
			opts.JSONIn = *jsonIn
		case "signals":
			opts.Signals = *signals
		case "layers":
			opts.Layers = *layers
		case "neurons-per-layer":
			var n []int
			if n, err = utils.ParseNeurons(*neurons); err == nil {
				opts.Neurons = n
			}
		case "activation":
			opts.Activation = *activation
		case "training":
			opts.Training = *training
		case "epsilon":
			opts.Epsilon = *epsilon
		case "eta":
			opts.Eta = *eta
		case "momentum":
			opts.Momentum = *momentum
		case "epochs":
			opts.Epochs = *epochs
		case "alpha":
			opts.Alpha = *alpha
		case "beta":
			opts.Beta = *beta
		case "seed":
			opts.Seed = *seed
		case "private":
			opts.Private = *private
		case "verbose":
			opts.Verbose = *verbose
		}
	})
	if err != nil {
		return opts, fmt.Errorf("--neurons-per-layer: %w", err)
	}
	if *train && *predict {
		return opts, fmt.Errorf("--train and --predict are mutually exclusive")
	}
	if *curveFitting && *classification {
		return opts, fmt.Errorf("--curve-fitting and --pattern-classification are mutually exclusive")
	}
	return opts, utils.ValidateOptions(&opts)
}

func readDataset(opts *utils.Options, stats *utils.TimingStats) (*dataset.Dataset, error) {
	defer stats.Track(&stats.DataLoadingTime)()
	var r io.Reader = os.Stdin
	if opts.InFile != "" {
		f, err := os.Open(opts.InFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	ds, err := dataset.Read(r, opts.DatasetMode())
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return ds, nil
}

func writePredictions(opts *utils.Options, m mat.Matrix) error {
	var w io.Writer = os.Stdout
	if opts.OutFile != "" {
		f, err := os.Create(opts.OutFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return dataset.WriteMatrix(w, m)
}

func runTrain(opts *utils.Options, stats *utils.TimingStats) error {
	cfg, err := opts.NetworkConfig()
	if err != nil {
		return err
	}
	ds, err := readDataset(opts, stats)
	if err != nil {
		return err
	}
	if opts.Normalize {
		stop := stats.Track(&stats.ScalingTime)
		err := ds.Normalize()
		stop()
		if err != nil {
			return fmt.Errorf("normalizing dataset: %w", err)
		}
	}
	samples, err := ds.Samples(cfg.Signals)
	if err != nil {
		return err
	}

	stop := stats.Track(&stats.ModelInitTime)
	net, err := nn.NewNetwork(cfg, rand.NewSource(opts.Seed))
	stop()
	if err != nil {
		return err
	}

	if utils.Verbose {
		fmt.Fprintf(utils.Output, "training %v network on %d samples with %s\n",
			cfg.Neurons, samples.Len(), net.Trainer())
	}
	stop = stats.Track(&stats.TrainingTime)
	res, err := net.Train(samples, utils.EpochPrinter(*reportEvery))
	stop()
	if err != nil {
		return err
	}
	stats.Epochs = res.Epochs
	if utils.Verbose {
		fmt.Fprintf(utils.Output, "stopped after %d epochs, mse %.8g, converged %v\n",
			res.Epochs, res.MSE, res.Converged)
	}

	stop = stats.Track(&stats.PersistenceTime)
	err = dump(opts, net, ds)
	stop()
	if err != nil {
		return err
	}

	stop = stats.Track(&stats.PredictionTime)
	fitted, err := net.Predict(samples.Signals)
	stop()
	if err != nil {
		return err
	}
	if opts.Normalize {
		if err := ds.DescaleColumns(fitted, cfg.Signals); err != nil {
			return err
		}
	}
	return writePredictions(opts, fitted)
}

func dump(opts *utils.Options, net *nn.Network, ds *dataset.Dataset) error {
	if err := nn.Dump(net, opts.DumpDir); err != nil {
		return fmt.Errorf("dumping model: %w", err)
	}
	if opts.Normalize {
		if err := ds.DumpMinMax(opts.DumpDir); err != nil {
			return fmt.Errorf("dumping column bounds: %w", err)
		}
	}
	if opts.JSONOut != "" {
		if err := utils.SaveWeights(opts.JSONOut, utils.ExportWeights(net)); err != nil {
			return err
		}
	}
	return nil
}

func runPredict(opts *utils.Options, stats *utils.TimingStats) error {
	stop := stats.Track(&stats.PersistenceTime)
	net, err := utils.LoadModel(opts.LoadDir, opts.JSONIn)
	stop()
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	cfg := net.Config()
	if opts.Signals != 0 && opts.Signals != cfg.Signals {
		return fmt.Errorf("model expects %d signals, %d given", cfg.Signals, opts.Signals)
	}

	ds, err := readDataset(opts, stats)
	if err != nil {
		return err
	}
	if ds.Columns < cfg.Signals {
		return fmt.Errorf("dataset has %d columns, model expects %d signals", ds.Columns, cfg.Signals)
	}
	if opts.Normalize {
		if err := ds.LoadMinMax(opts.LoadDir); err != nil {
			return err
		}
		stop := stats.Track(&stats.ScalingTime)
		err := ds.Normalize()
		stop()
		if err != nil {
			return fmt.Errorf("normalizing dataset: %w", err)
		}
	}
	inputs := ds.Data.Slice(0, ds.Rows, 0, cfg.Signals)

	var pred *mat.Dense
	if opts.Private {
		pred, err = predictPrivate(net, inputs, stats)
	} else {
		stop := stats.Track(&stats.PredictionTime)
		pred, err = net.Predict(inputs)
		stop()
	}
	if err != nil {
		return err
	}
	if opts.Normalize {
		if err := ds.DescaleColumns(pred, cfg.Signals); err != nil {
			return err
		}
	}
	return writePredictions(opts, pred)
}

func predictPrivate(net *nn.Network, inputs mat.Matrix, stats *utils.TimingStats) (*mat.Dense, error) {
	stop := stats.Track(&stats.HEInitTime)
	ctx, err := split.NewContext(*logN, net.Config().Signals)
	stop()
	if err != nil {
		return nil, err
	}
	defer stats.Track(&stats.PrivateTime)()
	return split.Predict(net, ctx, inputs)
}
