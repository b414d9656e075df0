package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"neuralnet/nn"
)

// Verbose controls whether progress and timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where progress and timing statistics are printed.
// Defaults to os.Stderr, keeping standard output for predictions.
var Output io.Writer = os.Stderr

// TimingStats holds timing information for the stages of a run
type TimingStats struct {
	TotalTime       time.Duration
	DataLoadingTime time.Duration
	ScalingTime     time.Duration
	ModelInitTime   time.Duration
	TrainingTime    time.Duration
	PredictionTime  time.Duration
	PersistenceTime time.Duration
	HEInitTime      time.Duration
	PrivateTime     time.Duration // encryption, server aggregates and decryption

	Epochs int
}

// Track returns a function that adds the time elapsed since the call to *d.
//
//	defer stats.Track(&stats.TrainingTime)()
func (s *TimingStats) Track(d *time.Duration) func() {
	start := time.Now()
	return func() {
		*d += time.Since(start)
	}
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose {
		return
	}
	share := func(d time.Duration) float64 {
		if stats.TotalTime == 0 {
			return 0
		}
		return float64(d) / float64(stats.TotalTime) * 100
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintln(Output, "\nBreakdown by stage:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, share(stats.DataLoadingTime))
	fmt.Fprintf(Output, "  Scaling: %v (%.1f%%)\n", stats.ScalingTime, share(stats.ScalingTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, share(stats.ModelInitTime))
	fmt.Fprintf(Output, "  Training: %v (%.1f%%)\n", stats.TrainingTime, share(stats.TrainingTime))
	fmt.Fprintf(Output, "  Prediction: %v (%.1f%%)\n", stats.PredictionTime, share(stats.PredictionTime))
	fmt.Fprintf(Output, "  Persistence: %v (%.1f%%)\n", stats.PersistenceTime, share(stats.PersistenceTime))
	if stats.HEInitTime > 0 {
		fmt.Fprintln(Output, "\nPrivate prediction breakdown:")
		fmt.Fprintf(Output, "  HE initialization: %v (%.1f%%)\n", stats.HEInitTime, share(stats.HEInitTime))
		fmt.Fprintf(Output, "  Encrypted prediction: %v (%.1f%%)\n", stats.PrivateTime, share(stats.PrivateTime))
	}
	if stats.Epochs > 0 {
		fmt.Fprintf(Output, "\nEpochs completed: %d\n", stats.Epochs)
		fmt.Fprintf(Output, "Average time per epoch: %v\n", stats.TrainingTime/time.Duration(stats.Epochs))
	}
}

// EpochPrinter returns a ReportFunc printing every n-th epoch to Output when Verbose is set.
func EpochPrinter(n int) nn.ReportFunc {
	if n < 1 {
		n = 1
	}
	return func(s nn.EpochStats) {
		if !Verbose || s.Epoch%n != 0 {
			return
		}
		fmt.Fprintf(Output, "epoch %6d  mse %.8g  delta %.3g  (%.1fµs)\n",
			s.Epoch, s.MSE, s.Loss, DurationUS(s.Elapsed))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
