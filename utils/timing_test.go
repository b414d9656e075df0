package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"neuralnet/nn"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func captureOutput(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	Output, Verbose = &buf, verbose
	t.Cleanup(func() { Output, Verbose = oldOut, oldVerbose })
	return &buf
}

func TestEpochPrinter(t *testing.T) {
	buf := captureOutput(t, true)
	report := EpochPrinter(2)
	for epoch := 1; epoch <= 4; epoch++ {
		report(nn.EpochStats{Epoch: epoch, MSE: 0.5 / float64(epoch), Loss: 0.01, Elapsed: time.Millisecond})
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "epoch      2")
	assert.Contains(t, lines[1], "mse 0.125")
}

func TestEpochPrinterQuiet(t *testing.T) {
	buf := captureOutput(t, false)
	EpochPrinter(1)(nn.EpochStats{Epoch: 1})
	PrintTimingStats(&TimingStats{TotalTime: time.Second})
	assert.Empty(t, buf.String())
}

func TestPrintTimingStats(t *testing.T) {
	buf := captureOutput(t, true)
	stats := &TimingStats{}
	stop := stats.Track(&stats.TrainingTime)
	time.Sleep(time.Millisecond)
	stop()
	stats.TotalTime = 2 * stats.TrainingTime
	stats.Epochs = 10
	assert.GreaterOrEqual(t, stats.TrainingTime, time.Millisecond)

	PrintTimingStats(stats)
	out := buf.String()
	assert.Contains(t, out, "Training: ")
	assert.Contains(t, out, "(50.0%)")
	assert.Contains(t, out, "Epochs completed: 10")
	assert.NotContains(t, out, "Private prediction")
}
