// Package compare measures the dispatcher algorithms over growing batches
// of generated orders.
package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/orderlab/pkg/backend/memory"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// Defaults of a comparison run
var (
	DefaultSizes     = []int{10, 50, 100, 200, 500}
	DefaultRuns      = 1
	DefaultCourierID = 999
)

// maxTrackableMicros bounds the duration histograms at one minute
const maxTrackableMicros = 60_000_000

// Options configures a comparison run
type Options struct {
	Sizes     []int
	Runs      int
	Generator core.GeneratorConfig
	// CourierID is looked up by the linear search at every size
	CourierID int
}

func (o Options) withDefaults() Options {
	if len(o.Sizes) == 0 {
		o.Sizes = DefaultSizes
	}
	if o.Runs <= 0 {
		o.Runs = DefaultRuns
	}
	if o.Generator == (core.GeneratorConfig{}) {
		o.Generator = core.DefaultGeneratorConfig()
	}
	if o.CourierID == 0 {
		o.CourierID = DefaultCourierID
	}
	return o
}

// Timing summarizes the durations of repeated runs in microseconds.
// Clamped counts the runs longer than the histogram range, recorded at
// the one minute ceiling.
type Timing struct {
	MeanMicros float64 `json:"mean_micros"`
	P50Micros  int64   `json:"p50_micros"`
	MaxMicros  int64   `json:"max_micros"`
	Clamped    int     `json:"clamped,omitempty"`
}

// SortResult holds the step count and timing of one sort at one size
type SortResult struct {
	Steps  int    `json:"steps"`
	Timing Timing `json:"timing"`
}

// SizeResult holds every measurement taken at one collection size
type SizeResult struct {
	Size          int               `json:"size"`
	Bubble        SortResult        `json:"bubble"`
	Insertion     SortResult        `json:"insertion"`
	LinearSteps   int               `json:"linear_steps"`
	BinarySteps   int               `json:"binary_steps"`
	SortStepRatio fpdecimal.Decimal `json:"sort_step_ratio"`
}

// Report is the outcome of a comparison run
type Report struct {
	Sizes       []int        `json:"sizes"`
	Runs        int          `json:"runs"`
	CourierID   int          `json:"courier_id"`
	Results     []SizeResult `json:"results"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Run generates a fresh collection for every size and measures both sorts
// opts.Runs times, plus one linear search for opts.CourierID and one binary
// search for id size/2. The context is checked between sizes.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	gen, err := core.NewGenerator(opts.Generator)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Sizes:     opts.Sizes,
		Runs:      opts.Runs,
		CourierID: opts.CourierID,
		Results:   make([]SizeResult, 0, len(opts.Sizes)),
	}

	for _, size := range opts.Sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: size %d", core.ErrInvalidArgument, size)
		}

		result, err := measureSize(gen, size, opts)
		if err != nil {
			return nil, fmt.Errorf("size %d: %w", size, err)
		}
		report.Results = append(report.Results, result)
	}

	report.GeneratedAt = time.Now()
	return report, nil
}

func measureSize(gen *core.Generator, size int, opts Options) (SizeResult, error) {
	dispatcher := core.NewDispatcher(memory.NewMemoryBackend(), gen)
	if err := dispatcher.Generate(size); err != nil {
		return SizeResult{}, err
	}

	result := SizeResult{Size: size}

	bubble := newHistogram()
	insertion := newHistogram()
	var bubbleClamped, insertionClamped int
	for i := 0; i < opts.Runs; i++ {
		start := time.Now()
		_, steps, err := dispatcher.SortBubbleByPriority()
		if err != nil {
			return SizeResult{}, err
		}
		result.Bubble.Steps = steps
		if record(bubble, time.Since(start)) {
			bubbleClamped++
		}

		start = time.Now()
		_, steps, err = dispatcher.SortInsertionByPriority()
		if err != nil {
			return SizeResult{}, err
		}
		result.Insertion.Steps = steps
		if record(insertion, time.Since(start)) {
			insertionClamped++
		}
	}
	result.Bubble.Timing = summarize(bubble, bubbleClamped)
	result.Insertion.Timing = summarize(insertion, insertionClamped)

	var err error
	if _, result.LinearSteps, err = dispatcher.SearchLinearByCourier(opts.CourierID); err != nil {
		return SizeResult{}, err
	}
	if _, result.BinarySteps, err = dispatcher.SearchBinaryByID(size / 2); err != nil {
		return SizeResult{}, err
	}

	result.SortStepRatio, _ = Ratio(result.Bubble.Steps, result.Insertion.Steps)
	return result, nil
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, maxTrackableMicros, 3)
}

// record adds d to h and reports whether it had to be clamped to the
// histogram range
func record(h *hdrhistogram.Histogram, d time.Duration) bool {
	micros := d.Microseconds()
	clamped := false
	switch {
	case micros < 1:
		micros = 1
	case micros > maxTrackableMicros:
		micros = maxTrackableMicros
		clamped = true
	}
	if err := h.RecordValue(micros); err != nil {
		return true
	}
	return clamped
}

func summarize(h *hdrhistogram.Histogram, clamped int) Timing {
	return Timing{
		MeanMicros: h.Mean(),
		P50Micros:  h.ValueAtQuantile(50),
		MaxMicros:  h.Max(),
		Clamped:    clamped,
	}
}

// Ratio returns a/b as a fixed point decimal. ok is false when b is zero.
func Ratio(a, b int) (ratio fpdecimal.Decimal, ok bool) {
	if b == 0 {
		return fpdecimal.Zero, false
	}
	return fpdecimal.FromFloat(float64(a) / float64(b)), true
}
