package compare

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed int64) core.GeneratorConfig {
	cfg := core.DefaultGeneratorConfig()
	cfg.Seed = seed
	return cfg
}

func TestRunDefaults(t *testing.T) {
	report, err := Run(context.Background(), Options{Generator: seeded(1)})
	require.NoError(t, err)

	assert.Equal(t, DefaultSizes, report.Sizes)
	assert.Equal(t, DefaultRuns, report.Runs)
	assert.Equal(t, DefaultCourierID, report.CourierID)
	require.Len(t, report.Results, len(DefaultSizes))
	assert.False(t, report.GeneratedAt.IsZero())

	for _, r := range report.Results {
		n := r.Size
		assert.Equal(t, n*(n-1)/2, r.Bubble.Steps, "size %d", n)
		assert.GreaterOrEqual(t, r.Insertion.Steps, n-1)
		assert.LessOrEqual(t, r.Insertion.Steps, r.Bubble.Steps+n-1)
		assert.Equal(t, n, r.LinearSteps)
		assert.Positive(t, r.BinarySteps)
		assert.GreaterOrEqual(t, r.Bubble.Timing.MaxMicros, r.Bubble.Timing.P50Micros)
		assert.Positive(t, r.Bubble.Timing.MeanMicros)
	}
}

func TestRunBinarySearchFindsMiddleID(t *testing.T) {
	report, err := Run(context.Background(), Options{Sizes: []int{1, 7}, Runs: 2, Generator: seeded(2)})
	require.NoError(t, err)

	// id 0 is never generated, so a collection of one misses after one step
	assert.Equal(t, 1, report.Results[0].BinarySteps)
	// ids 1..7: midpoints 4, 2, then 3
	assert.Equal(t, 3, report.Results[1].BinarySteps)
}

func TestRunEmptySize(t *testing.T) {
	report, err := Run(context.Background(), Options{Sizes: []int{0}, Generator: seeded(3)})
	require.NoError(t, err)

	r := report.Results[0]
	assert.Zero(t, r.Bubble.Steps)
	assert.Zero(t, r.Insertion.Steps)
	assert.Zero(t, r.LinearSteps)
	assert.Zero(t, r.BinarySteps)
	assert.Equal(t, fpdecimal.Zero, r.SortStepRatio)
}

func TestRunErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Run(context.Background(), Options{Sizes: []int{-1}})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	bad := core.DefaultGeneratorConfig()
	bad.CourierProbability = 3
	_, err = Run(context.Background(), Options{Generator: bad})
	assert.ErrorIs(t, err, core.ErrInvalidGenerator)
}

func TestRatio(t *testing.T) {
	ratio, ok := Ratio(10, 4)
	assert.True(t, ok)
	assert.Equal(t, fpdecimal.FromFloat(2.5), ratio)

	_, ok = Ratio(10, 0)
	assert.False(t, ok)
}

func TestReportJSON(t *testing.T) {
	report, err := Run(context.Background(), Options{Sizes: []int{10}, Generator: seeded(4)})
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	results := decoded["results"].([]any)
	first := results[0].(map[string]any)
	assert.EqualValues(t, 10, first["size"])
	assert.EqualValues(t, 45, first["bubble"].(map[string]any)["steps"])
}

func TestRecordClampsLongRuns(t *testing.T) {
	h := newHistogram()

	assert.False(t, record(h, 0))
	assert.False(t, record(h, 250*time.Microsecond))
	assert.True(t, record(h, 2*time.Minute))

	assert.Equal(t, int64(3), h.TotalCount())
	assert.InEpsilon(t, float64(maxTrackableMicros), float64(h.Max()), 0.001)

	timing := summarize(h, 1)
	assert.Equal(t, 1, timing.Clamped)
	assert.InEpsilon(t, float64(maxTrackableMicros), float64(timing.MaxMicros), 0.001)
}
