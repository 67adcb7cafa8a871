package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/erain9/orderlab/pkg/backend/memory"
	"github.com/erain9/orderlab/pkg/compare"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// previewSize is the number of sorted orders printed per sort
const previewSize = 5

type demoOptions struct {
	Count     int
	CourierID int
	OrderID   int
	Sizes     []int
	Generator core.GeneratorConfig
}

var (
	title   = color.New(color.FgCyan, color.Bold).SprintFunc()
	section = color.New(color.FgYellow).SprintFunc()
	good    = color.New(color.FgGreen).SprintfFunc()
)

func main() {
	count := flag.Int("count", 100, "Number of orders to generate")
	courierID := flag.Int("courier", 150, "Courier searched by the linear search")
	orderID := flag.Int("order", 50, "Order id searched by the binary search")
	seed := flag.Int64("seed", 0, "Generator seed, 0 seeds from the clock")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *noColor {
		color.NoColor = true
	}

	gen := core.DefaultGeneratorConfig()
	gen.Seed = *seed

	err := runDemo(context.Background(), os.Stdout, demoOptions{
		Count:     *count,
		CourierID: *courierID,
		OrderID:   *orderID,
		Sizes:     []int{10, 50, 100, 500, 1000},
		Generator: gen,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Demo failed")
	}
}

func runDemo(ctx context.Context, w io.Writer, opts demoOptions) error {
	gen, err := core.NewGenerator(opts.Generator)
	if err != nil {
		return err
	}
	dispatcher := core.NewDispatcher(memory.NewMemoryBackend(), gen)

	fmt.Fprintln(w, title("=== ORDER DISPATCH ALGORITHMS ==="))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Generating %d test orders...\n", opts.Count)
	if err := dispatcher.Generate(opts.Count); err != nil {
		return err
	}
	total, err := dispatcher.Len()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Generated %d orders\n\n", total)

	fmt.Fprintln(w, section("--- SEARCH ---"))
	matches, linearSteps, err := dispatcher.SearchLinearByCourier(opts.CourierID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Linear search - courier %d:\n", opts.CourierID)
	fmt.Fprintf(w, "  Orders found: %d\n", len(matches))
	fmt.Fprintf(w, "  Steps: %d\n", linearSteps)
	fmt.Fprintf(w, "  Complexity: %s\n\n", core.AlgorithmLinearSearch.Complexity())

	found, binarySteps, err := dispatcher.SearchBinaryByID(opts.OrderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Binary search - order %d:\n", opts.OrderID)
	if found != nil {
		fmt.Fprintf(w, "  Order found: %s\n", found)
	} else {
		fmt.Fprintln(w, "  Order not found")
	}
	fmt.Fprintf(w, "  Steps: %d\n", binarySteps)
	fmt.Fprintf(w, "  Complexity: %s\n\n", core.AlgorithmBinarySearch.Complexity())

	fmt.Fprintln(w, section("--- SORT ---"))
	bubbleSorted, bubbleSteps, err := dispatcher.SortBubbleByPriority()
	if err != nil {
		return err
	}
	printSort(w, "Bubble sort", core.AlgorithmBubbleSort, bubbleSorted, bubbleSteps)

	insertionSorted, insertionSteps, err := dispatcher.SortInsertionByPriority()
	if err != nil {
		return err
	}
	printSort(w, "Insertion sort", core.AlgorithmInsertionSort, insertionSorted, insertionSteps)

	fmt.Fprintln(w, section("--- EFFICIENCY ---"))
	fmt.Fprintln(w, "Linear vs binary search:")
	fmt.Fprintf(w, "  Step difference: %d\n", linearSteps-binarySteps)
	fmt.Fprintf(w, "  Binary search was %s\n\n", timesMoreEfficient(linearSteps, binarySteps))
	fmt.Fprintln(w, "Bubble vs insertion sort:")
	fmt.Fprintf(w, "  Step difference: %d\n", bubbleSteps-insertionSteps)
	fmt.Fprintf(w, "  Insertion sort was %s\n\n", timesMoreEfficient(bubbleSteps, insertionSteps))

	report, err := compare.Run(ctx, compare.Options{
		Sizes:     opts.Sizes,
		Runs:      1,
		Generator: opts.Generator,
	})
	if err != nil {
		return err
	}
	printScalability(w, report)
	return nil
}

func printSort(w io.Writer, name string, algorithm core.Algorithm, sorted []*core.Order, steps int) {
	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Steps: %d\n", steps)
	fmt.Fprintf(w, "  Complexity: %s\n", algorithm.Complexity())
	fmt.Fprintf(w, "  First %d sorted orders:\n", min(previewSize, len(sorted)))
	for _, order := range sorted[:min(previewSize, len(sorted))] {
		fmt.Fprintf(w, "    %s\n", order)
	}
	fmt.Fprintln(w)
}

// timesMoreEfficient renders a/b as a ratio, or "infinitely more efficient"
// when b is zero
func timesMoreEfficient(a, b int) string {
	ratio, ok := compare.Ratio(a, b)
	if !ok {
		return good("infinitely more efficient")
	}
	return good("%sx more efficient", ratio)
}

func printScalability(w io.Writer, report *compare.Report) {
	fmt.Fprintln(w, title("=== SCALABILITY ==="))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Size\tLinear\tBinary\tBubble\tInsertion\tBubble µs\tInsertion µs\t")
	for _, res := range report.Results {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t\n",
			res.Size,
			res.LinearSteps,
			res.BinarySteps,
			res.Bubble.Steps,
			res.Insertion.Steps,
			res.Bubble.Timing.MeanMicros,
			res.Insertion.Timing.MeanMicros,
		)
	}
	_ = tw.Flush()
}
