package server

import (
	"strconv"
	"strings"

	"github.com/erain9/orderlab/pkg/compare"
)

// Chart geometry in SVG user units
const (
	chartWidth  = 520
	chartHeight = 280
	chartMargin = 48
)

type chartSeries struct {
	Name   string
	Color  string
	Points string
}

type chartTick struct {
	Pos   float64
	Label string
}

type lineChart struct {
	Title  string
	YLabel string
	Width  int
	Height int
	Left   int
	Right  int
	Top    int
	Bottom int
	Series []chartSeries
	XTicks []chartTick
	YTicks []chartTick
}

type compareView struct {
	Report *compare.Report
	Time   lineChart
	Steps  lineChart
}

func newCompareView(report *compare.Report) compareView {
	sizes := make([]float64, len(report.Results))
	bubbleTime := make([]float64, len(report.Results))
	insertionTime := make([]float64, len(report.Results))
	bubbleSteps := make([]float64, len(report.Results))
	insertionSteps := make([]float64, len(report.Results))

	for i, res := range report.Results {
		sizes[i] = float64(res.Size)
		bubbleTime[i] = res.Bubble.Timing.MeanMicros
		insertionTime[i] = res.Insertion.Timing.MeanMicros
		bubbleSteps[i] = float64(res.Bubble.Steps)
		insertionSteps[i] = float64(res.Insertion.Steps)
	}

	return compareView{
		Report: report,
		Time: newLineChart("Mean sort time", "µs", sizes,
			[]string{"Bubble sort", "Insertion sort"},
			bubbleTime, insertionTime),
		Steps: newLineChart("Steps", "steps", sizes,
			[]string{"Bubble sort", "Insertion sort"},
			bubbleSteps, insertionSteps),
	}
}

var seriesColors = []string{"#d62728", "#1f77b4", "#2ca02c", "#ff7f0e"}

// newLineChart scales every series onto a shared size axis. Values are
// expected to be non-negative.
func newLineChart(title, yLabel string, xs []float64, names []string, series ...[]float64) lineChart {
	chart := lineChart{
		Title:  title,
		YLabel: yLabel,
		Width:  chartWidth,
		Height: chartHeight,
		Left:   chartMargin,
		Right:  chartWidth - chartMargin/2,
		Top:    chartMargin / 2,
		Bottom: chartHeight - chartMargin,
	}

	xMax := maxOf(xs)
	yMax := 0.0
	for _, values := range series {
		yMax = max(yMax, maxOf(values))
	}
	if xMax == 0 {
		xMax = 1
	}
	if yMax == 0 {
		yMax = 1
	}

	plotW := float64(chart.Right - chart.Left)
	plotH := float64(chart.Bottom - chart.Top)
	xPos := func(x float64) float64 { return float64(chart.Left) + x/xMax*plotW }
	yPos := func(y float64) float64 { return float64(chart.Bottom) - y/yMax*plotH }

	for i, values := range series {
		points := make([]string, 0, len(values))
		for j, y := range values {
			points = append(points, formatCoord(xPos(xs[j]))+","+formatCoord(yPos(y)))
		}
		chart.Series = append(chart.Series, chartSeries{
			Name:   names[i],
			Color:  seriesColors[i%len(seriesColors)],
			Points: strings.Join(points, " "),
		})
	}

	for _, x := range xs {
		chart.XTicks = append(chart.XTicks, chartTick{Pos: xPos(x), Label: strconv.FormatFloat(x, 'f', -1, 64)})
	}
	for i := 0; i <= 4; i++ {
		y := yMax * float64(i) / 4
		chart.YTicks = append(chart.YTicks, chartTick{Pos: yPos(y), Label: strconv.FormatFloat(y, 'f', 0, 64)})
	}

	return chart
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = max(m, v)
	}
	return m
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
