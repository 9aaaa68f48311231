package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/zoobzio/metricz"

	"github.com/utkarsh5026/rowpipe/pipeline"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
)

// newProgress returns a spinner counting converted rows, or nil when
// disabled.
func newProgress(w io.Writer, description string, disabled bool) *progressbar.ProgressBar {
	if disabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

// withProgress counts every conversion attempt on bar.
func withProgress[I, O any](convert pipeline.ConvertFunc[I, O], bar *progressbar.ProgressBar) pipeline.ConvertFunc[I, O] {
	if bar == nil {
		return convert
	}
	return func(ctx context.Context, in I) (O, error) {
		defer func() { _ = bar.Add(1) }()
		return convert(ctx, in)
	}
}

func finishProgress(w io.Writer, bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}
	_ = bar.Finish()
	fmt.Fprintln(w)
}

// printCaptured lists captured rows, at most limit of them.
func printCaptured(w io.Writer, captured []*pipeline.CapturedError, limit int) {
	if len(captured) == 0 {
		return
	}

	_, _ = yellow.Fprintf(w, "%d rows rejected:\n", len(captured))
	for i, ce := range captured {
		if limit > 0 && i == limit {
			_, _ = yellow.Fprintf(w, "  ... and %d more\n", len(captured)-limit)
			return
		}
		if ce.Line > 0 {
			_, _ = red.Fprintf(w, "  line %d: ", ce.Line)
		} else {
			_, _ = red.Fprintf(w, "  item %d: ", ce.Sequence)
		}
		fmt.Fprintln(w, ce.Err)
	}
}

// printSummary renders the run counters as a table.
func printSummary(w io.Writer, metrics *metricz.Registry, written int, elapsed time.Duration) {
	_, _ = bold.Fprintln(w, "Summary")

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	_ = table.Append("Rows submitted", counter(metrics, pipeline.MetricItemsSubmitted))
	_ = table.Append("Rows converted", counter(metrics, pipeline.MetricItemsConverted))
	_ = table.Append("Rows captured", counter(metrics, pipeline.MetricItemsCaptured))
	_ = table.Append("Rows skipped", counter(metrics, pipeline.MetricItemsSkipped))
	_ = table.Append("Records written", fmt.Sprintf("%d", written))
	_ = table.Append("Workers", gauge(metrics, pipeline.MetricWorkersMax))
	_ = table.Append("Elapsed", elapsed.Round(time.Millisecond).String())
	_ = table.Render()
}

func printDone(w io.Writer, format string, args ...any) {
	_, _ = green.Fprintf(w, format+"\n", args...)
}

func counter(m *metricz.Registry, key metricz.Key) string {
	return fmt.Sprintf("%.0f", m.Counter(key).Value())
}

func gauge(m *metricz.Registry, key metricz.Key) string {
	return fmt.Sprintf("%.0f", m.Gauge(key).Value())
}
