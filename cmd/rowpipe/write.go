package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/rowpipe/internal/csvio"
	"github.com/utkarsh5026/rowpipe/internal/logger"
	"github.com/utkarsh5026/rowpipe/pipeline"
)

const maxLineSize = 16 << 20

type writeOptions struct {
	output     string
	columns    []string
	required   []string
	ints       []string
	floats     []string
	bools      []string
	noHeader   bool
	crlf       bool
	noProgress bool
	quiet      bool
	showErrors int
}

func newWriteCmd(a *app) *cobra.Command {
	opts := &writeOptions{}

	cmd := &cobra.Command{
		Use:   "write <file.jsonl>",
		Short: "Convert JSON lines into a CSV file",
		Example: `  rowpipe write people.jsonl --columns id,name,age --int age -o people.csv
  rowpipe write people.jsonl --columns id,name --required id --capture`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, a, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "write CSV to this file instead of stdout")
	f.StringSliceVar(&opts.columns, "columns", nil, "output columns, in order")
	f.StringSliceVar(&opts.required, "required", nil, "columns that must be present")
	f.StringSliceVar(&opts.ints, "int", nil, "columns that must hold integers")
	f.StringSliceVar(&opts.floats, "float", nil, "columns that must hold numbers")
	f.StringSliceVar(&opts.bools, "bool", nil, "columns that must hold booleans")
	f.BoolVar(&opts.noHeader, "no-header", false, "do not write a header row")
	f.BoolVar(&opts.crlf, "crlf", false, "terminate lines with \\r\\n")
	f.BoolVar(&opts.noProgress, "no-progress", false, "hide the progress indicator")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the summary")
	f.IntVar(&opts.showErrors, "show-errors", 20, "maximum number of rejected rows to list (0 = all)")
	_ = cmd.MarkFlagRequired("columns")
	return cmd
}

func runWrite(cmd *cobra.Command, a *app, opts *writeOptions, path string) error {
	sch, err := newSchema(opts.columns, opts.required, opts.ints, opts.floats, opts.bools)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, closeOut, err := openOutput(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	sinkOpts := []csvio.Option{csvio.WithSeparator(a.cfg.Pipeline.SeparatorRune())}
	if opts.crlf {
		sinkOpts = append(sinkOpts, csvio.WithCRLF())
	}

	errOut := cmd.ErrOrStderr()
	log := a.log.With().Str(logger.FieldFile, path).Logger()
	bar := newProgress(errOut, "Converting "+path, opts.noProgress)

	pipelineOpts := append(a.cfg.Pipeline.Options(), pipeline.WithLogger(logger.WithComponent(log, "writer")))
	if !opts.noHeader {
		pipelineOpts = append(pipelineOpts, pipeline.WithHeader(opts.columns...))
	}
	w := pipeline.NewWriter(csvio.NewSink(out, sinkOpts...), withProgress(sch.toRecord, bar), pipelineOpts...)
	defer w.Close()

	started := time.Now()
	written, runErr := w.Write(cmd.Context(), jsonLines(in))

	finishProgress(errOut, bar)
	printCaptured(errOut, w.CapturedErrors(), opts.showErrors)
	if !opts.quiet {
		printSummary(errOut, w.Metrics(), written, time.Since(started))
	}
	if runErr != nil {
		return runErr
	}

	log.Info().Int("written", written).Msg("write finished")
	if !opts.quiet {
		printDone(errOut, "Wrote %d records from %s", written, path)
	}
	return nil
}

// jsonLines yields the non-blank lines of f with their line numbers.
func jsonLines(f *os.File) pipeline.Source[jsonRow] {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var line int64
	return pipeline.FromFunc(func(context.Context) (jsonRow, bool, error) {
		for sc.Scan() {
			line++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}
			return jsonRow{Line: line, Raw: bytes.Clone(raw)}, true, nil
		}
		return jsonRow{}, false, sc.Err()
	})
}
