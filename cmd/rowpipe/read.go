package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/rowpipe/internal/csvio"
	"github.com/utkarsh5026/rowpipe/internal/logger"
	"github.com/utkarsh5026/rowpipe/pipeline"
)

type readOptions struct {
	output     string
	required   []string
	ints       []string
	floats     []string
	bools      []string
	lazyQuotes bool
	stream     bool
	noProgress bool
	quiet      bool
	showErrors int
}

func newReadCmd(a *app) *cobra.Command {
	opts := &readOptions{}

	cmd := &cobra.Command{
		Use:   "read <file.csv>",
		Short: "Convert a CSV file with a header row into JSON lines",
		Example: `  rowpipe read people.csv --required id,name --int age
  rowpipe read people.csv --capture --workers 8 -o people.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, a, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "write JSON lines to this file instead of stdout")
	f.StringSliceVar(&opts.required, "required", nil, "columns that must not be empty")
	f.StringSliceVar(&opts.ints, "int", nil, "columns holding integers")
	f.StringSliceVar(&opts.floats, "float", nil, "columns holding floating point numbers")
	f.StringSliceVar(&opts.bools, "bool", nil, "columns holding booleans")
	f.BoolVar(&opts.lazyQuotes, "lazy-quotes", false, "tolerate stray quotes in unquoted fields")
	f.BoolVar(&opts.stream, "stream", false, "convert one row at a time and print as soon as it is ready")
	f.BoolVar(&opts.noProgress, "no-progress", false, "hide the progress indicator")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the summary")
	f.IntVar(&opts.showErrors, "show-errors", 20, "maximum number of rejected rows to list (0 = all)")
	return cmd
}

func runRead(cmd *cobra.Command, a *app, opts *readOptions, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	srcOpts := []csvio.Option{
		csvio.WithHeader(),
		csvio.WithSkipEmpty(),
		csvio.WithSeparator(a.cfg.Pipeline.SeparatorRune()),
	}
	if opts.lazyQuotes {
		srcOpts = append(srcOpts, csvio.WithLazyQuotes())
	}
	src := csvio.NewSource(in, srcOpts...)

	header, err := src.Header()
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return fmt.Errorf("%s: no header row", path)
	}

	sch, err := newSchema(header, opts.required, opts.ints, opts.floats, opts.bools)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	errOut := cmd.ErrOrStderr()
	log := a.log.With().Str(logger.FieldFile, path).Logger()
	bar := newProgress(errOut, "Converting "+path, opts.noProgress)

	pipelineOpts := append(a.cfg.Pipeline.Options(), pipeline.WithLogger(logger.WithComponent(log, "reader")))
	r := pipeline.NewReader(src, withProgress(sch.toObject, bar), pipelineOpts...)
	defer r.Close()

	enc := json.NewEncoder(out)
	started := time.Now()
	written := 0

	var runErr error
	var captured []*pipeline.CapturedError
	if opts.stream {
		it := r.Iterator()
		for obj, err := range it.All(cmd.Context()) {
			if err != nil {
				runErr = err
				break
			}
			if err := enc.Encode(obj); err != nil {
				return err
			}
			written++
		}
		captured = it.CapturedErrors()
	} else {
		objs, err := r.ReadAll(cmd.Context())
		runErr = err
		for _, obj := range objs {
			if err := enc.Encode(obj); err != nil {
				return err
			}
			written++
		}
		captured = r.CapturedErrors()
	}

	finishProgress(errOut, bar)
	printCaptured(errOut, captured, opts.showErrors)
	if !opts.quiet {
		printSummary(errOut, r.Metrics(), written, time.Since(started))
	}

	if runErr != nil {
		var convErr *pipeline.ConversionError
		if errors.As(runErr, &convErr) {
			log.Error().Err(convErr.Err).Int64("line", convErr.Line).Msg("conversion aborted")
		}
		return runErr
	}

	log.Info().Int("written", written).Int("rejected", len(captured)).Msg("read finished")
	if !opts.quiet {
		printDone(errOut, "Converted %d rows from %s", written, path)
	}
	return nil
}

// openOutput returns the file at path, or def when path is empty.
func openOutput(def io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return def, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
