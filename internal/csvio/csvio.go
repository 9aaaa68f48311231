// Package csvio adapts CSV streams to pipeline sources and sinks.
//
// Tokenization is left to encoding/csv; this package only tracks line
// numbers, the optional header row and blank-row skipping.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/utkarsh5026/rowpipe/pipeline"
)

const utf8BOM = "\ufeff"

type options struct {
	comma      rune
	comment    rune
	lazyQuotes bool
	header     bool
	skipEmpty  bool
	useCRLF    bool
}

// Option configures a Source or Sink.
type Option func(*options)

// WithSeparator sets the field delimiter (default ',').
func WithSeparator(r rune) Option {
	return func(o *options) { o.comma = r }
}

// WithComment makes lines starting with r comments. Source only.
func WithComment(r rune) Option {
	return func(o *options) { o.comment = r }
}

// WithLazyQuotes tolerates quotes in unquoted fields. Source only.
func WithLazyQuotes() Option {
	return func(o *options) { o.lazyQuotes = true }
}

// WithHeader treats the first record as a header. Source only.
func WithHeader() Option {
	return func(o *options) { o.header = true }
}

// WithSkipEmpty drops records whose fields are all blank. Source only.
func WithSkipEmpty() Option {
	return func(o *options) { o.skipEmpty = true }
}

// WithCRLF terminates written lines with \r\n. Sink only.
func WithCRLF() Option {
	return func(o *options) { o.useCRLF = true }
}

func apply(opts []Option) options {
	o := options{comma: ','}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Source reads pipeline records from CSV input.
type Source struct {
	r      *csv.Reader
	opts   options
	header []string
	primed bool
}

var _ pipeline.Source[pipeline.Record] = (*Source)(nil)

// NewSource returns a Source reading from r. Records may have varying
// numbers of fields.
func NewSource(r io.Reader, opts ...Option) *Source {
	o := apply(opts)

	cr := csv.NewReader(r)
	cr.Comma = o.comma
	cr.Comment = o.comment
	cr.LazyQuotes = o.lazyQuotes
	cr.FieldsPerRecord = -1

	return &Source{r: cr, opts: o}
}

// Header returns the header row, reading it if necessary. It returns nil
// when the Source was created without WithHeader or the input is empty.
func (s *Source) Header() ([]string, error) {
	if err := s.prime(); err != nil {
		return nil, err
	}
	return s.header, nil
}

// Next returns the next data record.
func (s *Source) Next(ctx context.Context) (pipeline.Record, bool, error) {
	if err := s.prime(); err != nil {
		return pipeline.Record{}, false, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Record{}, false, err
		}

		fields, line, err := s.read()
		if errors.Is(err, io.EOF) {
			return pipeline.Record{}, false, nil
		}
		if err != nil {
			return pipeline.Record{}, false, err
		}
		if s.opts.skipEmpty && isEmptyRow(fields) {
			continue
		}
		return pipeline.Record{Line: line, Fields: fields}, true, nil
	}
}

func (s *Source) prime() error {
	if s.primed {
		return nil
	}
	s.primed = true

	if !s.opts.header {
		return nil
	}

	fields, _, err := s.read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	if len(fields) > 0 {
		fields[0] = strings.TrimPrefix(fields[0], utf8BOM)
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	s.header = fields
	return nil
}

func (s *Source) read() ([]string, int64, error) {
	fields, err := s.r.Read()
	if err != nil {
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return fields, int64(line), nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Sink writes pipeline records as CSV.
type Sink struct {
	w *csv.Writer
}

var _ pipeline.Sink = (*Sink)(nil)

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer, opts ...Option) *Sink {
	o := apply(opts)

	cw := csv.NewWriter(w)
	cw.Comma = o.comma
	cw.UseCRLF = o.useCRLF

	return &Sink{w: cw}
}

// WriteRecord writes the record's fields as one CSV line.
func (s *Sink) WriteRecord(rec pipeline.Record) error {
	return s.w.Write(rec.Fields)
}

// Flush flushes buffered output and reports any write error.
func (s *Sink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}
