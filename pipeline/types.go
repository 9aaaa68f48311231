package pipeline

import "context"

// ConvertFunc converts one input item into one output item.
//
// It is called concurrently from several workers with distinct inputs, so it
// must not share mutable state across calls without synchronizing. Returning
// a *DomainError marks the item as bad; any other error aborts the run.
//
// Type parameters:
//   - I: The input item type (a Record on the read path)
//   - O: The output item type (a Record on the write path)
type ConvertFunc[I any, O any] func(ctx context.Context, in I) (O, error)

// Sequenced pairs a value with the sequence number assigned at submission.
// Sequence numbers start at 1 and increase by one per submitted item.
type Sequenced[T any] struct {
	Sequence int64
	Value    T
}

// Record is one raw tabular record.
type Record struct {
	// Line is the physical line the record started on (0 when unknown).
	Line int64
	// Fields holds the record's columns.
	Fields []string
}

// LineNumber returns the line the record started on.
func (r Record) LineNumber() int64 { return r.Line }

// lineNumberer is implemented by inputs that know where they came from.
type lineNumberer interface {
	LineNumber() int64
}

// lineOf returns the line number of v if it carries one.
func lineOf(v any) int64 {
	if ln, ok := v.(lineNumberer); ok {
		return ln.LineNumber()
	}
	return 0
}
