package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/utkarsh5026/rowpipe/pipeline"
)

// Column types understood by the schema.
const (
	typeString = "string"
	typeInt    = "int"
	typeFloat  = "float"
	typeBool   = "bool"
)

// schema maps between CSV records and JSON objects keyed by column name.
type schema struct {
	columns  []string
	required map[string]bool
	types    map[string]string
}

func newSchema(columns, required, ints, floats, bools []string) (*schema, error) {
	s := &schema{
		columns:  columns,
		required: make(map[string]bool, len(required)),
		types:    make(map[string]string, len(columns)),
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		if known[c] {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		known[c] = true
		s.types[c] = typeString
	}

	for _, c := range required {
		if !known[c] {
			return nil, fmt.Errorf("required column %q is not in %v", c, columns)
		}
		s.required[c] = true
	}

	for typ, cols := range map[string][]string{typeInt: ints, typeFloat: floats, typeBool: bools} {
		for _, c := range cols {
			if !known[c] {
				return nil, fmt.Errorf("%s column %q is not in %v", typ, c, columns)
			}
			s.types[c] = typ
		}
	}
	return s, nil
}

// toObject converts one CSV record into an object.
func (s *schema) toObject(_ context.Context, rec pipeline.Record) (map[string]any, error) {
	if len(rec.Fields) > len(s.columns) {
		return nil, pipeline.ConstraintViolation("",
			fmt.Sprintf("record has %d fields but the header has %d", len(rec.Fields), len(s.columns)))
	}

	obj := make(map[string]any, len(s.columns))
	for i, col := range s.columns {
		var raw string
		if i < len(rec.Fields) {
			raw = strings.TrimSpace(rec.Fields[i])
		}

		if raw == "" {
			if s.required[col] {
				return nil, pipeline.RequiredMissing(col)
			}
			obj[col] = nil
			continue
		}

		v, err := parseValue(col, raw, s.types[col])
		if err != nil {
			return nil, err
		}
		obj[col] = v
	}
	return obj, nil
}

func parseValue(col, raw, typ string) (any, error) {
	switch typ {
	case typeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, pipeline.TypeMismatch(col, raw, typeInt).WithCause(err)
		}
		return n, nil
	case typeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, pipeline.TypeMismatch(col, raw, typeFloat).WithCause(err)
		}
		return f, nil
	case typeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, pipeline.TypeMismatch(col, raw, typeBool).WithCause(err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// jsonRow is one line of a JSON lines file.
type jsonRow struct {
	Line int64
	Raw  []byte
}

// LineNumber reports the line the row was read from.
func (r jsonRow) LineNumber() int64 { return r.Line }

// toRecord converts one JSON object into a CSV record in column order.
func (s *schema) toRecord(_ context.Context, row jsonRow) (pipeline.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(row.Raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return pipeline.Record{}, pipeline.ConstraintViolation("", "line is not a JSON object").WithCause(err)
	}

	fields := make([]string, len(s.columns))
	for i, col := range s.columns {
		v, ok := obj[col]
		if !ok || v == nil {
			if s.required[col] {
				return pipeline.Record{}, pipeline.RequiredMissing(col)
			}
			continue
		}

		field, err := formatValue(col, v, s.types[col])
		if err != nil {
			return pipeline.Record{}, err
		}
		fields[i] = field
	}
	return pipeline.Record{Line: row.Line, Fields: fields}, nil
}

func formatValue(col string, v any, typ string) (string, error) {
	switch x := v.(type) {
	case string:
		if typ != typeString {
			if _, err := parseValue(col, x, typ); err != nil {
				return "", err
			}
		}
		return x, nil
	case json.Number:
		switch typ {
		case typeInt:
			if _, err := x.Int64(); err != nil {
				return "", pipeline.TypeMismatch(col, x.String(), typeInt).WithCause(err)
			}
		case typeBool:
			return "", pipeline.TypeMismatch(col, x.String(), typeBool)
		}
		return x.String(), nil
	case bool:
		if typ == typeInt || typ == typeFloat {
			return "", pipeline.TypeMismatch(col, strconv.FormatBool(x), typ)
		}
		return strconv.FormatBool(x), nil
	default:
		return "", pipeline.TypeMismatch(col, fmt.Sprint(x), "scalar")
	}
}
