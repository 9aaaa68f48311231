// Package benchmarks measures rowpipe throughput under different workloads
// and pipeline settings.
package benchmarks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/utkarsh5026/rowpipe/pipeline"
)

// generateRows builds n records of the form id,name,score. Every badEvery-th
// record has an unparsable score; zero disables bad rows.
func generateRows(n, badEvery int) [][]string {
	rows := make([][]string, n)
	for i := range n {
		score := strconv.Itoa(i % 1000)
		if badEvery > 0 && i%badEvery == badEvery-1 {
			score = "n/a"
		}
		rows[i] = []string{strconv.Itoa(i), fmt.Sprintf("user-%d", i), score}
	}
	return rows
}

type user struct {
	ID    int
	Name  string
	Score int
}

// parseUser is a cheap converter dominated by strconv work.
func parseUser(_ context.Context, rec pipeline.Record) (user, error) {
	id, err := strconv.Atoi(rec.Fields[0])
	if err != nil {
		return user{}, pipeline.TypeMismatch("id", rec.Fields[0], "int")
	}
	score, err := strconv.Atoi(rec.Fields[2])
	if err != nil {
		return user{}, pipeline.TypeMismatch("score", rec.Fields[2], "int")
	}
	return user{ID: id, Name: rec.Fields[1], Score: score}, nil
}

// cpuBoundParse adds a fixed amount of arithmetic to every conversion.
func cpuBoundParse(iterations int) pipeline.ConvertFunc[pipeline.Record, user] {
	return func(ctx context.Context, rec pipeline.Record) (user, error) {
		u, err := parseUser(ctx, rec)
		if err != nil {
			return u, err
		}
		acc := 0
		for i := range iterations {
			acc += i * u.ID
		}
		u.Score += acc & 1
		return u, nil
	}
}

// ioBoundParse simulates a lookup with a fixed delay per record.
func ioBoundParse(delay time.Duration) pipeline.ConvertFunc[pipeline.Record, user] {
	return func(ctx context.Context, rec pipeline.Record) (user, error) {
		select {
		case <-time.After(delay):
			return parseUser(ctx, rec)
		case <-ctx.Done():
			return user{}, ctx.Err()
		}
	}
}

func formatUser(_ context.Context, u user) (pipeline.Record, error) {
	return pipeline.Record{Fields: []string{strconv.Itoa(u.ID), u.Name, strconv.Itoa(u.Score)}}, nil
}

// discardSink drops every record.
type discardSink struct{ n int }

func (s *discardSink) WriteRecord(pipeline.Record) error {
	s.n++
	return nil
}

func (s *discardSink) Flush() error { return nil }
