package core

// filter.go implements the row filters. Both variants read the input without
// a header: the first record is copied to the output untouched and every
// later record is tested against one column.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/csvkit/internal/logging"
	"github.com/JonMunkholm/csvkit/internal/metrics"
)

// predicate reports whether a field value matches.
type predicate func(field string) bool

func exactMatch(literal string) predicate {
	return func(field string) bool { return field == literal }
}

func substringMatch(literal string) predicate {
	return func(field string) bool { return strings.Contains(field, literal) }
}

// anySubstringMatch matches when the field contains at least one literal.
func anySubstringMatch(literals []string) predicate {
	return func(field string) bool {
		for _, lit := range literals {
			if strings.Contains(field, lit) {
				return true
			}
		}
		return false
	}
}

// FilterRow writes the first record of req.CSVPath followed by every later
// record whose field req.Column equals (MatchExact) or contains
// (MatchSubstring) req.Literal.
func FilterRow(ctx context.Context, req FilterRowRequest) (res FilterResult, err error) {
	const op = "filter_row"
	start := time.Now()
	defer func() { metrics.Observe(op, start, err) }()

	var match predicate
	switch req.Mode {
	case MatchExact:
		match = exactMatch(req.Literal)
	case MatchSubstring:
		match = substringMatch(req.Literal)
	default:
		return res, argErr(op, "unknown match mode %d", req.Mode)
	}

	log := logging.WithFields(ctx, "op", op, "input", req.CSVPath, "column", req.Column, "mode", req.Mode.String())
	log.Info("filter started")

	res, err = filterFile(ctx, op, req.CSVPath, req.OutputPath, req.Delimiter, req.Column, match, req.Options)
	if err != nil {
		log.Error("filter failed", "error", err)
		return res, err
	}

	log.Info("filter finished", "rows_read", res.RowsRead, "rows_written", res.RowsWritten, "duration", time.Since(start))
	return res, nil
}

// FilterRows loads the literals in req.ListPath (one per line) and writes
// the first record of req.CSVPath followed by every later record whose field
// req.Column contains any of them.
func FilterRows(ctx context.Context, req FilterRowsRequest) (res FilterResult, err error) {
	const op = "filter_rows"
	start := time.Now()
	defer func() { metrics.Observe(op, start, err) }()

	literals, err := LoadList(req.ListPath)
	if err != nil {
		return res, err
	}

	log := logging.WithFields(ctx, "op", op, "input", req.CSVPath, "list", req.ListPath, "literals", len(literals), "column", req.Column)
	log.Info("filter started")

	res, err = filterFile(ctx, op, req.CSVPath, req.OutputPath, req.Delimiter, req.Column, anySubstringMatch(literals), req.Options)
	if err != nil {
		log.Error("filter failed", "error", err)
		return res, err
	}

	log.Info("filter finished", "rows_read", res.RowsRead, "rows_written", res.RowsWritten, "duration", time.Since(start))
	return res, nil
}

// LoadList reads a newline-delimited list of literals. CRLF endings are
// accepted and duplicates are dropped. Blank lines are skipped instead of
// becoming an empty literal: an empty literal is a substring of every field
// and would turn FilterRows into a copy of the input.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("load list", path, err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var literals []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lit := strings.TrimSuffix(sc.Text(), "\r")
		if lit == "" {
			continue
		}
		if _, dup := seen[lit]; dup {
			continue
		}
		seen[lit] = struct{}{}
		literals = append(literals, lit)
	}
	if err := sc.Err(); err != nil {
		return nil, ioErr("load list", path, err)
	}
	return literals, nil
}

func filterFile(ctx context.Context, op, in, out string, delim byte, col int, match predicate, opts Options) (res FilterResult, err error) {
	defer func() {
		metrics.RowsRead.WithLabelValues(op).Add(float64(res.RowsRead))
		metrics.RowsWritten.WithLabelValues(op).Add(float64(res.RowsWritten))
	}()

	if col < 0 {
		return res, E(KindIndex, op, in, fmt.Errorf("column %d is negative", col))
	}

	r, err := OpenReader(in, ReadOptions{Delimiter: delim, SanitizeUTF8: opts.SanitizeUTF8})
	if err != nil {
		return res, err
	}
	defer r.Close()

	w, err := CreateWriter(out, opts.writeOptions())
	if err != nil {
		return res, err
	}
	defer closeWriter(w, &err)

	first, err := r.Next()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if err := w.Write(first); err != nil {
		return res, err
	}

	for rec, rerr := range r.Records() {
		if rerr != nil {
			return res, rerr
		}
		res.RowsRead++
		if err := checkContext(ctx, op, res.RowsRead, r.Line()); err != nil {
			return res, err
		}

		if col >= len(rec) {
			return res, &Error{
				Kind: KindIndex, Op: op, Path: in, Line: r.Line(),
				Err: fmt.Errorf("column %d out of range for record with %d fields", col, len(rec)),
			}
		}
		if !match(rec[col]) {
			continue
		}
		if err := w.Write(rec); err != nil {
			return res, err
		}
		res.RowsWritten++
	}
	return res, nil
}
