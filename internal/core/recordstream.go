package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"unicode/utf8"
)

// DefaultOutputDelimiter is the delimiter every operation writes with unless
// the caller overrides it.
const DefaultOutputDelimiter byte = '|'

// Record is one row of a delimited file.
type Record = []string

// ReadOptions configures OpenReader.
type ReadOptions struct {
	Delimiter    byte
	HasHeader    bool
	SanitizeUTF8 bool // replace invalid UTF-8 with '?' instead of failing
}

// WriteOptions configures CreateWriter.
type WriteOptions struct {
	Delimiter byte
}

// RecordReader reads records from a delimited file in a single pass.
type RecordReader struct {
	path      string
	file      *os.File
	counter   *CountingReader
	csv       *csv.Reader
	header    Record
	line      int
	rows      int
	checkUTF8 bool
}

// OpenReader opens path for reading. When opts.HasHeader is set the first
// record is consumed here and exposed through Header.
func OpenReader(path string, opts ReadOptions) (*RecordReader, error) {
	comma, err := delimiterRune(opts.Delimiter)
	if err != nil {
		return nil, E(KindInvalidArgument, "open", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	counter := wrapInput(f, size, opts.SanitizeUTF8)
	cr := csv.NewReader(counter)
	cr.Comma = comma
	// A quote inside an unquoted field (12" pipe) is data, not an error.
	// FieldsPerRecord stays 0 so the first record still fixes the width.
	cr.LazyQuotes = true

	r := &RecordReader{
		path:      path,
		file:      f,
		counter:   counter,
		csv:       cr,
		checkUTF8: !opts.SanitizeUTF8,
	}

	if opts.HasHeader {
		header, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			// empty file: no header, no records
		case err != nil:
			f.Close()
			return nil, err
		default:
			r.header = header
			r.rows = 0
		}
	}

	return r, nil
}

// Header returns the header record, or nil when none was read.
func (r *RecordReader) Header() Record {
	return r.header
}

// Next returns the next record. It returns io.EOF once the input is
// exhausted; every other error is an *Error.
func (r *RecordReader) Next() (Record, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &Error{Kind: KindFormat, Op: "read", Path: r.path, Line: perr.Line, Err: perr.Err}
		}
		return nil, ioErr("read", r.path, err)
	}

	r.line, _ = r.csv.FieldPos(0)
	if r.checkUTF8 {
		for i, field := range rec {
			if !utf8.ValidString(field) {
				return nil, &Error{
					Kind: KindFormat, Op: "read", Path: r.path, Line: r.line,
					Err: fmt.Errorf("field %d is not valid UTF-8", i),
				}
			}
		}
	}
	r.rows++
	return rec, nil
}

// Records returns the remaining records as a single-pass sequence. Iteration
// stops after the first error is yielded.
func (r *RecordReader) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Line returns the input line where the last record started.
func (r *RecordReader) Line() int { return r.line }

// Rows returns the number of data records read so far.
func (r *RecordReader) Rows() int { return r.rows }

// BytesRead returns the number of input bytes consumed so far.
func (r *RecordReader) BytesRead() int64 { return r.counter.BytesRead }

// Progress returns the share of the file consumed, 0-100.
func (r *RecordReader) Progress() int { return r.counter.Progress() }

// Close releases the underlying file.
func (r *RecordReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return ioErr("close", r.path, err)
	}
	return nil
}

// RecordWriter writes records to a delimited file through a buffer. Nothing
// is durable until Flush or Close returns without error.
type RecordWriter struct {
	path string
	file *os.File
	csv  *csv.Writer
	rows int
}

// CreateWriter creates (or truncates) path for writing.
func CreateWriter(path string, opts WriteOptions) (*RecordWriter, error) {
	comma, err := delimiterRune(opts.Delimiter)
	if err != nil {
		return nil, E(KindInvalidArgument, "create", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, ioErr("create", path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = comma
	return &RecordWriter{path: path, file: f, csv: cw}, nil
}

// Write buffers one record.
func (w *RecordWriter) Write(rec Record) error {
	if err := w.csv.Write(rec); err != nil {
		return ioErr("write", w.path, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of records written, header included.
func (w *RecordWriter) Rows() int { return w.rows }

// Path returns the file being written.
func (w *RecordWriter) Path() string { return w.path }

// Flush writes buffered records to the file.
func (w *RecordWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return ioErr("flush", w.path, err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once;
// only the first call does any work.
func (w *RecordWriter) Close() error {
	if w.file == nil {
		return nil
	}
	flushErr := w.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return ioErr("close", w.path, closeErr)
	}
	return nil
}

// delimiterRune validates a single-byte delimiter for encoding/csv.
func delimiterRune(d byte) (rune, error) {
	switch {
	case d == 0:
		return 0, errors.New("delimiter is not set")
	case d == '"' || d == '\r' || d == '\n':
		return 0, fmt.Errorf("delimiter %q is not allowed", d)
	case d >= utf8.RuneSelf:
		return 0, fmt.Errorf("delimiter %#x is not a single-byte character", d)
	}
	return rune(d), nil
}

// ParseDelimiter converts a user-supplied delimiter string to a byte.
// "\t" and "tab" both mean a tab character.
func ParseDelimiter(s string) (byte, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	}
	if len(s) != 1 {
		return 0, E(KindInvalidArgument, "delimiter", "", fmt.Errorf("delimiter %q must be a single byte", s))
	}
	if _, err := delimiterRune(s[0]); err != nil {
		return 0, E(KindInvalidArgument, "delimiter", "", err)
	}
	return s[0], nil
}

// closeWriter closes w and stores its error in *errp unless an earlier
// error is already set. Used with defer.
func closeWriter(w *RecordWriter, errp *error) {
	if cerr := w.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}
