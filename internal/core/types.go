// Package core provides the delimited-file operations of csvkit.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"strings"
)

// MatchMode selects how FilterRow compares a field with its literal.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchSubstring
)

// ParseMatchMode accepts "exact"/"eq" and "substring"/"contains".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "eq", "":
		return MatchExact, nil
	case "substring", "contains":
		return MatchSubstring, nil
	}
	return 0, E(KindInvalidArgument, "match mode", "", fmt.Errorf("unknown match mode %q", s))
}

func (m MatchMode) String() string {
	if m == MatchSubstring {
		return "substring"
	}
	return "exact"
}

// Options holds settings shared by all file operations.
type Options struct {
	// OutputDelimiter is used for every file written. Zero means
	// DefaultOutputDelimiter.
	OutputDelimiter byte

	// SanitizeUTF8 replaces invalid UTF-8 input with '?' instead of failing
	// with a format error.
	SanitizeUTF8 bool
}

func (o Options) writeOptions() WriteOptions {
	d := o.OutputDelimiter
	if d == 0 {
		d = DefaultOutputDelimiter
	}
	return WriteOptions{Delimiter: d}
}

// FilterRowRequest describes a single-predicate filter.
type FilterRowRequest struct {
	CSVPath    string
	OutputPath string
	Delimiter  byte
	Column     int
	Literal    string
	Mode       MatchMode
	Options
}

// FilterRowsRequest describes a filter against a list of literals.
type FilterRowsRequest struct {
	ListPath   string
	CSVPath    string
	OutputPath string
	Delimiter  byte
	Column     int
	Options
}

// FilterResult reports what a filter did. RowsRead and RowsWritten exclude
// the passthrough first record.
type FilterResult struct {
	RowsRead    int
	RowsWritten int
}

// MergeRequest describes a directory merge.
type MergeRequest struct {
	FolderPath string
	OutputPath string
	Delimiter  byte
	Options
}

// MergeResult reports the merged files in processing order.
type MergeResult struct {
	Files       []string
	RowsWritten int
}

// SplitRequest describes a row-count split.
type SplitRequest struct {
	CSVPath   string
	SaveDir   string
	Delimiter byte
	MaxRows   int
	Options
}

// SplitResult lists the shards written, in order.
type SplitResult struct {
	Shards      []string
	RowsWritten int
}
