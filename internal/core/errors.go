package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an operation failure. Every error returned by csvkit
// operations carries exactly one kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindFormat
	KindIndex
	KindNoCodeFound
	KindQuery
	KindConnection
	KindInvalidArgument
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrIO              = errors.New("io error")
	ErrFormat          = errors.New("format error")
	ErrIndex           = errors.New("index error")
	ErrNoCodeFound     = errors.New("no code found")
	ErrQuery           = errors.New("query error")
	ErrConnection      = errors.New("connection error")
	ErrInvalidArgument = errors.New("invalid argument")
)

func (k Kind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindFormat:
		return ErrFormat
	case KindIndex:
		return ErrIndex
	case KindNoCodeFound:
		return ErrNoCodeFound
	case KindQuery:
		return ErrQuery
	case KindConnection:
		return ErrConnection
	case KindInvalidArgument:
		return ErrInvalidArgument
	}
	return nil
}

// String returns the kind name used in logs and API responses.
func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// Error is the error type returned by every csvkit operation.
type Error struct {
	Kind Kind
	Op   string // operation name, e.g. "split"
	Path string // file or data-store location involved, if any
	Line int    // 1-based input line, 0 when not applicable
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// E builds an *Error of the given kind. Used by packages outside core
// (the exporter) so all operations share one taxonomy.
func E(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func ioErr(op, path string, err error) error {
	return E(KindIO, op, path, err)
}

func argErr(op, format string, args ...any) error {
	return E(KindInvalidArgument, op, "", fmt.Errorf(format, args...))
}
