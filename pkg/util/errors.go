package util

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a detection failure.
type ErrorKind int

const (
	KindIO ErrorKind = iota + 1
	KindParse
	KindPattern
	KindConfig
	KindSerialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindPattern:
		return "pattern"
	case KindConfig:
		return "config"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrIO            = errors.New("i/o failure")
	ErrParse         = errors.New("parse failure")
	ErrPattern       = errors.New("pattern compilation failure")
	ErrConfig        = errors.New("configuration failure")
	ErrSerialization = errors.New("serialization failure")
)

// Error is the typed failure surfaced by every detection stage.
type Error struct {
	Kind ErrorKind
	Path string // file or directory involved, may be empty
	Err  error
}

// NewError wraps err with a kind and an optional path.
func NewError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Errorf builds an *Error from a format string.
func Errorf(kind ErrorKind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.sentinel(), e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindIO:
		return ErrIO
	case KindParse:
		return ErrParse
	case KindPattern:
		return ErrPattern
	case KindConfig:
		return ErrConfig
	case KindSerialization:
		return ErrSerialization
	default:
		return errors.New("unknown failure")
	}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
