package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure so the presentation layer can
// render it without inspecting transport-specific detail
type ErrorKind string

// error kinds, only Auth, Network and Config terminate a run
const (
	ErrAuth         ErrorKind = "auth"          // invalid or expired credential
	ErrNetwork      ErrorKind = "network"       // transport failure during fetch
	ErrParse        ErrorKind = "parse"         // malformed upstream page or provider response
	ErrProvider     ErrorKind = "provider"      // AI request failed, recovered via fallback
	ErrConfig       ErrorKind = "config"        // invalid configuration, fatal before any network activity
	ErrCacheCorrupt ErrorKind = "cache_corrupt" // unreadable cache entry, treated as a miss
)

// Error is a typed pipeline error with the stage that produced it
type Error struct {
	Kind ErrorKind
	Op   string // failed stage, e.g. "fetch page 3"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError makes a typed error for the given stage
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err or any error in its chain is a domain error of
// the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
