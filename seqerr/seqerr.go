// Package seqerr defines the errors raised while building and compiling
// timed sequences.
//
// All errors are returned at the offending call. Use errors.As to inspect
// them:
//
//	var tv *seqerr.TimingViolation
//	if errors.As(err, &tv) {
//		fmt.Println("minimum start delay:", tv.Minimum)
//	}
package seqerr

import (
	"fmt"
	"strings"
	"time"
)

// SyntaxError is returned when a builder is used outside an active scope or
// scopes are not closed in reverse order of opening.
type SyntaxError struct {
	Line string
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line == "" {
		return "syntax error: " + e.Msg
	}
	return fmt.Sprintf("syntax error on line %s: %s", e.Line, e.Msg)
}

// TimingViolation is returned when a statement would start before the
// mandatory delay after the previous instruction has elapsed.
type TimingViolation struct {
	Line      string
	Text      string
	Requested uint64
	Minimum   uint64
}

func (e *TimingViolation) Error() string {
	return fmt.Sprintf("timing error at line %s:%s start delay %d too short; minimum: %d",
		e.Line, e.Text, e.Requested, e.Minimum)
}

// LookupError is returned when a statement, register, event or FPGA symbol
// cannot be resolved in the requested scope.
type LookupError struct {
	Kind  string
	Name  string
	Scope string
	Msg   string
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
	if e.Scope != "" {
		msg = fmt.Sprintf("%s '%s' not found in %s", e.Kind, e.Name, e.Scope)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// Message is a single diagnostic reported by a backend compiler.
type Message struct {
	Description string
}

// CompilationError is returned by a backend when the program cannot be
// compiled.
type CompilationError struct {
	Messages []Message
	Elapsed  time.Duration
}

func (e *CompilationError) Error() string {
	descriptions := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		descriptions[i] = m.Description
	}
	return fmt.Sprintf("compilation failed (%d errors): %s",
		len(e.Messages), strings.Join(descriptions, "; "))
}
