// Package errs holds the error taxonomy shared by the registry, the target
// resolver, the compiler engines and the script pipeline.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names what a ConfigurationError is about.
type Kind string

const (
	KindPreset  Kind = "preset"
	KindPlugin  Kind = "plugin"
	KindTarget  Kind = "target"
	KindOption  Kind = "option"
	KindBuiltIn Kind = "built-in"
)

// ConfigurationError reports invalid user configuration. It is raised before
// any compiler work starts.
type ConfigurationError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid %s specified in options: %q", e.Kind, e.Name)
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(kind Kind, name, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// NetworkError reports a failed fetch of an external script or registry
// document.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("could not load %s: %v", e.URL, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("could not load %s: status %d", e.URL, e.Status)
	default:
		return "could not load " + e.URL
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err wraps a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Message is one diagnostic produced by a compiler engine.
type Message struct {
	Text   string
	File   string
	Line   int
	Column int
}

func (m Message) String() string {
	if m.File == "" && m.Line == 0 {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.File, m.Line, m.Column, m.Text)
}

// CompileError is what engines return when the source cannot be compiled.
// Callers pass it through unchanged.
type CompileError struct {
	Filename string
	Messages []Message
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 0 {
		return "compile failed: " + e.Filename
	}
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "\n")
}

// IsCompile reports whether err wraps a CompileError.
func IsCompile(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
