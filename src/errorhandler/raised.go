package errorhandler

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"wikiguard/src/process"
)

const (
	// KindApplication is the default kind of errors built with New.
	KindApplication = "ApplicationError"
	// KindRuntime is the kind of classified runtime errors.
	KindRuntime = "RuntimeError"
)

// Loggable lets an error opt out of the exception log. Errors that do not
// implement it are logged.
type Loggable interface {
	IsLoggable() bool
}

// RaisedError is the normalized form of every error the pipeline handles.
// It carries the log identifier alongside the error instead of mutating
// foreign error values.
type RaisedError struct {
	Kind     string
	Message  string
	Code     int
	File     string
	Line     int
	Severity process.Severity
	Trace    []Frame

	original    error
	previous    *RaisedError
	application bool
	loggable    bool

	idOnce sync.Once
	id     string
}

// ErrorOption configures an application error built with New.
type ErrorOption func(*RaisedError)

// WithKind names the error type reported in logs.
func WithKind(kind string) ErrorOption {
	return func(e *RaisedError) { e.Kind = kind }
}

// WithCode sets the numeric error code.
func WithCode(code int) ErrorOption {
	return func(e *RaisedError) { e.Code = code }
}

// WithCause chains the error that led to this one.
func WithCause(cause error) ErrorOption {
	return func(e *RaisedError) {
		if cause != nil {
			e.previous = wrap(cause, 2)
		}
	}
}

// NotLoggable marks an expected error that should not reach the exception log.
func NotLoggable() ErrorOption {
	return func(e *RaisedError) { e.loggable = false }
}

// New builds an application error located at the caller.
func New(message string, opts ...ErrorOption) *RaisedError {
	e := &RaisedError{
		Kind:        KindApplication,
		Message:     message,
		Trace:       CaptureTrace(1),
		application: true,
		loggable:    true,
	}
	e.locate()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRuntime builds a classified runtime error at an explicit location.
func NewRuntime(level process.Severity, message, file string, line int) *RaisedError {
	return &RaisedError{
		Kind:     KindRuntime,
		Message:  message,
		File:     file,
		Line:     line,
		Severity: level,
		Trace:    CaptureTrace(1),
		loggable: true,
	}
}

// Wrap converts err into a RaisedError. A RaisedError is returned unchanged so
// its log identifier stays stable. Wrap returns nil for a nil error.
func Wrap(err error) *RaisedError {
	return wrap(err, 2)
}

func wrap(err error, skip int) *RaisedError {
	if err == nil {
		return nil
	}
	if e, ok := err.(*RaisedError); ok {
		return e
	}

	e := &RaisedError{
		Kind:     TypeName(err),
		Message:  err.Error(),
		Trace:    CaptureTrace(skip),
		original: err,
		loggable: true,
	}
	if l, ok := err.(Loggable); ok {
		e.loggable = l.IsLoggable()
	}
	e.locate()
	if cause := errors.Unwrap(err); cause != nil {
		e.previous = wrap(cause, skip+1)
	}
	return e
}

// locate sets file and line from the first frame of the trace.
func (e *RaisedError) locate() {
	for _, f := range e.Trace {
		if f.File != "" {
			e.File, e.Line = f.File, f.Line
			return
		}
	}
}

func (e *RaisedError) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped foreign error, or the chained cause.
func (e *RaisedError) Unwrap() error {
	if e.original != nil {
		return e.original
	}
	if e.previous != nil {
		return e.previous
	}
	return nil
}

// Previous returns the next error in the cause chain, or nil.
func (e *RaisedError) Previous() *RaisedError {
	return e.previous
}

// IsLoggable reports whether the error belongs in the exception log.
func (e *RaisedError) IsLoggable() bool {
	return e.loggable
}

// IsApplication reports whether the error was raised by application code
// through New, as opposed to a wrapped foreign error or a runtime error.
func (e *RaisedError) IsApplication() bool {
	return e.application
}

// IsClassified reports whether the error came from a raised runtime level.
func (e *RaisedError) IsClassified() bool {
	return e.Severity != 0
}

// LogID returns the identifier that ties the user-facing message to the log
// entries. It is assigned on first use and never changes.
func (e *RaisedError) LogID() string {
	e.idOnce.Do(func() {
		e.id = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	})
	return e.id
}

// LogID returns the log identifier of e.
func LogID(e *RaisedError) string {
	return e.LogID()
}
