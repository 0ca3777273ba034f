package process

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	logger "github.com/sirupsen/logrus"
)

// ExceptionHandler receives errors nothing else caught.
type ExceptionHandler func(err error)

// ErrorHandler receives raised runtime errors. Returning false lets the host
// continue its default handling.
type ErrorHandler func(level Severity, message, file string, line int) bool

// LastError is the record of the most recent raised error that went through
// default handling.
type LastError struct {
	Type    Severity
	Message string
	File    string
	Line    int
}

// Host owns the process-wide hook slots. One Host exists per process; it is
// passed explicitly to whatever installs into it.
type Host struct {
	mu         sync.Mutex
	onError    ErrorHandler
	onUncaught ExceptionHandler
	shutdown   []func()
	lastError  *LastError
	reporting  Severity

	shutdownOnce sync.Once

	// Exit terminates the process. Tests replace it.
	Exit func(code int)
}

// NewHost returns a host with every level enabled in the reporting mask.
func NewHost() *Host {
	return &Host{
		reporting: SeverityAll,
		Exit:      os.Exit,
	}
}

// SetExceptionHandler installs fn as the uncaught error hook and returns the
// previous one.
func (h *Host) SetExceptionHandler(fn ExceptionHandler) ExceptionHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onUncaught
	h.onUncaught = fn
	return prev
}

// SetErrorHandler installs fn as the raised error hook and returns the
// previous one.
func (h *Host) SetErrorHandler(fn ErrorHandler) ErrorHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.onError
	h.onError = fn
	return prev
}

// RegisterShutdownFunction queues fn to run once when the process ends.
func (h *Host) RegisterShutdownFunction(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = append(h.shutdown, fn)
}

// ErrorReporting returns the ambient reporting mask.
func (h *Host) ErrorReporting() Severity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reporting
}

// SetErrorReporting replaces the reporting mask and returns the old one.
func (h *Host) SetErrorReporting(mask Severity) Severity {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.reporting
	h.reporting = mask
	return prev
}

// Suppress runs fn with the reporting mask cleared. Errors raised inside fn
// still reach the error hook; they are flagged as suppressed there.
func (h *Host) Suppress(fn func()) {
	prev := h.SetErrorReporting(0)
	defer h.SetErrorReporting(prev)
	fn()
}

// LastError returns the last raised error record, or nil.
func (h *Host) LastError() *LastError {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastError == nil {
		return nil
	}
	le := *h.lastError
	return &le
}

// Trigger raises a runtime error at the caller's location.
func (h *Host) Trigger(level Severity, format string, args ...interface{}) {
	_, file, line, _ := runtime.Caller(1)
	h.Raise(level, fmt.Sprintf(format, args...), file, line)
}

// Raise delivers a runtime error to the error hook. Unless the hook claims
// it, the error becomes the last error record. Fatal levels end the process
// with status 255 after shutdown functions run.
func (h *Host) Raise(level Severity, message, file string, line int) {
	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()

	handled := false
	if fn != nil {
		handled = fn(level, message, file, line)
	}
	if handled {
		return
	}

	h.mu.Lock()
	h.lastError = &LastError{Type: level, Message: message, File: file, Line: line}
	h.mu.Unlock()

	if isFatal(level) {
		h.Terminate(255)
	}
}

// Terminate runs shutdown functions and exits with code.
func (h *Host) Terminate(code int) {
	h.Shutdown()
	h.Exit(code)
}

// Run executes main under the host. A returned error or a panic goes to the
// uncaught error hook; shutdown functions run exactly once afterwards.
func (h *Host) Run(main func() error) (status int) {
	defer h.Shutdown()
	defer func() {
		if r := recover(); r != nil {
			h.uncaught(panicError(r))
			status = 1
		}
	}()

	if err := main(); err != nil {
		h.uncaught(err)
		return 1
	}
	return 0
}

// Shutdown runs the registered shutdown functions once, in order.
func (h *Host) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		fns := append([]func(){}, h.shutdown...)
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

func (h *Host) uncaught(err error) {
	h.mu.Lock()
	fn := h.onUncaught
	h.mu.Unlock()

	if fn == nil {
		logger.WithError(err).Error("uncaught error with no handler installed")
		return
	}
	fn(err)
}

// PanicError carries a recovered panic value that was not an error.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

func isFatal(level Severity) bool {
	switch level {
	case SeverityError, SeverityParse, SeverityCoreError, SeverityCompileError,
		SeverityUserError, SeverityHostFatal:
		return true
	}
	return false
}
