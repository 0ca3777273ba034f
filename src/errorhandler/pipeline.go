package errorhandler

import (
	"io"
	"os"
	"regexp"
	"sync"

	logger "github.com/sirupsen/logrus"

	"wikiguard/src/logging"
	"wikiguard/src/process"
)

// ReservedMemorySize is the headroom held until shutdown so a fatal
// condition can still be logged.
const ReservedMemorySize = 16 << 10

// Runtime is the host the pipeline installs into.
type Runtime interface {
	SetExceptionHandler(fn process.ExceptionHandler) process.ExceptionHandler
	SetErrorHandler(fn process.ErrorHandler) process.ErrorHandler
	RegisterShutdownFunction(fn func())
	ErrorReporting() process.Severity
	LastError() *process.LastError
	Terminate(code int)
}

// LoggerFactory hands out channel loggers.
type LoggerFactory interface {
	GetLogger(channel string) logging.Logger
}

// Pipeline classifies, logs and reports every error that reaches the top of
// the process. Build one with NewPipeline at startup and pass it to whatever
// needs it.
type Pipeline struct {
	Encoder

	config      Config
	loggers     LoggerFactory
	presenter   Presenter
	tx          Transactions
	hooks       *Hooks
	host        Runtime
	stderr      io.Writer
	output      io.Writer
	commandLine bool
	missing     *regexp.Regexp

	shared *shared
}

// shared holds the state every request-bound copy of a pipeline points to.
type shared struct {
	mu       sync.Mutex
	reserved []byte
	fatalRun bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithConfig(config Config) Option {
	return func(p *Pipeline) { p.config = config.withDefaults() }
}

func WithLoggers(loggers LoggerFactory) Option {
	return func(p *Pipeline) { p.loggers = loggers }
}

func WithPresenter(presenter Presenter) Option {
	return func(p *Pipeline) { p.presenter = presenter }
}

func WithTransactions(tx Transactions) Option {
	return func(p *Pipeline) { p.tx = tx }
}

func WithHooks(hooks *Hooks) Option {
	return func(p *Pipeline) { p.hooks = hooks }
}

func WithHost(host Runtime) Option {
	return func(p *Pipeline) { p.host = host }
}

// WithStderr sets where command line reports go.
func WithStderr(w io.Writer) Option {
	return func(p *Pipeline) { p.stderr = w }
}

// WithOutput sets where reports go outside the command line. Fallback text
// written there is HTML escaped.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.output = w }
}

func WithCommandLine(commandLine bool) Option {
	return func(p *Pipeline) { p.commandLine = commandLine }
}

// NewPipeline builds a pipeline. Without options it logs through the
// standard logrus logger, reports to stderr as a command line process and
// runs against a fresh host.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		config:      Config{LogExceptionBacktrace: true, ErrorReporting: int(process.SeverityAll)}.withDefaults(),
		loggers:     logging.NewFactory(nil),
		hooks:       NewHooks(),
		host:        process.NewHost(),
		stderr:      os.Stderr,
		output:      os.Stdout,
		commandLine: true,
		shared:      &shared{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.presenter == nil {
		p.presenter = TextPresenter{Out: p.stderr, ShowDetails: p.config.ShowExceptionDetails}
	}
	p.compileMissingPattern()
	p.Encoder.Reporting = p.reporting
	return p
}

func (p *Pipeline) compileMissingPattern() {
	re, err := regexp.Compile(p.config.MissingComponentPattern)
	if err != nil {
		logger.WithError(err).Warn("invalid missing component pattern, note disabled")
		p.missing = nil
		return
	}
	p.missing = re
}

func (p *Pipeline) reporting() process.Severity {
	return p.host.ErrorReporting()
}

// ForRequest returns a copy of p bound to the request at url. Options apply
// to the copy only.
func (p *Pipeline) ForRequest(url string, opts ...Option) *Pipeline {
	cp := *p
	cp.commandLine = false
	for _, opt := range opts {
		opt(&cp)
	}
	cp.Encoder = Encoder{URL: url, Reporting: cp.reporting}
	return &cp
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Hooks returns the observer registry.
func (p *Pipeline) Hooks() *Hooks {
	return p.hooks
}

// Install registers the pipeline's entry points with host and reserves
// headroom for reporting out of memory conditions.
func (p *Pipeline) Install(host Runtime) {
	p.host = host
	host.SetExceptionHandler(p.HandleException)
	host.SetErrorHandler(p.HandleError)

	p.shared.mu.Lock()
	p.shared.reserved = make([]byte, ReservedMemorySize)
	p.shared.mu.Unlock()

	host.RegisterShutdownFunction(p.HandleFatalError)
}

// HandleException handles an error nothing else caught and terminates the
// process with status 1.
func (p *Pipeline) HandleException(err error) {
	p.Handle(err)
	p.host.Terminate(1)
}

// Handle rolls back open transactions, logs err and reports it. The order is
// fixed: rollback before logging, logging before reporting.
func (p *Pipeline) Handle(err error) {
	e := wrap(err, 2)
	if e == nil {
		return
	}

	if txErr := p.RollbackAndLog(e); txErr != nil {
		p.LogException(wrap(txErr, 2))
	}

	p.LogException(e)
	p.Report(e)
}

// HandleError logs a raised runtime error on its classified channel. It
// always returns false so the host continues its default handling.
func (p *Pipeline) HandleError(level process.Severity, message, file string, line int) bool {
	e, channel := Classify(level, message, file, line)
	p.LogError(e, channel)
	return false
}

// HandleFatalError releases the reserved memory and logs the last raised
// error when it was fatal. It does nothing on later calls.
func (p *Pipeline) HandleFatalError() {
	p.shared.mu.Lock()
	p.shared.reserved = nil
	already := p.shared.fatalRun
	p.shared.fatalRun = true
	p.shared.mu.Unlock()

	if already {
		return
	}

	last := p.host.LastError()
	if last == nil || !IsFatalSignal(last.Type) {
		return
	}

	msg := "Fatal Error: " + last.Message
	if p.missing != nil && p.missing.MatchString(last.Message) {
		msg += "\n\n" + p.config.MissingComponentNote
	}
	e := NewRuntime(last.Type, msg, last.File, last.Line)
	p.LogError(e, ChannelFatal)
}

// Reserved reports whether the headroom block is still held.
func (p *Pipeline) Reserved() bool {
	p.shared.mu.Lock()
	defer p.shared.mu.Unlock()
	return p.shared.reserved != nil
}
