package errorhandler

import (
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"wikiguard/src/logging"
)

// GenericFallbackMessage is shown when reporting itself failed and details
// are hidden.
const GenericFallbackMessage = "Internal error.\n\n" +
	"Error caught inside error handler.\n\n" +
	"Set SHOW_EXCEPTION_DETAILS=true in the environment to show detailed debugging information.\n"

// Report shows e to the user. Application errors go through the presenter;
// when that fails a plain message is printed instead. Report never panics.
func (p *Pipeline) Report(e *RaisedError) {
	defer func() {
		// last resort: the fallback path itself blew up
		if r := recover(); r != nil {
			lastResort(p.stderr, e)
		}
	}()

	if !e.IsApplication() {
		message := fmt.Sprintf("Exception encountered, of type %q", e.Kind)
		if p.config.ShowExceptionDetails {
			message += "\n" + p.LogMessage(e) + "\nBacktrace:\n" +
				FormatTrace(Redact(e.Trace)) + "\n"
		}
		p.print(message)
		return
	}

	secondary := p.present(e)
	if secondary == nil {
		return
	}
	p.print(p.fallbackMessage(e, secondary))
}

// lastResort tells the operator reporting failed. It tries w first and
// os.Stderr if w panics too; a panic in either is swallowed.
func lastResort(w io.Writer, e *RaisedError) {
	message := fmt.Sprintf("Internal error [%s]: failed to report error\n", e.LogID())
	defer func() {
		if r := recover(); r != nil {
			defer func() { _ = recover() }()
			_, _ = io.WriteString(os.Stderr, message)
		}
	}()
	_, _ = io.WriteString(w, message)
}

// present calls the presenter and turns a failure or panic into the
// secondary error.
func (p *Pipeline) present(e *RaisedError) (secondary *RaisedError) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				secondary = wrap(err, 3)
			} else {
				secondary = New(fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	if err := p.presenter.Present(e); err != nil {
		return wrap(err, 2)
	}
	return nil
}

func (p *Pipeline) fallbackMessage(e, secondary *RaisedError) string {
	if !p.config.ShowExceptionDetails {
		return GenericFallbackMessage
	}
	return "Internal error.\n\n" +
		"Original error: " + p.LogMessage(e) +
		"\nBacktrace:\n" + FormatTrace(Redact(e.Trace)) +
		"\n\nError caught inside error handler: " + p.LogMessage(secondary) +
		"\nBacktrace:\n" + FormatTrace(Redact(secondary.Trace)) + "\n"
}

// print writes message to stderr on the command line, otherwise to the
// output with HTML escaping and line breaks.
func (p *Pipeline) print(message string) {
	var w io.Writer
	if p.commandLine {
		w = p.stderr
	} else {
		w = p.output
		message = nl2br(html.EscapeString(message)) + "\n"
	}
	_, _ = io.WriteString(w, message)
}

func nl2br(s string) string {
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

// LogException writes e to the exception channel and its structured record
// to the exception-json channel, then notifies observers. Errors that opt out
// through Loggable are skipped.
func (p *Pipeline) LogException(e *RaisedError) {
	if !e.IsLoggable() {
		return
	}

	p.loggers.GetLogger(ChannelException).Error(p.LogMessage(e), logContext(e))
	p.logRecord(e, ChannelException)
	p.hooks.RunLogException(e, false)
}

// LogError writes a classified runtime error. The plain channel only sees
// errors the reporting mask allows; the json channel sees all of them with
// the suppressed flag set.
func (p *Pipeline) LogError(e *RaisedError, channel string) {
	suppressed := p.IsSuppressed(e)
	if !suppressed {
		p.loggers.GetLogger(channel).Error(p.LogMessage(e), logContext(e))
	}
	p.logRecord(e, channel)
	p.hooks.RunLogException(e, suppressed)
}

func (p *Pipeline) logRecord(e *RaisedError, channel string) {
	rec := p.Encode(e, p.config.LogExceptionBacktrace)
	p.hooks.RunRecord(channel, rec)

	data, err := Serialize(rec, false)
	if err != nil {
		return
	}
	p.loggers.GetLogger(channel+JSONSuffix).Error(data, map[string]interface{}{
		logging.ContextPrivate: true,
	})
}

func logContext(e *RaisedError) map[string]interface{} {
	return map[string]interface{}{
		logging.ContextException: e,
	}
}
