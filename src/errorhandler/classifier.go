package errorhandler

import "wikiguard/src/process"

// Log channels written by the pipeline. Structured records go to the same
// name with the JSONSuffix appended.
const (
	ChannelException = "exception"
	ChannelFatal     = "fatal"
	ChannelError     = "error"
	ChannelTxHazard  = "txhazard"

	JSONSuffix = "-json"
)

// Classify maps a raw runtime level to a RaisedError and the channel it is
// logged on. Unknown levels become "Unknown error" on the error channel.
func Classify(level process.Severity, message, file string, line int) (*RaisedError, string) {
	label, channel := classify(level)
	e := NewRuntime(level, label+": "+message, file, line)
	return e, channel
}

func classify(level process.Severity) (label, channel string) {
	switch level {
	case process.SeverityError, process.SeverityCoreError, process.SeverityCompileError,
		process.SeverityUserError, process.SeverityRecoverableError, process.SeverityParse:
		return "Error", ChannelFatal
	case process.SeverityWarning, process.SeverityCoreWarning, process.SeverityCompileWarning,
		process.SeverityUserWarning:
		return "Warning", ChannelError
	case process.SeverityNotice, process.SeverityUserNotice:
		return "Notice", ChannelError
	case process.SeverityStrict:
		return "Strict Standards", ChannelError
	case process.SeverityDeprecated, process.SeverityUserDeprecated:
		return "Deprecated", ChannelError
	case process.SeverityHostFatal:
		return "Fatal", ChannelFatal
	default:
		return "Unknown error", ChannelError
	}
}

// IsFatalSignal reports whether level means the process cannot continue.
// Recoverable errors are logged on the fatal channel but are not in this set.
func IsFatalSignal(level process.Severity) bool {
	switch level {
	case process.SeverityError, process.SeverityParse, process.SeverityCoreError,
		process.SeverityCompileError, process.SeverityUserError, process.SeverityHostFatal:
		return true
	}
	return false
}
