package errorhandler

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// maxTraceDepth bounds how many frames CaptureTrace records.
const maxTraceDepth = 64

// Frame is one raw call stack entry. Args may hold live values and must go
// through Redact before leaving the process.
type Frame struct {
	File     string
	Line     int
	Class    string
	Type     string
	Function string
	Args     []interface{}
}

// StackFrame is a redacted frame: every argument is replaced by its type name.
type StackFrame struct {
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Function string   `json:"function"`
	Class    string   `json:"class,omitempty"`
	Type     string   `json:"type,omitempty"`
	Args     []string `json:"args,omitempty"`
}

// TypeName names the type of v without exposing its value. It is the only
// place argument values are inspected.
func TypeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// Redact copies trace, replacing each argument with its type name.
func Redact(trace []Frame) []StackFrame {
	out := make([]StackFrame, 0, len(trace))
	for _, f := range trace {
		sf := StackFrame{
			File:     f.File,
			Line:     f.Line,
			Function: f.Function,
			Class:    f.Class,
			Type:     f.Type,
		}
		if f.Args != nil {
			sf.Args = make([]string, len(f.Args))
			for i, arg := range f.Args {
				sf.Args[i] = TypeName(arg)
			}
		}
		out = append(out, sf)
	}
	return out
}

// FormatTrace renders a redacted trace one frame per line, numbered from 0,
// and closes it with a {main} line.
func FormatTrace(trace []StackFrame) string {
	var b strings.Builder
	for level, f := range trace {
		if f.File != "" && f.Line != 0 {
			fmt.Fprintf(&b, "#%d %s(%d): ", level, f.File, f.Line)
		} else {
			fmt.Fprintf(&b, "#%d [internal function]: ", level)
		}
		if f.Class != "" {
			b.WriteString(f.Class + f.Type + f.Function)
		} else {
			b.WriteString(f.Function)
		}
		b.WriteString("(" + strings.Join(f.Args, ", ") + ")\n")
	}
	fmt.Fprintf(&b, "#%d {main}", len(trace))
	return b.String()
}

// CaptureTrace records the caller's stack. skip counts frames above the
// caller of CaptureTrace. When called while a panic unwinds, frames up to the
// panic site are dropped so the trace starts where the panic happened.
func CaptureTrace(skip int) []Frame {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	var trace []Frame
	unwinding := false
	frames := runtime.CallersFrames(pcs[:n])
	for {
		rf, more := frames.Next()
		switch {
		case rf.Function == "runtime.gopanic":
			// sigpanic and panicmem sit between gopanic and the faulting frame
			trace = trace[:0]
			unwinding = true
		case unwinding && strings.HasPrefix(rf.Function, "runtime."):
		case rf.Function == "" || strings.HasPrefix(rf.Function, "runtime.goexit"):
		default:
			unwinding = false
			trace = append(trace, frameOf(rf))
		}
		if !more {
			break
		}
	}
	return trace
}

// frameOf splits a runtime function name such as
// "wikiguard/src/server.(*Server).handle" into class "server.(*Server)",
// type "." and function "handle". Value receivers cannot be told apart from
// closures and are kept in the function name.
func frameOf(rf runtime.Frame) Frame {
	f := Frame{File: rf.File, Line: rf.Line, Function: rf.Function}
	if rf.File == "" || strings.HasPrefix(rf.File, "<") {
		f.File, f.Line = "", 0
	}

	name := rf.Function
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	f.Function = name

	dot := strings.Index(name, ".")
	if dot < 0 || dot+1 >= len(name) || name[dot+1] != '(' {
		return f
	}
	rest := name[dot+1:]
	end := strings.Index(rest, ").")
	if end < 0 {
		return f
	}
	f.Class = name[:dot+1] + rest[:end+1]
	f.Type = "."
	f.Function = rest[end+2:]
	return f
}
