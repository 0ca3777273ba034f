package errorhandler

import (
	"fmt"
	"io"
)

// Presenter shows an error to whoever is waiting on the failed operation.
// It may fail; the pipeline then falls back to a plain message.
type Presenter interface {
	Present(e *RaisedError) error
}

// TextPresenter writes errors for a terminal.
type TextPresenter struct {
	Out         io.Writer
	ShowDetails bool
}

func (p TextPresenter) Present(e *RaisedError) error {
	var err error
	if p.ShowDetails {
		_, err = fmt.Fprintf(p.Out, "[%s] %s: %s\nin %s(%d)\nBacktrace:\n%s\n",
			e.LogID(), e.Kind, e.Message, e.File, e.Line, FormatTrace(Redact(e.Trace)))
	} else {
		_, err = fmt.Fprintf(p.Out, "[%s] Internal error. Quote this identifier when reporting the problem.\n",
			e.LogID())
	}
	if err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}
