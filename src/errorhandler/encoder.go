package errorhandler

import (
	"encoding/json"
	"errors"
	"fmt"

	"wikiguard/src/process"
)

// NoRequestURL stands in for the URL when an error is not tied to a request.
const NoRequestURL = "[no req]"

// ErrSerialize is returned when a structured record cannot be encoded.
var ErrSerialize = errors.New("structured record serialization failed")

// StructuredRecord is the serializable projection of a RaisedError.
//
// Sample record with backtraces enabled:
//
//	{
//	  "id": "dc457938",
//	  "type": "ApplicationError",
//	  "file": "/srv/wikiguard/src/cache/message.go",
//	  "line": 704,
//	  "message": "non-string key given",
//	  "code": 0,
//	  "url": "/wiki/Main_Page",
//	  "backtrace": [{"file": "...", "line": 80, "function": "Get", "class": "cache.(*Messages)", "type": "."}]
//	}
type StructuredRecord struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	File       string            `json:"file"`
	Line       int               `json:"line"`
	Message    string            `json:"message"`
	Code       int               `json:"code"`
	URL        *string           `json:"url"`
	Suppressed bool              `json:"suppressed,omitempty"`
	Backtrace  []StackFrame      `json:"backtrace,omitempty"`
	Previous   *StructuredRecord `json:"previous,omitempty"`
}

// Depth counts the records chained through Previous, excluding r itself.
func (r *StructuredRecord) Depth() int {
	n := 0
	for p := r.Previous; p != nil; p = p.Previous {
		n++
	}
	return n
}

// Encoder turns RaisedErrors into log lines and structured records for one
// execution context.
type Encoder struct {
	// URL is the request being served, empty outside a request.
	URL string
	// Reporting returns the ambient reporting mask.
	Reporting func() process.Severity
}

func (enc Encoder) mask() process.Severity {
	if enc.Reporting == nil {
		return process.SeverityAll
	}
	return enc.Reporting()
}

// LogMessage formats e as a single log line:
//
//	[id] url   kind from line L of file: message
func (enc Encoder) LogMessage(e *RaisedError) string {
	url := enc.URL
	if url == "" {
		url = NoRequestURL
	}
	return fmt.Sprintf("[%s] %s   %s from line %d of %s: %s",
		e.LogID(), url, e.Kind, e.Line, e.File, e.Message)
}

// IsSuppressed reports whether e is a classified runtime error whose level is
// excluded by the reporting mask.
func (enc Encoder) IsSuppressed(e *RaisedError) bool {
	return e.IsClassified() && !enc.mask().Enabled(e.Severity)
}

// Encode builds the structured record for e, following the cause chain to
// its end. The chain must be finite; Encode does not detect cycles.
func (enc Encoder) Encode(e *RaisedError, includeBacktrace bool) StructuredRecord {
	rec := StructuredRecord{
		ID:      e.LogID(),
		Type:    e.Kind,
		File:    e.File,
		Line:    e.Line,
		Message: e.Message,
		Code:    e.Code,
	}
	if enc.URL != "" {
		url := enc.URL
		rec.URL = &url
	}
	if enc.IsSuppressed(e) {
		rec.Suppressed = true
	}
	if includeBacktrace {
		rec.Backtrace = Redact(e.Trace)
	}
	if prev := e.Previous(); prev != nil {
		p := enc.Encode(prev, includeBacktrace)
		rec.Previous = &p
	}
	return rec
}

// Serialize encodes rec as JSON. Failures come back as ErrSerialize so the
// caller can skip the record without losing the error being reported.
func Serialize(rec StructuredRecord, pretty bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(rec, "", "    ")
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return string(data), nil
}

// DecodeRecord parses a serialized structured record.
func DecodeRecord(data string) (StructuredRecord, error) {
	var rec StructuredRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return StructuredRecord{}, fmt.Errorf("decode structured record: %w", err)
	}
	return rec, nil
}
