package errorhandler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikiguard/src/process"
)

type quietErr struct{}

func (quietErr) Error() string    { return "expected miss" }
func (quietErr) IsLoggable() bool { return false }

func TestLogID_StableAndShort(t *testing.T) {
	e := New("boom")

	id := LogID(e)
	assert.Len(t, id, 8)
	assert.Equal(t, id, LogID(e))
	assert.Equal(t, id, e.LogID())
	assert.NotEqual(t, id, New("boom").LogID())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	e := New("app")
	assert.Same(t, e, Wrap(e))

	base := errors.New("connection refused")
	outer := fmt.Errorf("load page: %w", base)
	w := Wrap(outer)

	assert.Equal(t, "*fmt.wrapError", w.Kind)
	assert.Equal(t, "load page: connection refused", w.Message)
	assert.False(t, w.IsApplication())
	assert.True(t, w.IsLoggable())
	assert.ErrorIs(t, w, base)
	require.NotNil(t, w.Previous())
	assert.Equal(t, "connection refused", w.Previous().Message)
	assert.Contains(t, w.File, "encoder_test.go")

	assert.False(t, Wrap(quietErr{}).IsLoggable())
}

func TestNew_Options(t *testing.T) {
	cause := New("inner")
	e := New("outer", WithKind("PermissionsError"), WithCode(403), WithCause(cause), NotLoggable())

	assert.Equal(t, "PermissionsError", e.Kind)
	assert.Equal(t, 403, e.Code)
	assert.Same(t, cause, e.Previous())
	assert.False(t, e.IsLoggable())
	assert.True(t, e.IsApplication())
	assert.Contains(t, e.File, "encoder_test.go")
	assert.NotZero(t, e.Line)
}

func TestEncoder_LogMessage(t *testing.T) {
	e := New("non-string key given")
	e.File, e.Line = "/srv/cache.go", 704

	assert.Equal(t,
		"["+e.LogID()+"] [no req]   ApplicationError from line 704 of /srv/cache.go: non-string key given",
		Encoder{}.LogMessage(e))
	assert.Equal(t,
		"["+e.LogID()+"] /wiki/Main_Page   ApplicationError from line 704 of /srv/cache.go: non-string key given",
		Encoder{URL: "/wiki/Main_Page"}.LogMessage(e))
}

func chain(depth int) *RaisedError {
	e := New("level 0")
	for i := 1; i <= depth; i++ {
		e = New(fmt.Sprintf("level %d", i), WithCause(e))
	}
	return e
}

func TestEncode_CauseChainDepthRoundTrips(t *testing.T) {
	for _, depth := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("depth %d", depth), func(t *testing.T) {
			rec := Encoder{}.Encode(chain(depth), false)
			assert.Equal(t, depth, rec.Depth())

			data, err := Serialize(rec, depth%2 == 0)
			require.NoError(t, err)

			decoded, err := DecodeRecord(data)
			require.NoError(t, err)
			assert.Equal(t, depth, decoded.Depth())
			assert.Equal(t, rec.ID, decoded.ID)
		})
	}
}

func TestEncode_Fields(t *testing.T) {
	e := New("boom", WithCode(7))
	e.Trace = []Frame{{File: "/srv/a.go", Line: 1, Function: "a.Do", Args: []interface{}{"password"}}}

	rec := Encoder{}.Encode(e, false)
	assert.Nil(t, rec.URL)
	assert.Nil(t, rec.Backtrace)
	assert.False(t, rec.Suppressed)
	assert.Equal(t, 7, rec.Code)

	rec = Encoder{URL: "/wiki/X"}.Encode(e, true)
	require.NotNil(t, rec.URL)
	assert.Equal(t, "/wiki/X", *rec.URL)
	require.Len(t, rec.Backtrace, 1)
	assert.Equal(t, []string{"string"}, rec.Backtrace[0].Args)

	data, err := Serialize(rec, false)
	require.NoError(t, err)
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "suppressed")
	assert.Contains(t, data, `"type":"ApplicationError"`)
}

func TestEncoder_Suppression(t *testing.T) {
	levels := []process.Severity{
		process.SeverityError, process.SeverityWarning, process.SeverityNotice,
		process.SeverityStrict, process.SeverityDeprecated, process.SeverityUserNotice,
	}
	masks := []process.Severity{
		0,
		process.SeverityAll,
		process.SeverityAll &^ process.SeverityNotice,
		process.SeverityError | process.SeverityWarning,
	}

	for _, mask := range masks {
		mask := mask
		enc := Encoder{Reporting: func() process.Severity { return mask }}
		for _, level := range levels {
			e, _ := Classify(level, "x", "f.go", 1)
			want := mask&level == 0
			assert.Equal(t, want, enc.IsSuppressed(e), "mask %d level %d", mask, level)
			assert.Equal(t, want, enc.Encode(e, false).Suppressed, "mask %d level %d", mask, level)
		}
	}

	// application errors are never suppressed
	enc := Encoder{Reporting: func() process.Severity { return 0 }}
	assert.False(t, enc.IsSuppressed(New("app")))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		level   process.Severity
		label   string
		channel string
	}{
		{process.SeverityError, "Error", ChannelFatal},
		{process.SeverityRecoverableError, "Error", ChannelFatal},
		{process.SeverityParse, "Error", ChannelFatal},
		{process.SeverityUserWarning, "Warning", ChannelError},
		{process.SeverityCompileWarning, "Warning", ChannelError},
		{process.SeverityNotice, "Notice", ChannelError},
		{process.SeverityStrict, "Strict Standards", ChannelError},
		{process.SeverityUserDeprecated, "Deprecated", ChannelError},
		{process.SeverityHostFatal, "Fatal", ChannelFatal},
		{process.Severity(3), "Unknown error", ChannelError},
	}

	for _, tc := range cases {
		e, channel := Classify(tc.level, "something broke", "/srv/x.go", 9)
		assert.Equal(t, tc.channel, channel, tc.label)
		assert.Equal(t, tc.label+": something broke", e.Message)
		assert.Equal(t, KindRuntime, e.Kind)
		assert.Equal(t, tc.level, e.Severity)
		assert.Equal(t, "/srv/x.go", e.File)
		assert.Equal(t, 9, e.Line)
	}
}

func TestIsFatalSignal(t *testing.T) {
	fatal := map[process.Severity]bool{
		process.SeverityError:        true,
		process.SeverityParse:        true,
		process.SeverityCoreError:    true,
		process.SeverityCompileError: true,
		process.SeverityUserError:    true,
		process.SeverityHostFatal:    true,
	}
	for level := process.Severity(1); level <= process.SeverityUserDeprecated; level <<= 1 {
		assert.Equal(t, fatal[level], IsFatalSignal(level), "level %d", level)
	}
	assert.True(t, IsFatalSignal(process.SeverityHostFatal))
	assert.False(t, IsFatalSignal(process.SeverityAll))
	assert.False(t, IsFatalSignal(0))
}
