package process

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) (*Host, *[]int) {
	t.Helper()
	h := NewHost()
	var exits []int
	h.Exit = func(code int) { exits = append(exits, code) }
	return h, &exits
}

func TestHost_RaiseRecordsLastErrorWhenNotHandled(t *testing.T) {
	h, exits := newTestHost(t)

	var got []Severity
	h.SetErrorHandler(func(level Severity, message, file string, line int) bool {
		got = append(got, level)
		return false
	})

	h.Trigger(SeverityUserWarning, "disk at %d%%", 91)

	require.Equal(t, []Severity{SeverityUserWarning}, got)
	le := h.LastError()
	require.NotNil(t, le)
	assert.Equal(t, SeverityUserWarning, le.Type)
	assert.Equal(t, "disk at 91%", le.Message)
	assert.Contains(t, le.File, "host_test.go")
	assert.NotZero(t, le.Line)
	assert.Empty(t, *exits)
}

func TestHost_RaiseHandledLeavesNoLastError(t *testing.T) {
	h, _ := newTestHost(t)
	h.SetErrorHandler(func(Severity, string, string, int) bool { return true })

	h.Raise(SeverityNotice, "ignored", "f.go", 3)

	assert.Nil(t, h.LastError())
}

func TestHost_FatalRaiseRunsShutdownAndExits(t *testing.T) {
	h, exits := newTestHost(t)

	calls := 0
	h.RegisterShutdownFunction(func() { calls++ })

	h.Raise(SeverityUserError, "boom", "f.go", 1)
	h.Shutdown()

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{255}, *exits)
}

func TestHost_RunRoutesErrorsAndPanics(t *testing.T) {
	t.Run("returned error", func(t *testing.T) {
		h, _ := newTestHost(t)
		var caught error
		h.SetExceptionHandler(func(err error) { caught = err })

		status := h.Run(func() error { return errors.New("bad") })

		assert.Equal(t, 1, status)
		assert.EqualError(t, caught, "bad")
	})

	t.Run("panic value", func(t *testing.T) {
		h, _ := newTestHost(t)
		var caught error
		h.SetExceptionHandler(func(err error) { caught = err })
		shutdown := 0
		h.RegisterShutdownFunction(func() { shutdown++ })

		status := h.Run(func() error { panic("nil map") })

		assert.Equal(t, 1, status)
		var pe *PanicError
		require.ErrorAs(t, caught, &pe)
		assert.Equal(t, "nil map", pe.Value)
		assert.Equal(t, 1, shutdown)
	})

	t.Run("clean exit", func(t *testing.T) {
		h, _ := newTestHost(t)
		assert.Equal(t, 0, h.Run(func() error { return nil }))
	})
}

func TestHost_SuppressRestoresMask(t *testing.T) {
	h, _ := newTestHost(t)
	h.SetErrorReporting(SeverityAll &^ SeverityNotice)

	var inside Severity
	h.Suppress(func() { inside = h.ErrorReporting() })

	assert.Equal(t, Severity(0), inside)
	assert.Equal(t, SeverityAll&^SeverityNotice, h.ErrorReporting())
	assert.False(t, h.ErrorReporting().Enabled(SeverityNotice))
	assert.True(t, h.ErrorReporting().Enabled(SeverityWarning))
}
