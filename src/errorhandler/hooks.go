package errorhandler

import (
	"sync"

	logger "github.com/sirupsen/logrus"
)

// LogExceptionFunc observes every error the pipeline logs.
type LogExceptionFunc func(err error, suppressed bool)

// RecordFunc observes every structured record the pipeline writes, as
// encoded for its execution context (request URL, reporting mask).
type RecordFunc func(channel string, rec StructuredRecord)

// Hooks is the registry of external observers.
type Hooks struct {
	mu             sync.RWMutex
	onLogException []LogExceptionFunc
	onRecord       []RecordFunc
}

func NewHooks() *Hooks {
	return &Hooks{}
}

// OnLogException registers observers for the LogException event.
func (h *Hooks) OnLogException(fn ...LogExceptionFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLogException = append(h.onLogException, fn...)
}

// RunLogException notifies observers in registration order. A panicking
// observer is skipped; it never interrupts error handling.
func (h *Hooks) RunLogException(err error, suppressed bool) {
	h.mu.RLock()
	observers := append([]LogExceptionFunc(nil), h.onLogException...)
	h.mu.RUnlock()

	for _, fn := range observers {
		runObserver(fn, err, suppressed)
	}
}

// OnRecord registers observers for structured records.
func (h *Hooks) OnRecord(fn ...RecordFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecord = append(h.onRecord, fn...)
}

// RunRecord notifies record observers in registration order, isolating
// panics the same way RunLogException does.
func (h *Hooks) RunRecord(channel string, rec StructuredRecord) {
	h.mu.RLock()
	observers := append([]RecordFunc(nil), h.onRecord...)
	h.mu.RUnlock()

	for _, fn := range observers {
		runObserver(func(error, bool) { fn(channel, rec) }, nil, false)
	}
}

func runObserver(fn LogExceptionFunc, err error, suppressed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Warn("LogException observer panicked")
		}
	}()
	fn(err, suppressed)
}
