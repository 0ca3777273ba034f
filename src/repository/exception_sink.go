package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wikiguard/src/errorhandler"
	"wikiguard/src/logging"
	"wikiguard/src/model"
)

const sinkQueueSize = 256

// ErrSinkFull is returned by Fire when records arrive faster than they can
// be stored.
var ErrSinkFull = errors.New("exception sink queue full, record dropped")

// ExceptionSink is a logrus hook that stores every structured record written
// to a "*-json" channel.
//
// Records are stored by a background worker. Errors are often logged while
// the failing code still holds a connection, and on sqlite that is the only
// one, so a synchronous insert would wait on it until the timeout.
//
// Writes go through a session with gorm logging discarded: a failed insert
// must not be raised on the host, since handling that error would write
// another record through this sink.
type ExceptionSink struct {
	repo    *ExceptionRepository
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *model.Exception
	done   chan struct{}
}

var _ logger.Hook = (*ExceptionSink)(nil)

// NewExceptionSink starts the worker. Close it at shutdown to store queued
// records.
func NewExceptionSink(db *gorm.DB, timeout time.Duration) *ExceptionSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	quiet := db.Session(&gorm.Session{Logger: gormlogger.Discard})
	s := &ExceptionSink{
		repo:    NewExceptionRepository(quiet),
		timeout: timeout,
		queue:   make(chan *model.Exception, sinkQueueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ExceptionSink) Levels() []logger.Level {
	return []logger.Level{logger.ErrorLevel, logger.WarnLevel}
}

// Fire queues the entry if it carries a structured record. Undecodable
// records and a full queue are returned to logrus, which reports them on
// stderr. After Close, records are stored synchronously.
func (s *ExceptionSink) Fire(entry *logger.Entry) error {
	channel, _ := entry.Data[logging.FieldChannel].(string)
	if !strings.HasSuffix(channel, errorhandler.JSONSuffix) {
		return nil
	}

	rec, err := errorhandler.DecodeRecord(entry.Message)
	if err != nil {
		return err
	}
	exc := ExceptionFromRecord(strings.TrimSuffix(channel, errorhandler.JSONSuffix), entry.Message, rec)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return s.store(exc)
	}
	select {
	case s.queue <- exc:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close stops the worker after it has stored every queued record.
func (s *ExceptionSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *ExceptionSink) run() {
	defer close(s.done)
	for exc := range s.queue {
		if err := s.store(exc); err != nil {
			logger.WithError(err).WithField("log_id", exc.LogID).Warn("[repository] failed to store exception record")
		}
	}
}

func (s *ExceptionSink) store(exc *model.Exception) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Create(ctx, exc)
}

// ExceptionFromRecord maps a structured record onto its table row. raw is the
// serialized record as logged.
func ExceptionFromRecord(channel, raw string, rec errorhandler.StructuredRecord) *model.Exception {
	return &model.Exception{
		LogID:      rec.ID,
		Channel:    channel,
		Type:       rec.Type,
		File:       rec.File,
		Line:       rec.Line,
		Message:    rec.Message,
		Code:       rec.Code,
		URL:        rec.URL,
		Suppressed: rec.Suppressed,
		Record:     raw,
	}
}
