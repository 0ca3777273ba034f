package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"wikiguard/src/errorhandler"
)

// Notification is the JSON body posted for each logged error.
type Notification struct {
	Channel    string                        `json:"channel"`
	Record     errorhandler.StructuredRecord `json:"record"`
	Suppressed bool                          `json:"suppressed"`
}

// Webhook posts logged errors to an HTTP endpoint. Posting happens on a
// background worker; when the queue is full notifications are dropped.
type Webhook struct {
	http  *resty.Client
	queue chan Notification

	closeOnce sync.Once
	done      chan struct{}
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

// NewWebhook starts the worker. Close stops it after draining the queue.
func NewWebhook(config Config) *Webhook {
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	httpClient := resty.New().
		SetBaseURL(config.WebhookURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(isRetryableResp)

	w := &Webhook{
		http:  httpClient,
		queue: make(chan Notification, config.QueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Observe is an errorhandler.RecordFunc. Backtraces are dropped from the
// posted record.
func (w *Webhook) Observe(channel string, rec errorhandler.StructuredRecord) {
	n := Notification{Channel: channel, Record: withoutBacktrace(rec), Suppressed: rec.Suppressed}

	select {
	case w.queue <- n:
	default:
		logger.WithField("log_id", n.Record.ID).Warn("[notify] webhook queue full, dropping notification")
	}
}

func withoutBacktrace(rec errorhandler.StructuredRecord) errorhandler.StructuredRecord {
	rec.Backtrace = nil
	if rec.Previous != nil {
		prev := withoutBacktrace(*rec.Previous)
		rec.Previous = &prev
	}
	return rec
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (w *Webhook) Close() {
	w.closeOnce.Do(func() {
		close(w.queue)
		<-w.done
	})
}

func (w *Webhook) run() {
	defer close(w.done)
	for n := range w.queue {
		if err := w.send(n); err != nil {
			logger.WithError(err).WithField("log_id", n.Record.ID).Warn("[notify] webhook delivery failed")
		}
	}
}

func (w *Webhook) send(n Notification) error {
	resp, err := w.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(n).
		Post("")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
