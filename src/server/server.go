package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"wikiguard/src/errorhandler"
	"wikiguard/src/handler"
	"wikiguard/src/process"
	"wikiguard/src/repository"
)

// NewRouter builds the HTTP routes. Failed requests, whether they panic or
// return an error, are handled by p with the request URL bound. repo may be
// nil when no database is configured.
func NewRouter(p *errorhandler.Pipeline, repo *repository.ExceptionRepository) chi.Router {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(Recoverer(p))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	if repo != nil {
		r.Get("/exceptions", Adapt(p, handler.ListExceptionsHandler(repo)))
		r.Get("/exceptions/{logID}", Adapt(p, handler.GetExceptionHandler(repo)))
	}
	return r
}

// Recoverer handles panics from downstream handlers through p.
func Recoverer(p *errorhandler.Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = &process.PanicError{Value: rec}
				}
				fail(p, ww, r, err)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Adapt turns a failing handler into an http.HandlerFunc.
func Adapt(p *errorhandler.Pipeline, fn handler.Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}
		if err := fn(ww, r); err != nil {
			fail(p, ww, r, err)
		}
	}
}

func fail(p *errorhandler.Pipeline, w middleware.WrapResponseWriter, r *http.Request, err error) {
	if w.Status() == 0 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
	}
	p.ForRequest(r.URL.RequestURI(),
		errorhandler.WithOutput(w),
		errorhandler.WithPresenter(HTMLPresenter{Out: w, ShowDetails: p.Config().ShowExceptionDetails}),
	).Handle(err)
}

// HTMLPresenter writes the text report escaped inside a pre block.
type HTMLPresenter struct {
	Out         io.Writer
	ShowDetails bool
}

func (h HTMLPresenter) Present(e *errorhandler.RaisedError) error {
	var buf bytes.Buffer
	if err := (errorhandler.TextPresenter{Out: &buf, ShowDetails: h.ShowDetails}).Present(e); err != nil {
		return err
	}
	if _, err := io.WriteString(h.Out, "<pre>"+html.EscapeString(buf.String())+"</pre>\n"); err != nil {
		return fmt.Errorf("write error page: %w", err)
	}
	return nil
}

// StartServer serves h on port until SIGINT or SIGTERM, then shuts down
// gracefully.
func StartServer(port string, h http.Handler) error {
	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server crashed: %w", err)
	case <-stop:
	}

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
