package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wikiguard/src/model"
)

// Func is an HTTP handler that may fail. The router reports a returned error
// through the error pipeline, the same way it reports a panic.
type Func func(w http.ResponseWriter, r *http.Request) error

type exceptionFinder interface {
	FindByLogID(ctx context.Context, logID string) ([]model.Exception, error)
	FindLatest(ctx context.Context, channel string, limit int) ([]model.Exception, error)
}

// GetExceptionHandler returns the stored records for the log id in the URL,
// as quoted to users in "[id]" error messages.
func GetExceptionHandler(repo exceptionFinder) Func {
	return func(w http.ResponseWriter, r *http.Request) error {
		logID := chi.URLParam(r, "logID")
		if logID == "" {
			http.Error(w, "missing log id", http.StatusBadRequest)
			return nil
		}

		records, err := repo.FindByLogID(r.Context(), logID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			http.Error(w, "Not Found", http.StatusNotFound)
			return nil
		}
		return writeJSON(w, records)
	}
}

// ListExceptionsHandler returns the newest records. Supports channel and
// limit query parameters.
func ListExceptionsHandler(repo exceptionFinder) Func {
	return func(w http.ResponseWriter, r *http.Request) error {
		limit := 20
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 || parsed > 500 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return nil
			}
			limit = parsed
		}

		records, err := repo.FindLatest(r.Context(), r.URL.Query().Get("channel"), limit)
		if err != nil {
			return err
		}
		return writeJSON(w, records)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
