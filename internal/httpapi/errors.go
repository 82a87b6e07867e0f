package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/fnhost/internal/apierr"
)

// handlerFunc is the shape every control-API handler is written
// against; it returns an error that writeErrorResponse translates to
// the control plane's {"error": message} envelope.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap adapts a handlerFunc to http.HandlerFunc, the single boundary
// where errors are mapped to status codes and logged.
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) {
				writeError(w, apiErr)
				return
			}
			s.log.Error("unhandled control-api error", slog.String("path", r.URL.Path), slog.Any("error", err))
			writeError(w, apierr.Wrap(apierr.KindIO, err))
		}
	}
}

func writeError(w http.ResponseWriter, err *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Kind.StatusCode())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
