package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// ServerErrorMessage is the only detail a client sees when a request fails
// on the server side.
const ServerErrorMessage = "Failed to submit resume. Please try again later."

// Recover turns a panic in a handler into a 500 JSON envelope and logs the
// stack. http.ErrAbortHandler is re-raised so the server can drop the
// connection as intended.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic serving request",
					"error", fmt.Sprint(rec),
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": ServerErrorMessage})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
