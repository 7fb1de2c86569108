package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/resumerelay/internal/ratelimit"
)

// RateLimitMessage is returned to clients that exceed a window of the given
// length, e.g. "... please try again after 15 minutes".
func RateLimitMessage(window time.Duration) string {
	now := time.Now()
	wait := strings.TrimSpace(humanize.RelTime(now, now.Add(window), "", ""))
	return "Too many submissions from this IP, please try again after " + wait
}

type hasher interface {
	Sum(s string) string
}

// ClientKey identifies the client by the host part of RemoteAddr, digested so
// raw addresses never reach the store. Put chi's RealIP in front of it when
// running behind a trusted proxy.
func ClientKey(h hasher) func(*http.Request) string {
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return h.Sum(host)
	}
}

// RateLimit counts each request against the client's window and rejects it
// with a 429 once the window is used up. Store failures let the request
// through.
func RateLimit(store ratelimit.Store, key func(*http.Request) string, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	message := RateLimitMessage(window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := store.Hit(key(r))
			if err != nil {
				logger.Error("rate limit store failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			resetIn := strconv.Itoa(secondsUntil(res.Reset))
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("RateLimit-Reset", resetIn)

			if !res.Allowed {
				logger.Warn("submission rate limited", "reset_in", resetIn)
				h.Set("Retry-After", resetIn)
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secondsUntil(t time.Time) int {
	return max(int(math.Ceil(time.Until(t).Seconds())), 0)
}
