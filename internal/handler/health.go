package handler

import "net/http"

// Health reports liveness only. It never probes the mail transport.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","message":"Server is running"}` + "\n"))
}
