package api

import (
	"net/http"
	"time"
)

// Version is the build version reported on the health endpoint.
var Version = "dev"

var startedAt = time.Now()

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
	})
}
