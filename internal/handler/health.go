package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// HealthHandler returns a health check endpoint. Every named probe must pass.
func HealthHandler(probes map[string]Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"errors": failed,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}
