// Package health serves liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/mohammed-shakir/wallpanels/internal/cache"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Readiness reports ready once every dependency answers. Components that
// do not implement cache.Pinger are treated as always ready. Ping errors
// are not echoed to the caller.
func Readiness(deps map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		out := resp{Status: "ready", Checks: map[string]string{}}
		for name, d := range deps {
			p, ok := d.(cache.Pinger)
			if !ok {
				out.Checks[name] = "ok"
				continue
			}
			if err := p.Ping(); err != nil {
				out.Status = "not_ready"
				out.Checks[name] = "unavailable"
				continue
			}
			out.Checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
