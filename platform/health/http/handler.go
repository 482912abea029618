package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check — проверка одной зависимости (postgres, redis)
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handler возвращает health endpoint: 200 {"status":"ok"} если все проверки прошли,
// иначе 503 {"status":"not ready","checks":{...}}. Каждая проверка ограничена timeout
func Handler(timeout time.Duration, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "not ready"
		}
		if len(results) > 0 {
			body["checks"] = results
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
