package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// liveness answers 200 whenever the process is able to serve HTTP at
// all. The orchestrator restarts the pod when this stops responding.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness probes every registered backend in parallel under the
// configured timeout and answers 503 unless all of them pass. The JSON
// body exists for humans; the orchestrator only reads the status code.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = make(map[string]string, len(s.checkers))
		degraded bool
	)

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Warn, not Error: the orchestrator retries and the
				// backend's own logs carry the detail.
				s.logger.Warn("readiness check failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				statuses[c.Name()] = "down: " + err.Error()
				degraded = true
				return
			}
			statuses[c.Name()] = "up"
		}(checker)
	}
	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	if degraded {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	// Encoder errors are unrecoverable here: the status code is already
	// on the wire.
	_ = json.NewEncoder(w).Encode(map[string]any{"status": statuses})
}
