// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ReadinessReporter is implemented by the invalidation consumer.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Check probes one dependency; nil means healthy.
type Check func(ctx context.Context) error

const checkTimeout = 2 * time.Second

// Readiness runs every check and, when rr is non-nil, requires the consumer
// to hold partitions. Any failure answers 503.
func Readiness(checks map[string]Check, rr ReadinessReporter) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string            `json:"status"`
			Checks     map[string]string `json:"checks,omitempty"`
			Partitions []int32           `json:"partitions,omitempty"`
		}
		out := resp{Status: "ready", Checks: make(map[string]string, len(names))}
		ready := true

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()
		for _, n := range names {
			if err := checks[n](ctx); err != nil {
				out.Checks[n] = err.Error()
				ready = false
				continue
			}
			out.Checks[n] = "ok"
		}

		if rr != nil {
			ok, parts := rr.Readiness()
			if ok {
				out.Partitions = parts
				out.Checks["invalidation"] = "ok"
			} else {
				out.Checks["invalidation"] = "no partitions assigned"
				ready = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			out.Status = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
