package handler

import (
	"context"
	"net/http"

	"github.com/automateflow/automateflow/internal/api/response"
	"github.com/automateflow/automateflow/internal/queue"
)

// QueueStats reads the live queue depth counters.
type QueueStats interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// NewQueueStatsHandler returns the handler for GET /api/queue/stats.
func NewQueueStatsHandler(q QueueStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := q.Stats(r.Context())
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "DEPENDENCY_FAILURE",
				"Work queue is unavailable", nil)
			return
		}
		response.JSON(w, stats)
	}
}
