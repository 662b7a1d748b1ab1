package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/stream"
	"github.com/skyplan/skyplan/pkg/logger"
)

// keepAliveInterval is how often an SSE comment line is written so proxies
// keep the connection open during long planning phases.
const keepAliveInterval = 15 * time.Second

// StreamPlan handles POST /api/plan/stream: the same route planning as
// POST /api/plan, but progress, partial plans, and the terminal result are
// streamed as server-sent events. The response is always 200 once streaming
// starts; failures arrive as an error event carrying the status code.
func (h *Handler) StreamPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if req.Mode != "" && req.Mode != "route" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "streaming supports route mode only"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"detail": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	job := stream.NewJob(time.Now().Add(h.totalTimeout()), h.logger)
	job.Start(func(pctx *planning.Context) (interface{}, error) {
		release, err := h.gate.Acquire(r.Context())
		if err != nil {
			return nil, err
		}
		defer release()
		return h.planner.PlanRoute(r.Context(), pctx, &req.Request)
	})

	h.logger.Info("Plan stream started",
		logger.String("job_id", job.ID),
		logger.String("origin", req.Origin),
		logger.String("destination", req.Destination))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return
			}
			writeSSEEvent(w, ev)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Info("Plan stream client disconnected", logger.String("job_id", job.ID))
			job.Cancel()
			// Drain so the worker's terminal send is not stranded.
			for range job.Events() {
			}
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev planning.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
