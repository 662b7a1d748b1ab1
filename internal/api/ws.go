package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skyplan/skyplan/internal/planner"
	"github.com/skyplan/skyplan/internal/planning"
	"github.com/skyplan/skyplan/internal/stream"
	"github.com/skyplan/skyplan/internal/websocket"
	"github.com/skyplan/skyplan/pkg/logger"
)

// PlanMessageHandler bridges websocket clients to planning jobs: a
// plan_request message starts a job whose events are pushed back to the
// requesting client, and plan_cancel stops one by job id.
type PlanMessageHandler struct {
	handler *Handler
	log     *logger.Logger

	mu   sync.Mutex
	jobs map[string]*stream.Job
}

// NewPlanMessageHandler creates the websocket plan bridge.
func NewPlanMessageHandler(h *Handler, log *logger.Logger) *PlanMessageHandler {
	return &PlanMessageHandler{
		handler: h,
		log:     log.Named("ws-plan"),
		jobs:    make(map[string]*stream.Job),
	}
}

// HandleMessage dispatches one client message.
func (p *PlanMessageHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case "plan_request":
		return p.startJob(client, data)
	case "plan_cancel":
		return p.cancelJob(data)
	default:
		return fmt.Errorf("unknown message type: %s", messageType)
	}
}

func (p *PlanMessageHandler) startJob(client *websocket.Client, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("invalid plan request: %w", err)
	}
	var req planner.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("invalid plan request: %w", err)
	}

	h := p.handler
	job := stream.NewJob(time.Now().Add(h.totalTimeout()), p.log)

	p.mu.Lock()
	p.jobs[job.ID] = job
	p.mu.Unlock()

	client.SendMessage(&websocket.Message{
		Type: "plan_accepted",
		Data: map[string]any{"job_id": job.ID},
	})

	job.Start(func(pctx *planning.Context) (interface{}, error) {
		// No HTTP request backs a websocket job; bound outbound calls by the
		// planning deadline instead.
		ctx, cancel := context.WithDeadline(context.Background(), pctx.Deadline())
		defer cancel()

		release, err := h.gate.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
		return h.planner.PlanRoute(ctx, pctx, &req)
	})

	go p.forward(client, job)
	return nil
}

func (p *PlanMessageHandler) cancelJob(data map[string]any) error {
	id, _ := data["job_id"].(string)
	if id == "" {
		return fmt.Errorf("plan_cancel requires job_id")
	}

	p.mu.Lock()
	job := p.jobs[id]
	p.mu.Unlock()
	if job == nil {
		return fmt.Errorf("unknown job_id: %s", id)
	}
	job.Cancel()
	return nil
}

// forward pushes the job's events to the client until the terminal event.
// A closed client cancels the job.
func (p *PlanMessageHandler) forward(client *websocket.Client, job *stream.Job) {
	defer func() {
		p.mu.Lock()
		delete(p.jobs, job.ID)
		p.mu.Unlock()
	}()

	for ev := range job.Events() {
		if client.Closed() {
			job.Cancel()
			for range job.Events() {
			}
			return
		}
		client.SendMessage(&websocket.Message{
			Type: messageTypeFor(ev.Type),
			Data: eventData(job.ID, ev),
		})
	}
}

func messageTypeFor(t planning.EventType) string {
	switch t {
	case planning.EventPartialPlan:
		return websocket.MessageTypePlanPartial
	case planning.EventDone:
		return websocket.MessageTypePlanDone
	case planning.EventCancelled:
		return websocket.MessageTypePlanCancelled
	case planning.EventError:
		return websocket.MessageTypePlanError
	default:
		return websocket.MessageTypePlanProgress
	}
}

func eventData(jobID string, ev planning.Event) map[string]any {
	var data map[string]any
	if raw, err := json.Marshal(ev); err == nil {
		_ = json.Unmarshal(raw, &data)
	}
	if data == nil {
		data = make(map[string]any)
	}
	data["job_id"] = jobID
	return data
}
