// Package dispatch exposes the local compaction job queues to remote
// compactor workers and the coordinator over HTTP.
//
// The wire layer here is deliberately thin: handlers validate the request,
// call into the queues, and encode the result. All decision logic lives in
// the compaction package.
package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.loamdb.org/loam/pkg/compaction"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// ReserveRequest asks for the best job at or above MinPriority. Workers
// mint ExternalID before every attempt.
type ReserveRequest struct {
	Queue       compaction.QueueID    `json:"queue_id"`
	Worker      string                `json:"worker_id"`
	MinPriority int64                 `json:"min_priority"`
	ExternalID  compaction.ExternalID `json:"external_id"`
}

// CancelRequest cancels all queued jobs targeting an extent.
type CancelRequest struct {
	Extent compaction.Extent `json:"extent"`
}

// CancelResponse reports how many cancellations took effect.
type CancelResponse struct {
	Canceled int `json:"canceled"`
}

// Server handles worker and coordinator calls against the local queues.
type Server struct {
	Registry *compaction.Registry
	Log      *zap.Logger
}

// Router builds the dispatch API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/compactions/reserve", s.handleReserve)
	r.Post("/v1/compactions/cancel", s.handleCancel)
	r.Get("/v1/queues/summaries", s.handleSummaries)
	return r
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Queue == "" || req.Worker == "" || req.ExternalID == "" {
		http.Error(w, "missing queue_id, worker_id or external_id", http.StatusBadRequest)
		return
	}
	q, ok := s.Registry.Lookup(req.Queue)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	res := q.Reserve(r.Context(), req.MinPriority, req.Worker, req.ExternalID)
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.Log.Info("Reserved external compaction",
		zap.String("queue", string(res.Queue)),
		zap.String("extent", string(res.Extent)),
		zap.Int64("priority", res.Priority),
		zap.String("worker", res.Worker),
		zap.String("ecid", string(res.ExternalID)))
	s.writeJSON(w, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Extent == "" {
		http.Error(w, "missing extent", http.StatusBadRequest)
		return
	}
	n := s.Registry.CancelExtent(req.Extent)
	s.writeJSON(w, CancelResponse{Canceled: n})
}

func (s *Server) handleSummaries(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.Registry.Summaries())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Error("Failed to write response", zap.Error(err))
	}
}
