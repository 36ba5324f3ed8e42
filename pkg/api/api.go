// Package api exposes the Submitter-facing request/response interface of
// spec.md §6 over plain net/http: POST/DELETE/GET /workloads, GET /nodes,
// GET /cluster/status.
//
// Grounded on the retrieved pack's one hand-rolled HTTP surface
// (ENSIAS-3A-Projects-Projet-Federateur's pkg/agent health/dashboard
// server): a net/http.ServeMux with method-and-path patterns, JSON
// responses via encoding/json, and promhttp.Handler mounted alongside --
// no router/framework library appears anywhere in the example pack, so
// stdlib net/http is the grounded, not the default-by-omission, choice
// here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clawbernetes/gateway/pkg/gateway"
	"github.com/clawbernetes/gateway/pkg/ids"
	"github.com/clawbernetes/gateway/pkg/registry"
	"github.com/clawbernetes/gateway/pkg/workload"
)

// Server serves the external REST interface on top of a *gateway.Gateway.
type Server struct {
	gw       *gateway.Gateway
	log      logr.Logger
	validate *validator.Validate
}

// NewServer builds a Server for gw.
func NewServer(gw *gateway.Gateway, log logr.Logger) *Server {
	return &Server{gw: gw, log: log.WithName("api"), validate: validator.New()}
}

// Handler builds the routed http.Handler, mounting /metrics alongside the
// submitter interface the way the agent's health server mounts promhttp
// next to its own JSON endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /workloads", s.handleSubmitWorkload)
	mux.HandleFunc("DELETE /workloads/{id}", s.handleCancelWorkload)
	mux.HandleFunc("GET /workloads/{id}", s.handleGetWorkload)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("GET /nodes/{id}", s.handleGetNode)
	mux.HandleFunc("GET /cluster/status", s.handleClusterStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// resourcesRequest mirrors workload.Resources at the wire boundary with
// validator tags; spec.md §3 requires at least one GPU per workload.
type resourcesRequest struct {
	GPUs      uint32 `json:"gpus" validate:"min=1"`
	MemoryMiB uint64 `json:"memory_mib" validate:"min=1"`
	CPUCores  uint32 `json:"cpu_cores" validate:"min=1"`
}

type submitWorkloadRequest struct {
	TenantID      string            `json:"tenant_id" validate:"required,uuid"`
	NamespaceID   string            `json:"namespace_id" validate:"required,uuid"`
	Image         string            `json:"image" validate:"required"`
	Command       []string          `json:"command"`
	Env           map[string]string `json:"env"`
	Resources     resourcesRequest  `json:"resources" validate:"required"`
	PriorityClass string            `json:"priority_class"`
}

type submitWorkloadResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleSubmitWorkload(w http.ResponseWriter, r *http.Request) {
	var req submitWorkloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	tenantID, err := ids.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "tenant_id: "+err.Error())
		return
	}
	namespaceID, err := ids.Parse(req.NamespaceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "namespace_id: "+err.Error())
		return
	}
	if req.PriorityClass != "" {
		if _, err := s.gw.Priority.Get(req.PriorityClass); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "priority_class: "+err.Error())
			return
		}
	}

	spec := workload.Spec{
		Image:         req.Image,
		Command:       req.Command,
		Env:           req.Env,
		PriorityClass: req.PriorityClass,
		Owner:         workload.Owner{TenantID: tenantID, NamespaceID: namespaceID},
		Resources: workload.Resources{
			GPUs:      req.Resources.GPUs,
			MemoryMiB: req.Resources.MemoryMiB,
			CPUCores:  req.Resources.CPUCores,
		},
	}

	id, err := s.gw.Workloads.Submit(spec)
	if err != nil {
		var admErr *workload.AdmissionError
		if errors.As(err, &admErr) {
			writeError(w, http.StatusConflict, "AdmissionError", admErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal", err.Error())
		return
	}
	if created, err := s.gw.Workloads.Get(id); err == nil {
		if err := s.gw.Store.PutWorkload(created); err != nil {
			s.log.Error(err, "failed to persist submitted workload", "workload", id)
		}
	}
	writeJSON(w, http.StatusCreated, submitWorkloadResponse{ID: id.String()})
}

func (s *Server) handleCancelWorkload(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := s.gw.Workloads.Cancel(id); err != nil {
		var notFound *workload.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "NotFound", err.Error())
			return
		}
		writeError(w, http.StatusConflict, "InvalidTransition", err.Error())
		return
	}
	if updated, err := s.gw.Workloads.Get(id); err == nil {
		_ = s.gw.Store.PutWorkload(updated)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWorkload(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	wl, err := s.gw.Workloads.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Nodes.List())
}

type nodeDetailResponse struct {
	*registry.Node
	Health        registry.Health      `json:"health"`
	RecentMetrics *recentMetricsView `json:"recent_metrics,omitempty"`
}

type recentMetricsView struct {
	GPUMetrics any `json:"gpu_metrics"`
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := ids.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	node, err := s.gw.Nodes.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
		return
	}
	health, _ := s.gw.Nodes.Health(id)
	resp := nodeDetailResponse{Node: node, Health: health}
	if metrics, ok := s.gw.Router.RecentMetrics(id); ok {
		resp.RecentMetrics = &recentMetricsView{GPUMetrics: metrics.GPUMetrics}
	}
	writeJSON(w, http.StatusOK, resp)
}

type clusterStatusResponse struct {
	Nodes     registry.Summary `json:"nodes"`
	Workloads map[string]int   `json:"workloads_by_state"`
	Tenants   int              `json:"tenants"`
}

func (s *Server) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	byState := map[string]int{
		string(workload.Pending):   0,
		string(workload.Starting):  0,
		string(workload.Running):   0,
		string(workload.Stopping):  0,
		string(workload.Stopped):   0,
		string(workload.Completed): 0,
		string(workload.Failed):    0,
	}
	for _, wl := range s.gw.Workloads.List(workload.Filter{}) {
		byState[string(wl.State)]++
	}
	writeJSON(w, http.StatusOK, clusterStatusResponse{
		Nodes:     s.gw.Nodes.Summary(),
		Workloads: byState,
		Tenants:   len(s.gw.Store.ListTenants()),
	})
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
