package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"TrafficGraph/internal/model"
	"TrafficGraph/internal/resolver"
	"TrafficGraph/internal/writer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Source is the live session the API reads from.
type Source interface {
	Summary() *model.Summary
	Build() *model.Graph
	Resolver() resolver.Resolver
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	source Source
}

// NewRouter wires every API route.
func NewRouter(source Source) *mux.Router {
	h := &Handler{source: source}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/graph", h.graphHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/flows", h.flowsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/flows/{source}/{destination}", h.flowHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/summary", h.summaryHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/resolver", h.resolverHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// NewServer creates an HTTP server for source on addr.
func NewServer(addr string, source Source) *http.Server {
	return &http.Server{Addr: addr, Handler: NewRouter(source)}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

// graphHandler returns the graph as JSON, or as Graphviz DOT with ?format=dot.
func (h *Handler) graphHandler(w http.ResponseWriter, r *http.Request) {
	g := h.source.Build()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, g)
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		if err := writer.WriteDOT(w, g); err != nil {
			klog.Errorf("Failed to write dot response: %v", err)
		}
	default:
		http.Error(w, fmt.Sprintf("unknown format '%s'", format), http.StatusBadRequest)
	}
}

// flowsHandler lists flows, optionally filtered by ?source= and ?destination=.
func (h *Handler) flowsHandler(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	destination := r.URL.Query().Get("destination")

	flows := make([]*model.FlowRecord, 0)
	for _, flow := range h.source.Summary().Flows {
		if source != "" && flow.Key.Source != source {
			continue
		}
		if destination != "" && flow.Key.Destination != destination {
			continue
		}
		flows = append(flows, flow)
	}
	writeJSON(w, flows)
}

func (h *Handler) flowHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := model.FlowKey{Source: vars["source"], Destination: vars["destination"]}
	for _, flow := range h.source.Summary().Flows {
		if flow.Key == key {
			writeJSON(w, flow)
			return
		}
	}
	http.Error(w, fmt.Sprintf("flow %s not found", key), http.StatusNotFound)
}

// summaryHandler returns the session summary as JSON, or the text report
// with ?format=text.
func (h *Handler) summaryHandler(w http.ResponseWriter, r *http.Request) {
	summary := h.source.Summary()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, summary)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := writer.WriteSummary(w, summary); err != nil {
			klog.Errorf("Failed to write summary response: %v", err)
		}
	default:
		http.Error(w, fmt.Sprintf("unknown format '%s'", format), http.StatusBadRequest)
	}
}

// ResolverResponse is the body of /api/v1/resolver.
type ResolverResponse struct {
	Enabled  bool              `json:"enabled"`
	Stats    resolver.Stats    `json:"stats"`
	Resolved map[string]string `json:"resolved"`
	Failed   []string          `json:"failed"`
}

func (h *Handler) resolverHandler(w http.ResponseWriter, _ *http.Request) {
	resp := ResolverResponse{Resolved: map[string]string{}, Failed: []string{}}
	if r, ok := h.source.Resolver().(*resolver.AddressResolver); ok {
		resolved, failed := r.Snapshot()
		resp = ResolverResponse{Enabled: true, Stats: r.Stats(), Resolved: resolved, Failed: failed}
	}
	writeJSON(w, resp)
}
