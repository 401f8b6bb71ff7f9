package api

import (
	"encoding/json"
	"net/http"

	"unifiedhq/internal/cdn"
)

// PurgeRequest is the cache purge surface body.
type PurgeRequest struct {
	Type    string   `json:"type"` // tags, paths, source-control, chat, ai-summary, static, all
	Targets []string `json:"targets,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// PurgeHandler accepts purge requests and drives the CDN manager.
type PurgeHandler struct {
	cdn *cdn.Manager
}

// NewPurgeHandler creates a purge handler.
func NewPurgeHandler(manager *cdn.Manager) *PurgeHandler {
	return &PurgeHandler{cdn: manager}
}

// RegisterRoutes registers the purge endpoint
func (h *PurgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/cache/purge", h.handlePurge)
}

func (h *PurgeHandler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate before any store or CDN call.
	switch req.Type {
	case "tags", "paths":
		if len(req.Targets) == 0 {
			writeError(w, http.StatusBadRequest, "targets are required for type "+req.Type)
			return
		}
	case "source-control", "chat", "ai-summary", "static", "all":
		// No targets needed.
	default:
		writeError(w, http.StatusBadRequest, "unknown purge type")
		return
	}

	var res cdn.Result
	switch req.Type {
	case "tags":
		res = h.cdn.PurgeByTags(r.Context(), req.Targets)
	case "paths":
		res = h.cdn.PurgeByPaths(r.Context(), req.Targets)
	case "source-control":
		res = h.cdn.PurgeSourceControlCache(r.Context())
	case "chat":
		res = h.cdn.PurgeChatCache(r.Context())
	case "ai-summary":
		res = h.cdn.PurgeAISummaryCache(r.Context())
	case "static":
		res = h.cdn.PurgeStaticAssets(r.Context())
	case "all":
		res = h.cdn.PurgeAll(r.Context())
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}
