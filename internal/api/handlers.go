package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flag-arena/internal/render"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// handleGetState returns the latest snapshot, the same document sent on the wire
func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"match":             h.engine.Stats(),
		"event_log":         h.engine.EventLogStats(),
		"http_rate_limiter": h.rateLimiter.GetStats(),
	}
	for name, provider := range h.stats {
		stats[name] = provider.GetStats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	writeJSON(w, h.engine.Leaderboard(limit))
}

func (h *routerHandlers) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, "invalid player id", http.StatusBadRequest)
		return
	}

	player, ok := h.engine.GetPlayer(uint32(id))
	if !ok {
		writeError(w, "player not found", http.StatusNotFound)
		return
	}
	writeJSON(w, player)
}

func (h *routerHandlers) handleGetMinimap(w http.ResponseWriter, r *http.Request) {
	scale := render.DefaultScale
	if raw := r.URL.Query().Get("scale"); raw != "" {
		s, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, "invalid scale", http.StatusBadRequest)
			return
		}
		scale = render.ClampScale(s)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WriteMinimapPNG(w, h.engine.Snapshot(), scale); err != nil {
		log.Printf("⚠️ Minimap render failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
