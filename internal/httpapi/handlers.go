package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cardbattle/session-server/pkg/types"
)

// Hub is the slice of the dispatch loop the admin routes read from.
type Hub interface {
	Stats(ctx context.Context) (types.Stats, error)
	AdvanceTurn(ctx context.Context, roomID, playerID string) error
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func Stats(h Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		stats, err := h.Stats(ctx)
		if err != nil {
			log.Warn("stats unavailable", zap.Error(err))
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type turnRequest struct {
	PlayerID string `json:"player"`
}

// AdvanceTurn hands the turn in a room to the given player. It feeds the
// same signal the automatic turn policy uses.
func AdvanceTurn(h Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		var req turnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
			http.Error(w, "body must be {\"player\": \"<id>\"}", http.StatusBadRequest)
			return
		}

		if err := h.AdvanceTurn(r.Context(), roomID, req.PlayerID); err != nil {
			log.Warn("turn change not queued", zap.String("room", roomID), zap.Error(err))
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
