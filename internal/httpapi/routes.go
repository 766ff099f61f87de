package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(h Hub, ws http.Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/stats", Stats(h, log))
	r.Post("/rooms/{roomID}/turn", AdvanceTurn(h, log))
	r.Get("/ws", ws.ServeHTTP)
	return r
}
