package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardbattle/session-server/pkg/types"
)

type fakeHub struct {
	stats    types.Stats
	err      error
	turnRoom string
	turnTo   string
}

func (f *fakeHub) Stats(context.Context) (types.Stats, error) { return f.stats, f.err }

func (f *fakeHub) AdvanceTurn(_ context.Context, roomID, playerID string) error {
	f.turnRoom, f.turnTo = roomID, playerID
	return f.err
}

func newRouter(t *testing.T, h Hub) http.Handler {
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return SetupRoutes(h, ws, zaptest.NewLogger(t))
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(newRouter(t, &fakeHub{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	h := &fakeHub{stats: types.Stats{
		Peers: 3,
		Ready: []string{"p3"},
		Rooms: []types.RoomSnapshot{{ID: "r1", Players: []string{"p1", "p2"}, Current: "p1"}},
	}}
	rec := serve(newRouter(t, h), http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got types.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, h.stats.Peers, got.Peers)
	assert.Equal(t, h.stats.Ready, got.Ready)
	require.Len(t, got.Rooms, 1)
	assert.Equal(t, "p1", got.Rooms[0].Current)
}

func TestStats_HubDown(t *testing.T) {
	rec := serve(newRouter(t, &fakeHub{err: errors.New("closed")}), http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdvanceTurn(t *testing.T) {
	h := &fakeHub{}
	router := newRouter(t, h)

	rec := serve(router, http.MethodPost, "/rooms/r1/turn", `{"player":"p2"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "r1", h.turnRoom)
	assert.Equal(t, "p2", h.turnTo)

	rec = serve(router, http.MethodPost, "/rooms/r1/turn", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWSRouteDelegates(t *testing.T) {
	rec := serve(newRouter(t, &fakeHub{}), http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
