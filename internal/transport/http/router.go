package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the websocket endpoint and the player API next to health and metrics.
func NewRouter(ws *WSHandler, players *PlayerHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("GET /players/{userID}/progress", players.Progress)
	mux.HandleFunc("POST /challenges", players.SendChallenge)
	mux.HandleFunc("GET /challenges/{challengeID}", players.Challenge)
	return mux
}
