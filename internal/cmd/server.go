package main

import (
	"net/http"

	"github.com/quizroom/quizroom/internal/gateway"
	"github.com/rs/cors"
)

func setupServer(addr string, wsHandler *gateway.WebSocketHandler) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	wsHandler.RegisterRoutes(mux)
	setupHealthCheck(mux)

	return &http.Server{
		Addr:    addr,
		Handler: c.Handler(mux),
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
