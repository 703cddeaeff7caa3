package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

// StartServer serves /metrics on port in the background, for the command-line
// tools that have no HTTP server of their own. The returned function shuts it
// down.
func StartServer(port int) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log := logger.WithComponent("metrics-server")

	go func() {
		log.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	return server.Shutdown
}
