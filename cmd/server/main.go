// Command server runs the WebRTC signaling and synthetic-video HTTP
// server: /api/ws/webrtc upgrades to a signaling session, /api/health
// reports liveness. Grounded on the teacher's webrtc/client.go main()
// (signal handling) and websocket/websocket.go (listen address, route
// wiring).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n0remac/vision-streamer/registry"
	"github.com/n0remac/vision-streamer/videosource"
	"github.com/n0remac/vision-streamer/wsapi"
)

func main() {
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "address to listen on")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/webrtc", wsapi.Handler(videosource.NewSyntheticFactory(), registry.Default))
	mux.HandleFunc("/api/health", healthHandler)

	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("[server] listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] ListenAndServe: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := registry.Default.CloseAll(shutdownCtx); err != nil {
		log.Printf("[server] error closing peer connections: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] error during HTTP shutdown: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
