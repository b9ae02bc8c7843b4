package wsapi

import (
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/n0remac/vision-streamer/registry"
	"github.com/n0remac/vision-streamer/rtcsession"
	"github.com/n0remac/vision-streamer/videosource"
)

// upgrader mirrors websocket/websocket.go's Upgrader: empty Origin is
// always allowed (browsers and some test clients omit it), any origin is
// allowed outside production, and production restricts to the
// configured origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if os.Getenv("ENVIRONMENT") != "production" {
			return true
		}
		allowed := os.Getenv("ALLOWED_ORIGIN")
		return allowed != "" && origin == allowed
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler builds the /api/ws/webrtc endpoint. trackFactory supplies the
// outbound video source for every session (videosource.NewSyntheticFactory
// for the bundled default); reg is the process-wide peer connection
// registry each session's peer connection is tracked in.
func Handler(trackFactory videosource.Factory, reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[wsapi] upgrade failed: %v", err)
			return
		}

		id := uuid.NewString()
		log.Printf("[wsapi] signaling connection established, session=%s", id)

		session := rtcsession.New(id, newWSConn(conn), trackFactory, reg)
		session.Run(r.Context())
	}
}
