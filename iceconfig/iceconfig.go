// Package iceconfig builds the list of STUN/TURN servers a peer
// connection is configured with. The result is computed at most once
// per process and memoized, matching spec §4.2 and §6.2.
package iceconfig

import (
	"log"
	"os"
	"strings"
	"sync"
)

// Server is a transport-agnostic ICE server descriptor; rtcsession
// converts it to webrtc.ICEServer when building a peer connection.
type Server struct {
	URLs       []string
	Username   string
	Credential string
}

var (
	once   sync.Once
	cached []Server
)

// Build returns the process-wide ICE server list, computing it from the
// environment on first call and memoizing the result for every caller
// afterward (invariant 4: "the ICE-server list is constructed at most
// once per process").
func Build() []Server {
	once.Do(func() {
		cached = build()
	})
	return cached
}

func build() []Server {
	mode := os.Getenv("WEBRTC_ICE_MODE")
	if mode == "" {
		mode = "prod"
	}

	if mode == "dev" {
		log.Printf("[ice] using dev configuration (TURN only, forced relay)")
		return []Server{
			{
				URLs:       []string{"turn:turn:3478?transport=tcp"},
				Username:   "dev",
				Credential: "devpass",
			},
		}
	}

	log.Printf("[ice] using prod configuration")
	servers := []Server{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	turnURLs := os.Getenv("TURN_URLS")
	turnUser := os.Getenv("TURN_USERNAME")
	turnCred := os.Getenv("TURN_CREDENTIAL")

	if turnURLs != "" && turnUser != "" && turnCred != "" {
		urls := strings.Split(turnURLs, ",")
		servers = append(servers, Server{
			URLs:       urls,
			Username:   turnUser,
			Credential: turnCred,
		})
	} else {
		log.Printf("[ice] no TURN server configured for production")
	}

	return servers
}
