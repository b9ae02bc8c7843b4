// Package registry tracks every live peer connection in the process so
// that shutdown can close them all in one orderly sweep (spec §4.5).
// Default is the process-wide instance the server hands to every
// Session, mirroring the original's module-level rtc_manager singleton;
// New builds separate registries (tests use their own).
package registry

import (
	"context"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"
)

// Registry is a process-wide, mutex-guarded set of live peer
// connections. The teacher's single-threaded websocket.Hub mutates its
// client map only from its own run loop; pion's event callbacks fire on
// library goroutines, so here the set is always guarded by mu (spec §5:
// "if the chosen runtime is parallel, the Registry must be guarded by a
// mutex").
type Registry struct {
	mu    sync.Mutex
	conns map[*webrtc.PeerConnection]struct{}
}

// New constructs an empty registry. Most callers use Default instead.
func New() *Registry {
	return &Registry{conns: make(map[*webrtc.PeerConnection]struct{})}
}

// Default is the process-wide registry instance.
var Default = New()

// Register adds pc to the set of live connections.
func (r *Registry) Register(pc *webrtc.PeerConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[pc] = struct{}{}
	log.Printf("[registry] registered, active connections: %d", len(r.conns))
}

// Unregister removes pc from the set and closes it unless it is already
// closed (a failed connection is closed too). Safe to call more than
// once for the same pc; only the first call closes it.
func (r *Registry) Unregister(pc *webrtc.PeerConnection) {
	r.mu.Lock()
	_, ok := r.conns[pc]
	delete(r.conns, pc)
	r.mu.Unlock()

	if !ok {
		return
	}
	if pc.ConnectionState() != webrtc.PeerConnectionStateClosed {
		if err := pc.Close(); err != nil {
			log.Printf("[registry] error closing peer connection: %v", err)
		}
	}
	log.Printf("[registry] unregistered, active connections: %d", r.Len())
}

// Len reports the number of currently registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every registered connection concurrently, swallowing
// per-connection errors (logged, not returned), then clears the set.
// Used on process shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	conns := make([]*webrtc.PeerConnection, 0, len(r.conns))
	for pc := range r.conns {
		conns = append(conns, pc)
	}
	r.mu.Unlock()

	log.Printf("[registry] closing all peer connections (%d)", len(conns))

	g, _ := errgroup.WithContext(ctx)
	for _, pc := range conns {
		pc := pc
		g.Go(func() error {
			if err := pc.Close(); err != nil {
				log.Printf("[registry] error closing peer connection during shutdown: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	r.conns = make(map[*webrtc.PeerConnection]struct{})
	r.mu.Unlock()
	return nil
}
