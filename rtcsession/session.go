// Package rtcsession implements the per-connection signaling state
// machine described in spec §4.4: it binds one signaling channel to one
// pion peer connection and one outbound video track, and runs until
// either side says goodbye. This is the heart of the server, grounded
// on the teacher's webrtc/sfu.go SFU session loop (sendJSON,
// writePumpSFU, candidate queueing) generalized from the teacher's
// hand-rolled SFU broadcast semantics to a single answerer per session.
package rtcsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/vision-streamer/iceconfig"
	"github.com/n0remac/vision-streamer/registry"
	"github.com/n0remac/vision-streamer/signaling"
	"github.com/n0remac/vision-streamer/videosource"
)

// iceGatheringTimeout bounds how long Session waits for ICE gathering
// to finish before sending an answer with whatever candidates have
// gathered so far (spec §4.4, "5.0s fallback").
const iceGatheringTimeout = 5 * time.Second

// RTP packetization parameters for the outbound synthetic track. The
// packetizer writes into a TrackLocalStaticRTP the way webrtc/client.go
// drives its video track, generalized here to packetize raw frames
// instead of forwarding already-packetized RTP from a UDP socket.
const (
	rtpMTU         = 1200
	videoClockRate = 90000
	videoPT        = 96
)

// Session is one signaling-channel-to-peer-connection binding. Create
// one with New per accepted connection and call Run; Run blocks until
// the session ends, performing cleanup exactly once before returning.
type Session struct {
	id           string
	conn         signaling.Conn
	trackFactory videosource.Factory
	registry     *registry.Registry

	pc *webrtc.PeerConnection

	mu          sync.Mutex
	closed      bool
	cleanupDone bool

	iceGatherOnce     sync.Once
	iceGatherComplete chan struct{}

	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once

	handlers map[string]func(*signaling.Message, map[string]interface{})
}

// New constructs a Session bound to conn, sourcing its outbound video
// from trackFactory and registering its peer connection with reg.
func New(id string, conn signaling.Conn, trackFactory videosource.Factory, reg *registry.Registry) *Session {
	s := &Session{
		id:                id,
		conn:              conn,
		trackFactory:      trackFactory,
		registry:          reg,
		iceGatherComplete: make(chan struct{}),
		send:              make(chan []byte, 64),
		done:              make(chan struct{}),
	}
	s.handlers = map[string]func(*signaling.Message, map[string]interface{}){
		signaling.TypeOffer:        s.handleOffer,
		signaling.TypeICECandidate: s.handleICECandidate,
		signaling.TypeBye:          s.handleBye,
		signaling.TypePing:         s.handlePing,
		signaling.TypeAnswer:       s.handleUnexpected,
		signaling.TypePong:         s.handleUnexpected,
	}
	return s
}

// Run accepts the signaling channel, builds the peer connection and
// outbound track, then services inbound frames until the channel
// closes, bye is received, or ctx is done. It always performs cleanup
// before returning.
func (s *Session) Run(ctx context.Context) {
	if err := s.conn.Accept(ctx); err != nil {
		log.Printf("[session %s] accept error: %v", s.id, err)
		s.cleanup()
		return
	}
	log.Printf("[session %s] accepted", s.id)

	pc, err := s.newPeerConnection()
	if err != nil {
		log.Printf("[session %s] failed to create peer connection: %v", s.id, err)
		s.cleanup()
		return
	}
	s.pc = pc
	s.registry.Register(pc)
	s.attachEventHandlers(pc)

	if err := s.addOutboundTrack(ctx, pc); err != nil {
		log.Printf("[session %s] could not add outbound track: %v", s.id, err)
	}

	go s.writePump(ctx)

	for !s.isClosed() {
		text, err := s.conn.ReceiveText(ctx)
		if err != nil {
			log.Printf("[session %s] receive loop ending: %v", s.id, err)
			break
		}
		s.handleFrame([]byte(text))
	}

	s.cleanup()
}

func (s *Session) newPeerConnection() (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir))

	servers := iceconfig.Build()
	iceServers := make([]webrtc.ICEServer, 0, len(servers))
	for _, sv := range servers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       sv.URLs,
			Username:   sv.Username,
			Credential: sv.Credential,
		})
	}

	return api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
}

func (s *Session) addOutboundTrack(ctx context.Context, pc *webrtc.PeerConnection) error {
	if s.trackFactory == nil {
		return nil
	}
	track := s.trackFactory()

	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate}, "video", "vision-streamer-"+s.id,
	)
	if err != nil {
		return fmt.Errorf("new local track: %w", err)
	}
	if _, err := pc.AddTrack(local); err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	packetizer := rtp.NewPacketizer(rtpMTU, videoPT, rand.Uint32(), &codecs.VP8Payloader{}, rtp.NewRandomSequencer(), videoClockRate)

	go s.pumpVideo(ctx, track, local, packetizer)
	return nil
}

// pumpVideo feeds frames from track into local, packetizing each one
// with packetizer, until the source errors, the session ends, or ctx is
// done. It closes track if it implements an optional Close method (the
// bundled synthetic track releases its off-heap gocv buffer this way).
func (s *Session) pumpVideo(ctx context.Context, track videosource.Track, local *webrtc.TrackLocalStaticRTP, packetizer rtp.Packetizer) {
	defer func() {
		if closer, ok := track.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Printf("[session %s] error closing video source: %v", s.id, err)
			}
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		frame, err := track.NextFrame(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("[session %s] video source error, stopping outbound track: %v", s.id, err)
			}
			return
		}

		samples := uint32(frame.Duration.Seconds() * videoClockRate)
		for _, pkt := range packetizer.Packetize(frame.Data, samples) {
			if err := local.WriteRTP(pkt); err != nil {
				log.Printf("[session %s] WriteRTP error: %v", s.id, err)
				return
			}
		}
	}
}

func (s *Session) attachEventHandlers(pc *webrtc.PeerConnection) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// End-of-candidates from the local gatherer: per spec §4.4,
			// no additional ice-candidate frame is sent here, the
			// gathering-complete latch below is the only signal.
			return
		}
		ice := c.ToJSON()
		var mLineIdx *int
		if ice.SDPMLineIndex != nil {
			v := int(*ice.SDPMLineIndex)
			mLineIdx = &v
		}
		candidate := ice.Candidate
		s.sendMessage(signaling.ICECandidate(&candidate, ice.SDPMid, mLineIdx))
	})

	pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		log.Printf("[session %s] ICE gathering state: %s", s.id, state)
		if state == webrtc.ICEGatheringStateComplete {
			s.iceGatherOnce.Do(func() { close(s.iceGatherComplete) })
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("[session %s] ICE connection state: %s", s.id, state)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[session %s] peer connection state: %s", s.id, state)
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.setClosed()
		}
	})
}

func (s *Session) handleFrame(rawBytes []byte) {
	msg, obj, err := signaling.Decode(rawBytes)
	if err != nil {
		var unk *signaling.UnknownTypeError
		if errors.As(err, &unk) {
			log.Printf("[session %s] unknown message type %q, dropping", s.id, unk.Type)
		} else {
			log.Printf("[session %s] malformed signaling frame, dropping: %v", s.id, err)
		}
		return
	}

	handler, ok := s.handlers[msg.Type]
	if !ok {
		log.Printf("[session %s] no handler registered for %q", s.id, msg.Type)
		return
	}
	handler(msg, obj)
}

func (s *Session) handleOffer(msg *signaling.Message, _ map[string]interface{}) {
	if s.pc == nil {
		log.Printf("[session %s] received offer with no peer connection", s.id)
		return
	}
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}); err != nil {
		log.Printf("[session %s] SetRemoteDescription error: %v", s.id, err)
		return
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("[session %s] CreateAnswer error: %v", s.id, err)
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		log.Printf("[session %s] SetLocalDescription error: %v", s.id, err)
		return
	}

	s.waitForICEGathering(iceGatheringTimeout)

	local := s.pc.LocalDescription()
	if local == nil {
		log.Printf("[session %s] no local description after gathering wait", s.id)
		return
	}
	s.sendMessage(signaling.Answer(local.SDP))
	log.Printf("[session %s] sent answer", s.id)
}

func (s *Session) waitForICEGathering(timeout time.Duration) {
	if s.pc.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		return
	}
	select {
	case <-s.iceGatherComplete:
	case <-time.After(timeout):
		log.Printf("[session %s] ICE gathering timeout after %s (state: %s)", s.id, timeout, s.pc.ICEGatheringState())
	}
}

// handleICECandidate adds a remote candidate, or signals end-of-candidates
// when Candidate is nil. sdp_mid/sdp_m_line_index are resolved with a
// three-source, zero-discarding fallback chain that deliberately
// reproduces the original's `or`-style merge (see DESIGN.md: a
// legitimate 0 sdp_m_line_index is treated the same as "absent" rather
// than special-cased, per spec's instruction to flag rather than
// silently fix this ambiguity).
func (s *Session) handleICECandidate(msg *signaling.Message, obj map[string]interface{}) {
	if s.pc == nil {
		return
	}
	switch s.pc.ICEConnectionState() {
	case webrtc.ICEConnectionStateClosed, webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected:
		log.Printf("[session %s] ignoring ICE candidate, connection state is %s", s.id, s.pc.ICEConnectionState())
		return
	}

	if msg.Candidate == nil {
		if err := s.pc.AddICECandidate(webrtc.ICECandidateInit{}); err != nil {
			log.Printf("[session %s] end-of-candidates error: %v", s.id, err)
		}
		return
	}

	sdpMid := coalesceString(msg.SDPMid, stringFromJSON(obj, "sdp_mid"), stringFromJSON(obj, "sdpMid"))
	sdpMLineIndex := coalesceInt(msg.SDPMLineIndex, intFromJSON(obj, "sdp_m_line_index"), intFromJSON(obj, "sdpMLineIndex"))

	info, err := ParseCandidateLine(*msg.Candidate)
	if err != nil {
		log.Printf("[session %s] dropping malformed candidate: %v", s.id, err)
		return
	}

	init := webrtc.ICECandidateInit{Candidate: info.Line(), SDPMid: sdpMid}
	if sdpMLineIndex != nil {
		idx := uint16(*sdpMLineIndex)
		init.SDPMLineIndex = &idx
	}

	if err := s.pc.AddICECandidate(init); err != nil {
		log.Printf("[session %s] AddICECandidate error: %v", s.id, err)
		return
	}
	log.Printf("[session %s] added ICE candidate type=%s ip=%s port=%d", s.id, info.Type, info.IP, info.Port)
}

func (s *Session) handleBye(_ *signaling.Message, _ map[string]interface{}) {
	log.Printf("[session %s] received bye, closing", s.id)
	s.setClosed()
}

func (s *Session) handlePing(_ *signaling.Message, _ map[string]interface{}) {
	s.sendMessage(signaling.Pong())
}

// handleUnexpected handles answer/pong: the server is always the
// answerer in this contract, so receiving either from the client is
// unusual but not fatal.
func (s *Session) handleUnexpected(msg *signaling.Message, _ map[string]interface{}) {
	log.Printf("[session %s] unexpected %q from client, ignoring", s.id, msg.Type)
}

func (s *Session) sendMessage(m signaling.Message) {
	raw, err := signaling.Encode(m)
	if err != nil {
		log.Printf("[session %s] encode error for %q: %v", s.id, m.Type, err)
		return
	}
	select {
	case s.send <- raw:
	case <-s.done:
	default:
		log.Printf("[session %s] send queue overflow, dropping %q", s.id, m.Type)
	}
}

// writePump is the single writer goroutine for the signaling channel,
// grounded on the teacher's writePumpSFU: gorilla/websocket (and Conn
// implementations generally) forbid concurrent writers, so every
// outbound frame is serialized through this one goroutine reading send.
func (s *Session) writePump(ctx context.Context) {
	for {
		select {
		case raw := <-s.send:
			if err := s.conn.SendText(ctx, string(raw)); err != nil {
				log.Printf("[session %s] write error: %v", s.id, err)
				s.setClosed()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// cleanup runs exactly once per Session: it stops the write pump,
// closes the peer connection if it isn't already closed or failed,
// unregisters it, and closes the signaling channel. Safe to call from
// multiple exit paths.
func (s *Session) cleanup() {
	s.mu.Lock()
	if s.cleanupDone {
		s.mu.Unlock()
		return
	}
	s.cleanupDone = true
	s.mu.Unlock()

	log.Printf("[session %s] cleaning up", s.id)

	s.doneOnce.Do(func() { close(s.done) })

	if s.pc != nil {
		state := s.pc.ConnectionState()
		if state != webrtc.PeerConnectionStateClosed && state != webrtc.PeerConnectionStateFailed {
			if err := s.pc.Close(); err != nil {
				log.Printf("[session %s] error closing peer connection: %v", s.id, err)
			}
		}
		s.registry.Unregister(s.pc)
	}

	if err := s.conn.Close(); err != nil {
		log.Printf("[session %s] error closing signaling channel: %v", s.id, err)
	}
}

func coalesceString(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func coalesceInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil && *v != 0 {
			return v
		}
	}
	return nil
}

func stringFromJSON(obj map[string]interface{}, key string) *string {
	if v, ok := obj[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

func intFromJSON(obj map[string]interface{}, key string) *int {
	if v, ok := obj[key]; ok && v != nil {
		if f, ok := v.(float64); ok {
			i := int(f)
			return &i
		}
	}
	return nil
}
