// Package signaling defines the wire schema for the WebRTC signaling
// channel: the small family of offer/answer/candidate/bye/ping/pong
// control messages exchanged over the text-message channel described in
// the server's /api/ws/webrtc endpoint.
package signaling

import "encoding/json"

// Message types recognized on the signaling channel. Anything else is
// logged and dropped by the caller.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeBye          = "bye"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Message is the decoded form of a signaling frame. Only the fields
// relevant to Type are populated; see wireMessage and Encode below for
// the JSON shape each type serializes to.
type Message struct {
	Type string

	// offer / answer
	SDP string

	// ice-candidate. Candidate == nil denotes end-of-candidates.
	Candidate     *string
	SDPMid        *string
	SDPMLineIndex *int
}

// wireMessage mirrors the JSON shape on the channel, including the
// camelCase aliases clients are allowed to send for sdp_mid and
// sdp_m_line_index.
type wireMessage struct {
	Type             string  `json:"type"`
	SDP              string  `json:"sdp,omitempty"`
	Candidate        *string `json:"candidate"`
	SDPMid           *string `json:"sdp_mid,omitempty"`
	SDPMidCamel      *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *int    `json:"sdp_m_line_index,omitempty"`
	SDPMLineIndexAlt *int    `json:"sdpMLineIndex,omitempty"`
}

// Decode parses a raw text frame into a Message and the original decoded
// JSON object (so callers needing the camelCase-aliased fallback values
// described in spec §4.4 still have access to them). A non-JSON frame or
// one with no recognized type returns an error; the caller logs and
// drops the frame, it never propagates up as a fatal condition.
func Decode(raw []byte) (*Message, map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, err
	}

	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, obj, err
	}

	switch w.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate, TypeBye, TypePing, TypePong:
	default:
		return nil, obj, &UnknownTypeError{Type: w.Type}
	}

	msg := &Message{
		Type:          w.Type,
		SDP:           w.SDP,
		Candidate:     w.Candidate,
		SDPMid:        firstNonNil(w.SDPMid, w.SDPMidCamel),
		SDPMLineIndex: firstNonNilInt(w.SDPMLineIndex, w.SDPMLineIndexAlt),
	}
	return msg, obj, nil
}

// UnknownTypeError indicates a syntactically valid JSON object whose
// "type" field is missing or not one of the recognized values.
type UnknownTypeError struct{ Type string }

func (e *UnknownTypeError) Error() string {
	return "signaling: unrecognized message type " + "\"" + e.Type + "\""
}

func firstNonNil(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

// Offer builds an {"type":"offer","sdp":...} message.
func Offer(sdp string) Message { return Message{Type: TypeOffer, SDP: sdp} }

// Answer builds an {"type":"answer","sdp":...} message.
func Answer(sdp string) Message { return Message{Type: TypeAnswer, SDP: sdp} }

// Bye builds a {"type":"bye"} message.
func Bye() Message { return Message{Type: TypeBye} }

// Ping builds a {"type":"ping"} message.
func Ping() Message { return Message{Type: TypePing} }

// Pong builds a {"type":"pong"} message.
func Pong() Message { return Message{Type: TypePong} }

// ICECandidate builds an ice-candidate message. Pass a nil candidate to
// signal end-of-candidates.
func ICECandidate(candidate, sdpMid *string, sdpMLineIndex *int) Message {
	return Message{
		Type:          TypeICECandidate,
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	}
}

// Encode serializes m to the canonical wire shape for its Type. Non-ASCII
// characters are preserved unescaped, matching the original
// ensure_ascii=False behavior; encoding/json already does this by
// default (it only escapes HTML-sensitive runes, not generic Unicode).
func Encode(m Message) ([]byte, error) {
	switch m.Type {
	case TypeOffer, TypeAnswer:
		return json.Marshal(struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		}{Type: m.Type, SDP: m.SDP})
	case TypeICECandidate:
		return json.Marshal(wireMessage{
			Type:          m.Type,
			Candidate:     m.Candidate,
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
		})
	case TypeBye, TypePing, TypePong:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: m.Type})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: m.Type})
	}
}
