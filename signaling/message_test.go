package signaling

import "testing"

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestRoundTripOfferAnswer(t *testing.T) {
	for _, m := range []Message{Offer("v=0\r\n"), Answer("v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n")} {
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, _, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Type != m.Type || got.SDP != m.SDP {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, m)
		}
	}
}

func TestRoundTripBarePing(t *testing.T) {
	for _, m := range []Message{Bye(), Ping(), Pong()} {
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, _, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Type != m.Type {
			t.Fatalf("round trip mismatch: got %q want %q", got.Type, m.Type)
		}
	}
}

func TestRoundTripICECandidate(t *testing.T) {
	m := ICECandidate(strPtr("candidate:1 1 udp 1 127.0.0.1 5000 typ host"), strPtr("0"), intPtr(0))
	raw, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, _, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Candidate == nil || *got.Candidate != *m.Candidate {
		t.Fatalf("candidate mismatch: %+v", got)
	}
	if got.SDPMid == nil || *got.SDPMid != "0" {
		t.Fatalf("sdp_mid mismatch: %+v", got)
	}
	if got.SDPMLineIndex == nil || *got.SDPMLineIndex != 0 {
		t.Fatalf("sdp_m_line_index mismatch (must preserve legitimate zero): %+v", got)
	}
}

func TestEndOfCandidatesEncodesNull(t *testing.T) {
	m := ICECandidate(nil, nil, nil)
	raw, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, _, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Candidate != nil {
		t.Fatalf("expected nil candidate, got %v", *got.Candidate)
	}
}

func TestDecodeAcceptsCamelCaseAliases(t *testing.T) {
	raw := []byte(`{"type":"ice-candidate","candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":1}`)
	got, obj, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SDPMid == nil || *got.SDPMid != "0" {
		t.Fatalf("expected sdpMid alias to populate SDPMid, got %+v", got)
	}
	if got.SDPMLineIndex == nil || *got.SDPMLineIndex != 1 {
		t.Fatalf("expected sdpMLineIndex alias to populate SDPMLineIndex, got %+v", got)
	}
	if obj["sdpMLineIndex"] == nil {
		t.Fatalf("expected raw decoded object to retain camelCase key")
	}
}

func TestDecodeNonJSON(t *testing.T) {
	if _, _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected error for non-JSON frame")
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, _, err := Decode([]byte(`{"type":"frobnicate"}`)); err == nil {
		t.Fatalf("expected error for unrecognized type")
	}
}

func TestEncodePreservesNonASCII(t *testing.T) {
	raw, err := Encode(Answer("café v=0"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(raw) != `{"type":"answer","sdp":"café v=0"}` {
		t.Fatalf("expected non-ASCII to be preserved unescaped, got %s", raw)
	}
}
