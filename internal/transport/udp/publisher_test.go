// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"pulseviz/internal/analysis"
	"pulseviz/internal/network"
	"pulseviz/internal/transport"
)

// packetSize is the fixed wire size of one published frame:
// 4 (seq) + 8 (timestamp) + 3 (flags, state, strength) + 17*4 (floats)
// + 4 (nodes) + 4 (edges).
const packetSize = 4 + 8 + 3 + 17*4 + 4 + 4

type stubFrameProvider struct {
	frame transport.Frame
	ok    bool
}

func (s *stubFrameProvider) Snapshot() (transport.Frame, bool) {
	return s.frame, s.ok
}

// newLoopback returns a listening UDP socket and a Sender dialed to it.
func newLoopback(t *testing.T) (*net.UDPConn, *Sender) {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	return conn, sender
}

func readPacket(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 512)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP failed: %v", err)
	}
	return buf[:n]
}

func TestNewPublisherValidation(t *testing.T) {
	_, sender := newLoopback(t)
	provider := &stubFrameProvider{}

	if _, err := NewPublisher(16*time.Millisecond, nil, provider); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(16*time.Millisecond, sender, nil); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := NewPublisher(16*time.Millisecond, sender, provider); err != nil {
		t.Errorf("valid publisher rejected: %v", err)
	}

	p, err := NewPublisher(0, sender, provider)
	if err != nil {
		t.Fatalf("NewPublisher with zero interval failed: %v", err)
	}
	if p.interval != 16*time.Millisecond {
		t.Errorf("defaulted interval = %v, want 16ms", p.interval)
	}
}

func TestBuildAndSendPacketLayout(t *testing.T) {
	conn, sender := newLoopback(t)

	provider := &stubFrameProvider{
		frame: transport.Frame{
			Type: "frame",
			Audio: &analysis.AudioDescription{
				Bass:           0.5,
				IsBeat:         true,
				IsBeatDrop:     true,
				BeatStrength:   analysis.StrengthStrong,
				BeatConfidence: 0.8,
				EnergyState:    analysis.StateDrop,
			},
			Stats: network.Stats{Nodes: 150, Edges: 421},
		},
		ok: true,
	}

	p, err := NewPublisher(16*time.Millisecond, sender, provider)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}

	p.buildAndSendPacket()
	packet := readPacket(t, conn)

	if len(packet) != packetSize {
		t.Fatalf("packet size = %d, want %d", len(packet), packetSize)
	}

	if seq := binary.BigEndian.Uint32(packet[0:4]); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}

	flags := packet[12]
	if flags&(1<<0) == 0 {
		t.Error("beat flag not set")
	}
	if flags&(1<<4) == 0 {
		t.Error("beat drop flag not set")
	}
	if flags&(1<<2) != 0 {
		t.Error("silence flag set unexpectedly")
	}

	if state := packet[13]; state != uint8(analysis.StateDrop) {
		t.Errorf("state byte = %d, want %d", state, uint8(analysis.StateDrop))
	}
	if strength := packet[14]; strength != uint8(analysis.StrengthStrong) {
		t.Errorf("strength byte = %d, want %d", strength, uint8(analysis.StrengthStrong))
	}

	// Bass is the second float in the block starting at offset 15.
	bass := binary.BigEndian.Uint32(packet[15+4 : 15+8])
	if got := math.Float32frombits(bass); got != 0.5 {
		t.Errorf("bass = %v, want 0.5", got)
	}

	nodesOff := 15 + 17*4
	if nodes := binary.BigEndian.Uint32(packet[nodesOff : nodesOff+4]); nodes != 150 {
		t.Errorf("node count = %d, want 150", nodes)
	}
	if edges := binary.BigEndian.Uint32(packet[nodesOff+4 : nodesOff+8]); edges != 421 {
		t.Errorf("edge count = %d, want 421", edges)
	}

	// Sequence numbers advance per packet.
	p.buildAndSendPacket()
	packet = readPacket(t, conn)
	if seq := binary.BigEndian.Uint32(packet[0:4]); seq != 2 {
		t.Errorf("second sequence = %d, want 2", seq)
	}
}

func TestBuildAndSendPacketSkipsEmptySnapshot(t *testing.T) {
	conn, sender := newLoopback(t)
	provider := &stubFrameProvider{ok: false}

	p, err := NewPublisher(16*time.Millisecond, sender, provider)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}

	p.buildAndSendPacket()

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, _, err := conn.ReadFromUDP(buf); err == nil {
		t.Errorf("received %d bytes before the first tick, want none", n)
	}
}

func TestPublisherStartStop(t *testing.T) {
	conn, sender := newLoopback(t)
	provider := &stubFrameProvider{
		frame: transport.Frame{Audio: &analysis.AudioDescription{}},
		ok:    true,
	}

	p, err := NewPublisher(5*time.Millisecond, sender, provider)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}

	p.Start()
	p.Start() // No-op while running.

	packet := readPacket(t, conn)
	if len(packet) != packetSize {
		t.Errorf("packet size = %d, want %d", len(packet), packetSize)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close after Stop failed: %v", err)
	}
}
