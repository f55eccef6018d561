// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "pulseviz/internal/log"
	"pulseviz/internal/transport"
)

// Publisher periodically snapshots the latest frame from a
// FrameProvider, packs it into a fixed binary layout, and sends it over
// UDP. It runs in its own goroutine on its own interval so renderers on
// lossy links get a bounded, constant-rate feed regardless of the tick
// rate.
type Publisher struct {
	sender   *Sender
	provider transport.FrameProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker/doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // Reused for every packet.
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender, provider transport.FrameProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("udp publisher: frame provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDP Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publisher goroutine. Safe to call only once per
// Start/Stop cycle; a second call while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDP Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDP Publisher: Started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDP Publisher: Stopped")
	return nil
}

/*
Packet layout (BigEndian):

	uint32   sequence number
	int64    timestamp (ns since epoch)
	uint8    flags: bit0 beat, bit1 transient, bit2 silence,
	         bit3 climax, bit4 beat drop
	uint8    energy state
	uint8    beat strength
	17 x f32 subBass, bass, mids, highs, loudness, total,
	         beatConfidence, beatDropIntensity, highSpikeIntensity,
	         smoothed subBass/bass/mid/high,
	         recent peak subBass/bass/mid/high
	uint32   active node count
	uint32   active edge count
*/
func (p *Publisher) buildAndSendPacket() {
	frame, ok := p.provider.Snapshot()
	if !ok || frame.Audio == nil {
		return // Nothing published before the first tick.
	}
	d := frame.Audio

	var flags uint8
	if d.IsBeat {
		flags |= 1 << 0
	}
	if d.IsTransient {
		flags |= 1 << 1
	}
	if d.IsSilence {
		flags |= 1 << 2
	}
	if d.IsClimax {
		flags |= 1 << 3
	}
	if d.IsBeatDrop {
		flags |= 1 << 4
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	buf := p.packetBuffer
	var err error
	write := func(v any) {
		if err == nil {
			err = binary.Write(buf, binary.BigEndian, v)
		}
	}

	write(p.sequenceNum)
	write(time.Now().UnixNano())
	write(flags)
	write(uint8(d.EnergyState))
	write(uint8(d.BeatStrength))
	write([]float32{
		float32(d.SubBass), float32(d.Bass), float32(d.Mids), float32(d.Highs),
		float32(d.Loudness), float32(d.Total),
		float32(d.BeatConfidence), float32(d.BeatDropIntensity), float32(d.HighSpikeIntensity),
		float32(d.Smoothed.SubBass), float32(d.Smoothed.Bass), float32(d.Smoothed.Mid), float32(d.Smoothed.High),
		float32(d.RecentPeaks.SubBass), float32(d.RecentPeaks.Bass), float32(d.RecentPeaks.Mid), float32(d.RecentPeaks.High),
	})
	write(uint32(frame.Stats.Nodes))
	write(uint32(frame.Stats.Edges))

	if err != nil {
		applog.Errorf("UDP Publisher: Error packing frame: %v", err)
		return
	}

	if err := p.sender.Send(buf.Bytes()); err != nil {
		applog.Debugf("UDP Publisher: Send failed: %v", err)
	}
}

// Close gracefully stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}
