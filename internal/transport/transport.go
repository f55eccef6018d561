// SPDX-License-Identifier: MIT
package transport

import (
	"pulseviz/internal/analysis"
	"pulseviz/internal/network"
)

// Frame is the per-tick payload handed to every transport: the enriched
// audio description plus the network stats renderers poll.
type Frame struct {
	Type  string                     `json:"type"`
	Audio *analysis.AudioDescription `json:"audio"`
	Stats network.Stats              `json:"network"`
}

// Transport defines a generic sink for per-tick frames.
// Implementations must be safe for use from the tick goroutine and must
// not block it.
type Transport interface {
	Send(frame *Frame) error
	Close() error
}

// FrameProvider supplies the most recent frame to pull-based publishers
// that run on their own interval (e.g. the UDP publisher).
type FrameProvider interface {
	// Snapshot returns a copy of the latest frame. ok is false before
	// the first tick has completed.
	Snapshot() (Frame, bool)
}
