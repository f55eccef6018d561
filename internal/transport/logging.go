// SPDX-License-Identifier: MIT
package transport

import (
	applog "pulseviz/internal/log"
)

// LoggingTransport is a debug sink that logs a one-line summary of each
// frame instead of transmitting it.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the frame summary at debug level. Never fails.
func (lt *LoggingTransport) Send(frame *Frame) error {
	if frame != nil && frame.Audio != nil {
		applog.Debugf("frame: state=%s beat=%v conf=%.2f total=%.2f nodes=%d edges=%d",
			frame.Audio.EnergyState, frame.Audio.IsBeat, frame.Audio.BeatConfidence,
			frame.Audio.Total, frame.Stats.Nodes, frame.Stats.Edges)
	}
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
