// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"pulseviz/internal/audio"
)

func readyModel(t *testing.T) DeviceListModel {
	t.Helper()

	m := NewDeviceListModel()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(DeviceListModel)
	next, _ = m.Update(devicesMsg{devices: []audio.Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 44100},
		{ID: 1, Name: "HDMI Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	}})
	return next.(DeviceListModel)
}

func TestViewBeforeReady(t *testing.T) {
	m := NewDeviceListModel()
	if got := m.View(); !strings.Contains(got, "Scanning") {
		t.Errorf("initial view = %q, want scanning notice", got)
	}
}

func TestViewRendersTitleAndDevices(t *testing.T) {
	m := readyModel(t)
	view := m.View()

	if !strings.Contains(view, "pulseviz: audio capture devices") {
		t.Errorf("view missing title:\n%s", view)
	}
	if !strings.Contains(view, "Built-in Microphone") {
		t.Errorf("view missing device name:\n%s", view)
	}
}

func TestUpdateMovesSelection(t *testing.T) {
	m := readyModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(DeviceListModel)
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex after down = %d, want 1", m.selectedIndex)
	}

	// Selection clamps at the end of the list.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(DeviceListModel)
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex past end = %d, want 1", m.selectedIndex)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(DeviceListModel)
	if m.selectedIndex != 0 {
		t.Errorf("selectedIndex after up = %d, want 0", m.selectedIndex)
	}
}
