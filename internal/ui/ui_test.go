package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpcall/internal/call"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) ToggleScreenShare(context.Context) (bool, error) {
	f.record("screen")
	return true, nil
}

func (f *fakeController) ToggleAudio(context.Context) (bool, error) {
	f.record("audio")
	return false, nil
}

func (f *fakeController) ToggleVideo(context.Context) (bool, error) {
	f.record("video")
	return false, nil
}

func (f *fakeController) Leave(context.Context) error {
	f.record("leave")
	return nil
}

func key(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func TestCallModelKeys(t *testing.T) {
	ctrl := &fakeController{}
	m := NewCallModel(ctrl, make(chan call.Event))

	for _, k := range []string{"s", "m", "v"} {
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Fatalf("key %q produced no command", k)
		}
		if done, ok := cmd().(actionDone); !ok || done.err != nil {
			t.Fatalf("key %q result = %#v", k, done)
		}
	}
	if strings.Join(ctrl.calls, ",") != "screen,audio,video" {
		t.Fatalf("calls = %v", ctrl.calls)
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil || !m.quitting || m.View() != "" {
		t.Fatal("q did not quit")
	}
}

func TestCallModelRendersEvents(t *testing.T) {
	m := NewCallModel(&fakeController{}, make(chan call.Event))
	snap := call.Snapshot{
		State:      call.StateConnected,
		Room:       "amber-heron",
		Peer:       "bob",
		Audio:      false,
		Video:      true,
		Screen:     true,
		Preview:    "Synthetic Screen",
		Overlay:    "Synthetic Camera",
		BoundVideo: "screen-video",
		Remote:     &call.MediaState{Audio: true},
		RemoteTracks: []call.TrackStats{
			{ID: "v", Kind: "video", Bitrate: 2_000_000},
		},
	}

	_, cmd := m.Update(eventMsg(call.Event{
		Kind:     call.EventNotice,
		Snapshot: snap,
		Notice:   call.Notice{Level: call.LevelWarning, Text: "Connection lost"},
	}))
	if cmd == nil {
		t.Fatal("event did not re-arm the listener")
	}

	view := m.View()
	for _, want := range []string{"amber-heron", "bob", "mic off", "screen on", "Synthetic Screen + Synthetic Camera", "Connection lost", "screen-video"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.Snapshot().Room != "amber-heron" {
		t.Error("snapshot not kept")
	}
}

func TestCallModelKeepsRecentNotices(t *testing.T) {
	m := NewCallModel(&fakeController{}, make(chan call.Event))
	for i := 0; i < maxNotices+3; i++ {
		m.Update(eventMsg(call.Event{Kind: call.EventNotice, Notice: call.Notice{Level: call.LevelInfo, Text: string(rune('a' + i))}}))
	}
	if len(m.notices) != maxNotices || m.notices[0].Text != "d" {
		t.Fatalf("notices = %+v", m.notices)
	}
}

func TestTables(t *testing.T) {
	rooms := RoomsView([]RoomRow{{Room: "amber-heron", Participants: []string{"alice", "bob"}}})
	if !strings.Contains(rooms, "amber-heron") || !strings.Contains(rooms, "alice, bob") || !strings.Contains(rooms, "2/2") {
		t.Errorf("rooms table:\n%s", rooms)
	}
	if !strings.Contains(RoomsView(nil), "No active rooms") {
		t.Error("empty rooms view")
	}

	devices := DevicesView([]DeviceRow{{Kind: "videoinput", Label: "Synthetic Camera", ID: "cam", Status: "ok"}})
	if !strings.Contains(devices, "Synthetic Camera") {
		t.Errorf("devices table:\n%s", devices)
	}

	summary := CallSummaryView("Call Summary", CallSummary{Room: "amber-heron", Status: "Ended"})
	if !strings.Contains(summary, "amber-heron") || !strings.Contains(summary, "-") {
		t.Errorf("summary:\n%s", summary)
	}
}
