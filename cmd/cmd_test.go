package cmd

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/media/mediatest"
	"github.com/BioHazard786/Warpcall/internal/relay"
	"github.com/BioHazard786/Warpcall/internal/server"
)

func TestFetchRooms(t *testing.T) {
	hub := relay.NewHub(relay.NewRegistry())
	go hub.Run()
	t.Cleanup(hub.Stop)

	p := relay.NewParticipant("", "alice", nil)
	if _, err := hub.Registry().Join("amber-heron", p); err != nil {
		t.Fatalf("Join: %v", err)
	}

	ts := httptest.NewServer(server.NewRouter(hub))
	t.Cleanup(ts.Close)

	rooms, err := fetchRooms(context.Background(), ts.URL+"/api/rooms")
	if err != nil {
		t.Fatalf("fetchRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Room != "amber-heron" || len(rooms[0].Participants) != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}

	_, err = fetchRooms(context.Background(), ts.URL+"/missing")
	if !errors.Is(err, ErrUnexpectedStatus) || !strings.Contains(err.Error(), "404") {
		t.Fatalf("missing endpoint err = %v", err)
	}
	var ce *call.Error
	if errors.As(err, &ce) {
		t.Errorf("relay listing error wrapped as a call error: %v", err)
	}
}

func TestCheckDevices(t *testing.T) {
	rows, err := checkDevices(context.Background(), mediatest.NewCapturer(), &mediatest.Display{})
	if err != nil {
		t.Fatalf("checkDevices: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	for _, r := range rows {
		if !strings.HasSuffix(r.Status, "ok") {
			t.Errorf("%s status = %q", r.Label, r.Status)
		}
	}

	capt := mediatest.NewCapturer()
	capt.Errs = []error{media.ErrPermissionDenied}
	rows, err = checkDevices(context.Background(), capt, &mediatest.Display{Err: media.ErrAborted})
	if err != nil {
		t.Fatalf("checkDevices: %v", err)
	}
	if !strings.Contains(rows[0].Status, "allow camera") {
		t.Errorf("camera status = %q", rows[0].Status)
	}
	if !strings.Contains(rows[2].Status, "cancelled") {
		t.Errorf("display status = %q", rows[2].Status)
	}
}

func TestSummarize(t *testing.T) {
	s := summarize(call.Snapshot{
		Room:         "amber-heron",
		Peer:         "bob",
		State:        call.StateIdle,
		RemoteTracks: []call.TrackStats{{Bytes: 2048}, {Bytes: 2048}},
	})
	if s.Status != "Ended" || s.Peer != "bob" || s.Received == "" || s.Duration != "" {
		t.Errorf("summary = %+v", s)
	}
	if summarize(call.Snapshot{State: call.StateClosed}).Status != "Failed" {
		t.Error("closed call not reported as failed")
	}
}

