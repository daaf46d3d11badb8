package relay

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	broken bool
}

func (f *fakeConn) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return ErrNotWritable
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func newMember(name string) (*Participant, *fakeConn) {
	conn := &fakeConn{}
	return NewParticipant("", name, conn), conn
}

func TestJoinOrderAndCapacity(t *testing.T) {
	r := NewRegistry()
	alice, _ := newMember("alice")
	bob, _ := newMember("bob")
	carol, _ := newMember("carol")

	names, err := r.Join("room", alice)
	if err != nil || !reflect.DeepEqual(names, []string{"alice"}) {
		t.Fatalf("alice join = %v, %v", names, err)
	}
	names, err = r.Join("room", bob)
	if err != nil || !reflect.DeepEqual(names, []string{"alice", "bob"}) {
		t.Fatalf("bob join = %v, %v", names, err)
	}
	if _, err := r.Join("room", carol); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("carol join err = %v, want ErrRoomFull", err)
	}

	snap := r.Snapshot()
	if len(snap) != 1 || !reflect.DeepEqual(snap[0].Participants, []string{"alice", "bob"}) {
		t.Fatalf("rejected join changed state: %+v", snap)
	}
}

func TestJoinRequiresRoomID(t *testing.T) {
	r := NewRegistry()
	p, _ := newMember("alice")
	for _, id := range []string{"", "   "} {
		if _, err := r.Join(id, p); !errors.Is(err, ErrRoomIDRequired) {
			t.Errorf("Join(%q) err = %v", id, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("rooms = %d, want 0", r.Len())
	}
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	for round := 0; round < 20; round++ {
		r := NewRegistry()
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted, rejected := 0, 0

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, _ := newMember("")
				_, err := r.Join("busy", p)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, ErrRoomFull):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if admitted != RoomCapacity || rejected != 8-RoomCapacity {
			t.Fatalf("admitted=%d rejected=%d", admitted, rejected)
		}
		if got := len(r.Snapshot()[0].Participants); got != RoomCapacity {
			t.Fatalf("members = %d", got)
		}
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry()
	alice, _ := newMember("alice")
	bob, _ := newMember("bob")
	r.Join("room", alice)
	r.Join("room", bob)

	if remaining, ok := r.Leave("room", alice); !ok || remaining != 1 {
		t.Fatalf("Leave(alice) = %d, %v", remaining, ok)
	}
	if remaining, ok := r.Leave("room", alice); ok {
		t.Fatalf("second Leave(alice) = %d, %v, want no-op", remaining, ok)
	}
	if remaining, ok := r.Leave("room", bob); !ok || remaining != 0 {
		t.Fatalf("Leave(bob) = %d, %v", remaining, ok)
	}
	if r.Len() != 0 {
		t.Fatalf("empty room not deleted")
	}
	if _, ok := r.Leave("room", bob); ok {
		t.Fatal("Leave on missing room reported ok")
	}

	dave, _ := newMember("dave")
	names, err := r.Join("room", dave)
	if err != nil || !reflect.DeepEqual(names, []string{"dave"}) {
		t.Fatalf("rejoin = %v, %v; want a fresh room", names, err)
	}
}

func TestBroadcastExcept(t *testing.T) {
	r := NewRegistry()
	alice, aliceConn := newMember("alice")
	bob, bobConn := newMember("bob")
	r.Join("room", alice)
	r.Join("room", bob)

	if n := r.BroadcastExcept("room", alice, []byte("hi")); n != 1 {
		t.Fatalf("delivered = %d", n)
	}
	if aliceConn.count() != 0 {
		t.Fatal("frame echoed to sender")
	}
	if bobConn.count() != 1 || string(bobConn.frames[0]) != "hi" {
		t.Fatalf("bob frames = %q", bobConn.frames)
	}

	bobConn.broken = true
	if n := r.BroadcastExcept("room", alice, []byte("again")); n != 0 {
		t.Fatalf("delivered to broken member: %d", n)
	}
	if n := r.BroadcastExcept("missing", alice, []byte("x")); n != 0 {
		t.Fatalf("delivered in missing room: %d", n)
	}
}

func TestSnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		p, _ := newMember(id + "-user")
		r.Join(id, p)
	}
	var ids []string
	for _, info := range r.Snapshot() {
		ids = append(ids, info.Room)
	}
	if !reflect.DeepEqual(ids, []string{"alpha", "bravo", "charlie"}) {
		t.Fatalf("snapshot order = %v", ids)
	}
}

func TestNewParticipantDefaults(t *testing.T) {
	p := NewParticipant("", "  ", nil)
	if p.Name != DefaultName {
		t.Errorf("Name = %q", p.Name)
	}
	if p.ID == "" {
		t.Error("ID not generated")
	}
}

func TestWireMessage(t *testing.T) {
	tests := map[error]string{
		ErrRoomFull:       "Room is full",
		ErrRoomIDRequired: "Room ID is required",
		ErrUnknownType:    "Unknown message type",
		ErrInvalidFormat:  "Invalid message format",
	}
	for err, want := range tests {
		if got := WireMessage(err); got != want {
			t.Errorf("WireMessage(%v) = %q, want %q", err, got, want)
		}
	}
}
