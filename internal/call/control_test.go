package call

import (
	"testing"
)

func TestControlRoundTrip(t *testing.T) {
	data, err := EncodeControl(ControlTypeMediaState, MediaState{Audio: true, Screen: true})
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	msg, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if msg.Type != ControlTypeMediaState {
		t.Fatalf("type = %q", msg.Type)
	}
	var ms MediaState
	if err := msg.DecodePayload(&ms); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if ms != (MediaState{Audio: true, Screen: true}) {
		t.Errorf("media state = %+v", ms)
	}
}

func TestDecodeControlRejectsUntyped(t *testing.T) {
	data, err := EncodeControl("", Hello{Name: "x"})
	if err != nil {
		t.Fatalf("EncodeControl: %v", err)
	}
	if _, err := DecodeControl(data); err == nil {
		t.Fatal("decoded a message without a type")
	}
	if _, err := DecodeControl([]byte{0xc1}); err == nil {
		t.Fatal("decoded garbage")
	}
}

func TestQueueOrder(t *testing.T) {
	q := newQueue()
	for i := 0; i < 3; i++ {
		q.push(i)
	}
	if q.len() != 3 {
		t.Fatalf("len = %d", q.len())
	}
	select {
	case <-q.ready():
	default:
		t.Fatal("push did not signal")
	}
	for want := 0; want < 3; want++ {
		got, ok := q.pop()
		if !ok || got != want {
			t.Fatalf("pop = %v, %v; want %d", got, ok, want)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop from empty queue")
	}
}
