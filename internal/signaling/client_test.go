package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newRelay starts a websocket server that hands the n-th accepted
// connection (1-based) to serve.
func newRelay(t *testing.T, serve func(n int, conn *websocket.Conn)) (string, *int32) {
	t.Helper()
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serve(int(atomic.AddInt32(&count, 1)), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &count
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("server read: %v", err)
		return nil
	}
	msg, err := Decode(data)
	if err != nil {
		t.Errorf("server decode: %v", err)
		return nil
	}
	return msg
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-c.States():
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s (now %s)", want, c.State())
		}
	}
}

// dialLog records when the client dials.
type dialLog struct {
	mu    sync.Mutex
	times []time.Time
}

func (l *dialLog) dialer() *websocket.Dialer {
	d := *websocket.DefaultDialer
	d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		l.mu.Lock()
		l.times = append(l.times, time.Now())
		l.mu.Unlock()
		var nd net.Dialer
		return nd.DialContext(ctx, network, addr)
	}
	return &d
}

func (l *dialLog) at(i int) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= len(l.times) {
		return time.Time{}
	}
	return l.times[i]
}

// dropConn kills the TCP connection without a close frame.
func dropConn(conn *websocket.Conn) {
	conn.UnderlyingConn().Close()
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws")
	if err := c.Send(NewLeave("r")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send = %v, want ErrNotConnected", err)
	}
	if c.Ready() {
		t.Fatal("Ready before connect")
	}
}

func TestConnectSendsJoin(t *testing.T) {
	joins := make(chan *Message, 1)
	url, _ := newRelay(t, func(_ int, conn *websocket.Conn) {
		defer conn.Close()
		joins <- readMessage(t, conn)
		conn.WriteJSON(NewJoined("room-1", []string{"alice"}))
		conn.ReadMessage()
	})

	c := NewClient(url)
	defer c.Close()
	if err := c.Connect(context.Background(), "room-1", "alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.Ready() {
		t.Fatal("not ready after connect")
	}

	msg := <-joins
	if msg.Type != MessageTypeJoin || msg.Room != "room-1" || msg.Name != "alice" {
		t.Fatalf("first frame = %+v", msg)
	}

	select {
	case in := <-c.Incoming():
		if in.Type != MessageTypeJoined || len(in.Participants) != 1 {
			t.Fatalf("incoming = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no joined message")
	}
}

func TestMalformedFrameSkipped(t *testing.T) {
	url, _ := newRelay(t, func(_ int, conn *websocket.Conn) {
		defer conn.Close()
		readMessage(t, conn)
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(NewUserJoined("bob"))
		conn.ReadMessage()
	})

	c := NewClient(url)
	defer c.Close()
	if err := c.Connect(context.Background(), "r", "alice"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case in := <-c.Incoming():
		if in.Type != MessageTypeUserJoined || in.Name != "bob" {
			t.Fatalf("incoming = %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after malformed one was not delivered")
	}
}

func TestReconnectOnceAfterAbnormalClose(t *testing.T) {
	const delay = 150 * time.Millisecond
	joins := make(chan *Message, 4)
	var dropped atomic.Int64
	url, count := newRelay(t, func(n int, conn *websocket.Conn) {
		joins <- readMessage(t, conn)
		if n == 1 {
			dropped.Store(time.Now().UnixNano())
		}
		dropConn(conn)
	})

	dials := &dialLog{}
	c := NewClient(url, WithReconnectDelay(delay), WithDialer(dials.dialer()))
	defer c.Close()
	if err := c.Connect(context.Background(), "room-7", "carol"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitState(t, c, StateReconnecting)
	waitState(t, c, StateOpen)
	waitState(t, c, StateDisconnected)

	for i := 0; i < 2; i++ {
		msg := <-joins
		if msg.Type != MessageTypeJoin || msg.Room != "room-7" || msg.Name != "carol" {
			t.Fatalf("join %d = %+v", i, msg)
		}
	}

	redial := dials.at(1)
	if redial.IsZero() {
		t.Fatal("reconnect did not go through the configured dialer")
	}
	if gap := redial.Sub(time.Unix(0, dropped.Load())); gap < delay {
		t.Errorf("reconnected %v after the drop, want at least %v", gap, delay)
	}

	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(count); n != 2 {
		t.Fatalf("connections = %d, want exactly one reconnect", n)
	}
}

func TestSuccessfulRejoinRearmsReconnect(t *testing.T) {
	url, count := newRelay(t, func(_ int, conn *websocket.Conn) {
		msg := readMessage(t, conn)
		conn.WriteJSON(NewJoined(msg.Room, []string{msg.Name}))
		time.Sleep(50 * time.Millisecond)
		dropConn(conn)
	})

	c := NewClient(url, WithReconnectDelay(20*time.Millisecond))
	defer c.Close()
	if err := c.Connect(context.Background(), "r", "dave"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitState(t, c, StateReconnecting)
	waitState(t, c, StateOpen)
	waitState(t, c, StateReconnecting)
	c.Leave()

	if n := atomic.LoadInt32(count); n < 2 {
		t.Fatalf("connections = %d, want a second independent reconnect", n)
	}
}

func TestCleanCloseDoesNotReconnect(t *testing.T) {
	url, count := newRelay(t, func(_ int, conn *websocket.Conn) {
		readMessage(t, conn)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		conn.Close()
	})

	c := NewClient(url, WithReconnectDelay(20*time.Millisecond))
	defer c.Close()
	if err := c.Connect(context.Background(), "r", "erin"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitState(t, c, StateDisconnected)
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(count); n != 1 {
		t.Fatalf("connections = %d, want no reconnect after clean close", n)
	}
}

func TestLeaveSendsLeave(t *testing.T) {
	got := make(chan *Message, 1)
	url, _ := newRelay(t, func(_ int, conn *websocket.Conn) {
		defer conn.Close()
		readMessage(t, conn)
		got <- readMessage(t, conn)
	})

	c := NewClient(url)
	defer c.Close()
	if err := c.Connect(context.Background(), "room-2", "frank"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Leave()

	msg := <-got
	if msg == nil || msg.Type != MessageTypeLeave || msg.Room != "room-2" {
		t.Fatalf("second frame = %+v, want leave", msg)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state after leave = %s", c.State())
	}
	if err := c.Send(NewLeave("room-2")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after leave = %v", err)
	}
}

func TestLeaveCancelsPendingReconnect(t *testing.T) {
	url, count := newRelay(t, func(_ int, conn *websocket.Conn) {
		readMessage(t, conn)
		dropConn(conn)
	})

	c := NewClient(url, WithReconnectDelay(150*time.Millisecond))
	defer c.Close()
	if err := c.Connect(context.Background(), "r", "gina"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitState(t, c, StateReconnecting)
	c.Leave()

	time.Sleep(400 * time.Millisecond)
	if n := atomic.LoadInt32(count); n != 1 {
		t.Fatalf("connections = %d, leave should cancel the reconnect", n)
	}
}

type recordingListener struct {
	calls []string
}

func (r *recordingListener) OnJoined(room string, p []string) {
	r.calls = append(r.calls, "joined:"+room+":"+strings.Join(p, ","))
}
func (r *recordingListener) OnUserJoined(name string) {
	r.calls = append(r.calls, "user-joined:"+name)
}
func (r *recordingListener) OnOffer(o json.RawMessage) {
	r.calls = append(r.calls, "offer:"+string(o))
}
func (r *recordingListener) OnAnswer(a json.RawMessage) {
	r.calls = append(r.calls, "answer:"+string(a))
}
func (r *recordingListener) OnICECandidate(c json.RawMessage) {
	r.calls = append(r.calls, "candidate:"+string(c))
}
func (r *recordingListener) OnUserLeft(name string) {
	r.calls = append(r.calls, "user-left:"+name)
}
func (r *recordingListener) OnError(message string) {
	r.calls = append(r.calls, "error:"+message)
}
func (r *recordingListener) OnChannelState(s State) {
	r.calls = append(r.calls, "state:"+s.String())
}

func TestHandlerDispatch(t *testing.T) {
	l := &recordingListener{}
	h := NewHandler(nil, l)

	offer, _ := NewSignal(MessageTypeOffer, "r", map[string]string{"type": "offer", "sdp": "v=0"})
	for _, msg := range []*Message{
		NewJoined("r", []string{"alice", "bob"}),
		NewUserJoined("bob"),
		offer,
		{Type: "bogus"},
		NewUserLeft("bob"),
		NewError("Room is full"),
	} {
		h.Dispatch(msg)
	}

	want := []string{
		"joined:r:alice,bob",
		"user-joined:bob",
		`offer:{"sdp":"v=0","type":"offer"}`,
		"user-left:bob",
		"error:Room is full",
	}
	if strings.Join(l.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("calls = %v\nwant  %v", l.calls, want)
	}
}
