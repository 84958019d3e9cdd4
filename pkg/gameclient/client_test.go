package gameclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"session-service/domain"
)

// fakeTransport scripts dial outcomes; a nil entry means dial failure.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeClientConn
	dials int
}

func (t *fakeTransport) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if len(t.conns) == 0 {
		return nil, errors.New("dial refused")
	}
	conn := t.conns[0]
	t.conns = t.conns[1:]
	if conn == nil {
		return nil, errors.New("dial refused")
	}
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

type fakeClientConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	written   [][]byte
}

func newFakeClientConn() *fakeClientConn {
	return &fakeClientConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeClientConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeClientConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeClientConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates an unexpected transport loss.
func (c *fakeClientConn) drop() {
	c.Close()
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for c.State() != want {
		select {
		case <-deadline:
			t.Fatalf("state = %s, want %s", c.State(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBackoffDelayNonDecreasingToCap(t *testing.T) {
	base := time.Second
	cap := 30 * time.Second

	var prev time.Duration
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(attempt, base, cap)
		if d < prev {
			t.Errorf("delay decreased: attempt %d gave %v after %v", attempt, d, prev)
		}
		if d > cap {
			t.Errorf("attempt %d exceeded cap: %v", attempt, d)
		}
		prev = d
	}

	if d := backoffDelay(1, base, cap); d != time.Second {
		t.Errorf("first delay = %v, want 1s", d)
	}
	if d := backoffDelay(6, base, cap); d != cap {
		t.Errorf("attempt 6 = %v, want cap %v", d, cap)
	}
}

func TestConnectThenUnexpectedDropReconnects(t *testing.T) {
	first := newFakeClientConn()
	second := newFakeClientConn()
	transport := &fakeTransport{conns: []*fakeClientConn{first, second}}

	c := New(Options{
		URL:         "ws://test/ws/game/room",
		Transport:   transport,
		BaseDelay:   time.Millisecond,
		MaxAttempts: 5,
	})

	var disconnects int
	var mu sync.Mutex
	c.OnDisconnected(func() {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %s, want connected", c.State())
	}

	first.drop()
	waitForState(t, c, StateConnected)

	if transport.dialCount() != 2 {
		t.Errorf("dials = %d, want 2", transport.dialCount())
	}
	mu.Lock()
	defer mu.Unlock()
	if disconnects != 1 {
		t.Errorf("disconnected notifications = %d, want 1", disconnects)
	}
}

func TestFailedAfterMaxAttempts(t *testing.T) {
	// Every dial refused.
	transport := &fakeTransport{}
	c := New(Options{
		URL:         "ws://test",
		Transport:   transport,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxAttempts: 3,
	})

	c.Connect(context.Background())
	waitForState(t, c, StateFailed)

	// Initial dial plus one per retry attempt.
	if got := transport.dialCount(); got != 4 {
		t.Errorf("dials = %d, want 4", got)
	}
}

func TestIntentionalDisconnectIsSilent(t *testing.T) {
	conn := newFakeClientConn()
	transport := &fakeTransport{conns: []*fakeClientConn{conn}}
	c := New(Options{URL: "ws://test", Transport: transport, BaseDelay: time.Millisecond})

	var disconnects int
	var mu sync.Mutex
	c.OnDisconnected(func() {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}

	// The read loop notices the closed conn; give it room to misbehave.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if disconnects != 0 {
		t.Errorf("intentional disconnect emitted %d notifications", disconnects)
	}
	if transport.dialCount() != 1 {
		t.Errorf("intentional disconnect triggered a redial")
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	conn := newFakeClientConn()
	transport := &fakeTransport{conns: []*fakeClientConn{conn}}
	c := New(Options{
		URL:       "ws://test",
		Transport: transport,
		BaseDelay: 50 * time.Millisecond,
	})

	c.Connect(context.Background())
	conn.drop()
	waitForState(t, c, StateReconnecting)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if c.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}
	if transport.dialCount() != 1 {
		t.Errorf("cancelled reconnect still dialed (%d dials)", transport.dialCount())
	}
}

func TestMessageDispatchByType(t *testing.T) {
	conn := newFakeClientConn()
	transport := &fakeTransport{conns: []*fakeClientConn{conn}}
	c := New(Options{URL: "ws://test", Transport: transport})

	got := make(chan domain.Envelope, 1)
	c.OnMessage(domain.MsgStateUpdate, func(env domain.Envelope) {
		got <- env
	})
	// A panicking listener on another type must not affect dispatch.
	c.OnMessage(domain.MsgPing, func(domain.Envelope) { panic("listener bug") })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ping, _ := domain.NewEnvelope(domain.MsgPing, nil).Encode()
	conn.in <- ping
	update, _ := domain.NewEnvelope(domain.MsgStateUpdate, domain.SyncPayload{Phase: domain.RoomPlaying}).Encode()
	conn.in <- update

	select {
	case env := <-got:
		if env.Type != domain.MsgStateUpdate {
			t.Errorf("dispatched type = %s", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("STATE_UPDATE never dispatched")
	}
}

func TestSendRequiresConnection(t *testing.T) {
	c := New(Options{URL: "ws://test", Transport: &fakeTransport{}})

	err := c.Send(*domain.NewEnvelope(domain.MsgPong, nil))
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectFromConnectedFails(t *testing.T) {
	conn := newFakeClientConn()
	transport := &fakeTransport{conns: []*fakeClientConn{conn}}
	c := New(Options{URL: "ws://test", Transport: transport})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("second Connect while connected must fail")
	}
}
