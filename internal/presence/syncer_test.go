package presence

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRelay struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	status  atomic.Int32
	body    atomic.Value
	polls   atomic.Int32
	hello   string
	initial string

	mu       sync.Mutex
	received []outboundFrame
}

func newTestRelay(t *testing.T, hello, initial string) *testRelay {
	r := &testRelay{t: t, hello: hello, initial: initial}
	r.status.Store(http.StatusOK)
	r.body.Store(`{"success":true,"data":{"discord_status":"online","activities":[]}}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/", func(w http.ResponseWriter, req *http.Request) {
		r.polls.Add(1)
		w.WriteHeader(int(r.status.Load()))
		_, _ = w.Write([]byte(r.body.Load().(string)))
	})
	mux.HandleFunc("/socket", r.serveSocket)
	r.server = httptest.NewServer(mux)
	t.Cleanup(r.server.Close)
	return r
}

func (r *testRelay) serveSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if r.hello != "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(r.hello))
	}
	for {
		var frame struct {
			Op int `json:"op"`
			D  struct {
				SubscribeToID string `json:"subscribe_to_id"`
			} `json:"d"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		out := outboundFrame{Op: frame.Op}
		if frame.Op == opSubscribe {
			out.D = subscribeData{SubscribeToID: frame.D.SubscribeToID}
		}
		r.mu.Lock()
		r.received = append(r.received, out)
		first := len(r.received) == 1
		r.mu.Unlock()

		if first && r.initial != "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(r.initial))
		}
	}
}

func (r *testRelay) frames() []outboundFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outboundFrame(nil), r.received...)
}

func (r *testRelay) count(op int) int {
	n := 0
	for _, f := range r.frames() {
		if f.Op == op {
			n++
		}
	}
	return n
}

func (r *testRelay) config(subject string) Config {
	return Config{
		SubjectID:      subject,
		SocketURL:      "ws" + strings.TrimPrefix(r.server.URL, "http") + "/socket",
		APIURL:         r.server.URL,
		PollInterval:   1800 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
		RetryDelay:     1200 * time.Millisecond,
	}
}

func TestSyncerSubscribesAndAppliesSocketPresence(t *testing.T) {
	relay := newTestRelay(t,
		`{"op":1,"d":{"heartbeat_interval":500}}`,
		`{"op":0,"t":"INIT_STATE","d":{"discord_status":"online","activities":[{"name":"Chess","type":0}]}}`)
	clock := clockwork.NewFakeClock()

	s := NewSyncer(relay.config(testSubject), WithClock(clock))
	updates, cancel := s.Subscribe()
	defer cancel()
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.SocketState() == StateSubscribed && relay.count(opSubscribe) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, subscribeFrame(testSubject), relay.frames()[0])

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap.Activities) == 1 && snap.Activities[0].Label == "Game: Chess"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, AvailabilityOnline, s.Snapshot().Availability)

	select {
	case snap := <-updates:
		assert.NotEmpty(t, snap.Availability)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	// one-second tick, poll ticker and the heartbeat ticker
	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, clock.BlockUntilContext(ctx, 3))
	clock.Advance(DefaultHeartbeatInterval)

	require.Eventually(t, func() bool {
		return relay.count(opHeartbeat) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncerNotLinkedStopsWork(t *testing.T) {
	relay := newTestRelay(t, "", "")
	relay.status.Store(http.StatusNotFound)
	relay.body.Store(`{"success":false}`)

	s := NewSyncer(relay.config(testSubject), WithClock(clockwork.NewFakeClock()))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.Snapshot().Availability == AvailabilityNotLinked
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return s.SocketState() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	polls := relay.polls.Load()
	s.Focus()
	s.VisibilityChanged(true)
	s.NetworkChanged(true)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, polls, relay.polls.Load())
	assert.Equal(t, AvailabilityNotLinked, s.Snapshot().Availability)
}

type countingDialer struct {
	calls atomic.Int32
}

func (d *countingDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.calls.Add(1)
	return nil, errors.New("connection refused")
}

type stubFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context) (*Presence, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Presence{Status: "idle"}, nil
}

func TestSyncerReconnectsAfterRetryDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dialer := &countingDialer{}
	fetcher := &stubFetcher{}

	s := NewSyncer(Config{
		SubjectID:      testSubject,
		SocketURL:      "ws://relay.invalid/socket",
		PollInterval:   time.Hour,
		RequestTimeout: time.Second,
		RetryDelay:     1200 * time.Millisecond,
	}, WithClock(clock), WithDialer(dialer), WithFetcher(fetcher))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.SocketState() == StateDegraded
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), dialer.calls.Load())

	// one-second tick, poll ticker and the reconnect timer
	ctx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	require.NoError(t, clock.BlockUntilContext(ctx, 3))
	clock.Advance(1200 * time.Millisecond)

	require.Eventually(t, func() bool {
		return dialer.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, AvailabilityIdle, s.Snapshot().Availability)
}

func TestSyncerPollFailureMarksUnavailable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("timeout")}
	s := NewSyncer(Config{
		SubjectID:      testSubject,
		PollInterval:   time.Hour,
		RequestTimeout: time.Second,
		RetryDelay:     time.Hour,
	}, WithClock(clockwork.NewFakeClock()), WithDialer(&countingDialer{}), WithFetcher(fetcher))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.Snapshot().Availability == AvailabilityUnavailable
	}, time.Second, 5*time.Millisecond)
}

type panicDialer struct{ t *testing.T }

func (d panicDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.t.Error("browser mode must not dial")
	return nil, errors.New("unexpected")
}

type panicFetcher struct{ t *testing.T }

func (f panicFetcher) Fetch(ctx context.Context) (*Presence, error) {
	f.t.Error("browser mode must not poll")
	return nil, errors.New("unexpected")
}

func TestSyncerBrowserMode(t *testing.T) {
	s := NewSyncer(Config{SubjectID: "YOUR_DISCORD_USER_ID"},
		WithClock(clockwork.NewFakeClock()),
		WithDialer(panicDialer{t}),
		WithFetcher(panicFetcher{t}))

	assert.Equal(t, AvailabilityBrowserOnline, s.Snapshot().Availability)

	s.Start(context.Background())
	defer s.Stop()

	s.NetworkChanged(false)
	require.Eventually(t, func() bool {
		return s.Snapshot().Availability == AvailabilityBrowserOffline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, SourceBrowser, s.Snapshot().Source)

	s.Focus()
	s.NetworkChanged(true)
	require.Eventually(t, func() bool {
		return s.Snapshot().Availability == AvailabilityBrowserOnline
	}, time.Second, 5*time.Millisecond)
}

func TestSyncerStopClosesSubscribers(t *testing.T) {
	s := NewSyncer(Config{SubjectID: ""}, WithClock(clockwork.NewFakeClock()))
	updates, cancel := s.Subscribe()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
	cancel()

	for range updates {
	}
	// calls after stop are ignored
	s.Focus()
	s.NetworkChanged(false)
}
