package presence

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/seuros/folio/internal/logging"
)

// Config configures a Syncer.
type Config struct {
	SubjectID      string
	SocketURL      string
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	RetryDelay     time.Duration
}

// Connectivity reports whether the host believes it is online.
type Connectivity interface {
	Online() bool
}

// Option customises a Syncer.
type Option func(*Syncer)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Syncer) { s.clock = clock }
}

func WithDialer(d Dialer) Option {
	return func(s *Syncer) { s.dialer = d }
}

func WithFetcher(f Fetcher) Option {
	return func(s *Syncer) { s.fetcher = f }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Syncer) { s.httpClient = c }
}

func WithConnectivity(c Connectivity) Option {
	return func(s *Syncer) { s.connectivity = c }
}

// runtime-only connection events, resolved to machine events in the loop
type (
	connOpened struct{ conn Conn }
	connFrame  struct {
		conn  Conn
		frame Frame
	}
	connLost struct{ conn Conn }
)

func (connOpened) presenceEvent() {}
func (connFrame) presenceEvent()  {}
func (connLost) presenceEvent()   {}

// Syncer keeps a presence snapshot current by combining the relay socket
// with HTTP polling. All state changes happen on one goroutine.
type Syncer struct {
	cfg          Config
	clock        clockwork.Clock
	dialer       Dialer
	fetcher      Fetcher
	httpClient   *http.Client
	connectivity Connectivity
	sessionID    string

	events  chan event
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	startMu sync.Once
	stopMu  sync.Once
	wg      sync.WaitGroup

	onlineFlag  atomic.Bool
	socketState atomic.Int32

	// loop-owned
	m               *machine
	conn            Conn
	pollTicker      clockwork.Ticker
	heartbeatTicker clockwork.Ticker
	reconnectTimer  clockwork.Timer

	mu          sync.RWMutex
	st          state
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewSyncer builds a Syncer. A placeholder subject puts it in browser mode
// where only connectivity is mirrored.
func NewSyncer(cfg Config, opts ...Option) *Syncer {
	s := &Syncer{
		cfg:         cfg,
		clock:       clockwork.NewRealClock(),
		sessionID:   uuid.NewString(),
		events:      make(chan event, 64),
		subscribers: make(map[int]chan Snapshot),
	}
	s.onlineFlag.Store(true)
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if s.fetcher == nil {
		s.fetcher = NewHTTPFetcher(s.httpClient, cfg.APIURL, cfg.SubjectID, s.clock.Now)
	}
	if s.dialer == nil {
		s.dialer = NewWebSocketDialer(cfg.RequestTimeout)
	}
	if s.connectivity == nil {
		s.connectivity = flagConnectivity{flag: &s.onlineFlag}
	}

	s.m = newMachine(cfg.SubjectID, cfg.RetryDelay, s.clock.Now, s)
	if s.m.browserMode {
		s.st = browserState(s.connectivity.Online())
	} else {
		s.st = state{availability: AvailabilityOffline, source: SourceProvider}
	}
	return s
}

type flagConnectivity struct{ flag *atomic.Bool }

func (f flagConnectivity) Online() bool { return f.flag.Load() }

// Start launches the sync loop. It returns immediately.
func (s *Syncer) Start(ctx context.Context) {
	s.startMu.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.started.Store(true)
		logging.L().Info("presence sync starting",
			"session_id", s.sessionID,
			"browser_mode", s.m.browserMode)
		s.wg.Add(1)
		go s.run()
	})
}

// Stop tears down timers and the socket and waits for the loop to exit.
// Nothing is published afterwards.
func (s *Syncer) Stop() {
	if !s.started.Load() {
		return
	}
	s.stopMu.Do(func() {
		s.cancel()
		s.wg.Wait()

		s.mu.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.mu.Unlock()
	})
}

// Snapshot returns the current presence with elapsed times computed now.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.RLock()
	st := s.st
	s.mu.RUnlock()
	return st.snapshot(s.clock.Now())
}

// SocketState reports the relay connection state.
func (s *Syncer) SocketState() SocketState {
	return SocketState(s.socketState.Load())
}

// SessionID identifies this syncer in logs.
func (s *Syncer) SessionID() string {
	return s.sessionID
}

// Subscribe returns a channel receiving a snapshot on every change and once
// per second while running. Slow receivers miss intermediate snapshots.
func (s *Syncer) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Focus requests an immediate refresh.
func (s *Syncer) Focus() {
	s.post(triggerEvent{reason: "focus"})
}

// VisibilityChanged requests a refresh when the page becomes visible.
func (s *Syncer) VisibilityChanged(visible bool) {
	if visible {
		s.post(triggerEvent{reason: "visible"})
	}
}

// NetworkChanged records a connectivity change and refreshes.
func (s *Syncer) NetworkChanged(online bool) {
	s.onlineFlag.Store(online)
	s.post(networkEvent{online: online})
}

func (s *Syncer) post(ev event) bool {
	if !s.started.Load() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Syncer) run() {
	defer s.wg.Done()

	clockTick := s.clock.NewTicker(time.Second)
	defer clockTick.Stop()

	s.dispatch(mountEvent{})
	for {
		select {
		case <-s.ctx.Done():
			s.dispatch(unmountEvent{})
			logging.L().Info("presence sync stopped", "session_id", s.sessionID)
			return
		case ev := <-s.events:
			s.dispatch(ev)
		case <-tickerChan(s.pollTicker):
			s.dispatch(pollTickEvent{})
		case <-tickerChan(s.heartbeatTicker):
			s.dispatch(heartbeatEvent{})
		case <-clockTick.Chan():
			s.broadcast()
		}
	}
}

func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}

func (s *Syncer) dispatch(ev event) {
	switch e := ev.(type) {
	case connOpened:
		if !s.m.wantsSocket() {
			_ = e.conn.Close()
			return
		}
		s.conn = e.conn
		s.wg.Add(1)
		go s.readLoop(e.conn)
		s.m.handle(socketOpenEvent{})
	case connFrame:
		if e.conn != s.conn {
			return
		}
		s.m.handle(socketFrameEvent{frame: e.frame})
	case connLost:
		if e.conn != nil && e.conn != s.conn {
			return
		}
		s.m.handle(socketLostEvent{})
	default:
		s.m.handle(ev)
	}
	s.socketState.Store(int32(s.m.socket))
}

func (s *Syncer) readLoop(conn Conn) {
	defer s.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.post(connLost{conn: conn})
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logging.L().Debug("ignoring malformed relay frame", "error", err)
			continue
		}
		if !s.post(connFrame{conn: conn, frame: f}) {
			return
		}
	}
}

// effects

func (s *Syncer) startPolling() {
	s.stopPolling()
	s.pollTicker = s.clock.NewTicker(s.cfg.PollInterval)
}

func (s *Syncer) stopPolling() {
	if s.pollTicker != nil {
		s.pollTicker.Stop()
		s.pollTicker = nil
	}
}

func (s *Syncer) poll() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		p, err := s.fetcher.Fetch(ctx)
		s.post(pollResultEvent{presence: p, err: err})
	}()
}

func (s *Syncer) dial() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn, err := s.dialer.Dial(s.ctx, s.cfg.SocketURL)
		if err != nil {
			logging.L().Debug("presence socket dial failed", "error", err)
			s.post(connLost{})
			return
		}
		if !s.post(connOpened{conn: conn}) {
			_ = conn.Close()
		}
	}()
}

func (s *Syncer) closeSocket() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Syncer) send(frame outboundFrame) {
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		logging.L().Debug("presence socket write failed", "op", frame.Op, "error", err)
	}
}

func (s *Syncer) startHeartbeat(every time.Duration) {
	s.stopHeartbeat()
	s.heartbeatTicker = s.clock.NewTicker(every)
}

func (s *Syncer) stopHeartbeat() {
	if s.heartbeatTicker != nil {
		s.heartbeatTicker.Stop()
		s.heartbeatTicker = nil
	}
}

func (s *Syncer) scheduleReconnect(after time.Duration) {
	s.cancelReconnect()
	s.reconnectTimer = s.clock.AfterFunc(after, func() {
		s.post(reconnectEvent{})
	})
}

func (s *Syncer) cancelReconnect() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Syncer) online() bool {
	return s.connectivity.Online()
}

func (s *Syncer) publish(st state) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	s.broadcast()
}

func (s *Syncer) broadcast() {
	snap := s.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the stale value so the receiver sees the latest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
