package presence

import (
	"errors"
	"time"

	"github.com/seuros/folio/internal/logging"
)

type event interface{ presenceEvent() }

type (
	mountEvent      struct{}
	unmountEvent    struct{}
	pollTickEvent   struct{}
	heartbeatEvent  struct{}
	reconnectEvent  struct{}
	socketOpenEvent struct{}
	socketLostEvent struct{}

	// triggerEvent is a foreground signal (focus or page became visible).
	triggerEvent struct{ reason string }

	networkEvent struct{ online bool }

	pollResultEvent struct {
		presence *Presence
		err      error
	}

	socketFrameEvent struct{ frame Frame }
)

func (mountEvent) presenceEvent()       {}
func (unmountEvent) presenceEvent()     {}
func (pollTickEvent) presenceEvent()    {}
func (heartbeatEvent) presenceEvent()   {}
func (reconnectEvent) presenceEvent()   {}
func (socketOpenEvent) presenceEvent()  {}
func (socketLostEvent) presenceEvent()  {}
func (triggerEvent) presenceEvent()     {}
func (networkEvent) presenceEvent()     {}
func (pollResultEvent) presenceEvent()  {}
func (socketFrameEvent) presenceEvent() {}

// effects are the side effects the machine asks its runtime to perform.
type effects interface {
	startPolling()
	stopPolling()
	poll()
	dial()
	closeSocket()
	send(frame outboundFrame)
	startHeartbeat(every time.Duration)
	stopHeartbeat()
	scheduleReconnect(after time.Duration)
	cancelReconnect()
	online() bool
	publish(st state)
}

// machine owns every presence decision. It is not safe for concurrent use;
// the runtime feeds it from a single goroutine.
type machine struct {
	subjectID   string
	browserMode bool
	retryDelay  time.Duration
	now         func() time.Time
	fx          effects

	alive            bool
	notLinked        bool
	pollInFlight     bool
	reconnectPending bool
	socket           SocketState
	heartbeat        time.Duration
	st               state
}

func newMachine(subjectID string, retryDelay time.Duration, now func() time.Time, fx effects) *machine {
	return &machine{
		subjectID:   subjectID,
		browserMode: IsPlaceholderSubject(subjectID),
		retryDelay:  retryDelay,
		now:         now,
		fx:          fx,
	}
}

func (m *machine) handle(ev event) {
	switch e := ev.(type) {
	case mountEvent:
		m.mount()
	case unmountEvent:
		m.unmount()
	case pollTickEvent:
		m.poll()
	case triggerEvent:
		m.poll()
	case networkEvent:
		if m.browserMode {
			m.setState(browserState(e.online))
			return
		}
		m.poll()
	case pollResultEvent:
		m.pollResult(e.presence, e.err)
	case socketOpenEvent:
		m.socketOpened()
	case socketFrameEvent:
		m.socketFrame(e.frame)
	case heartbeatEvent:
		if m.socket == StateSubscribed {
			m.fx.send(heartbeatFrame())
		}
	case socketLostEvent:
		m.socketLost()
	case reconnectEvent:
		m.reconnectPending = false
		if !m.active() {
			return
		}
		m.connect()
		m.poll()
	}
}

// wantsSocket reports whether a freshly dialled connection should be kept.
func (m *machine) wantsSocket() bool {
	return m.active() && m.socket == StateConnecting
}

func (m *machine) active() bool {
	return m.alive && !m.notLinked && !m.browserMode
}

func (m *machine) mount() {
	if m.alive {
		return
	}
	m.alive = true
	if m.browserMode {
		m.setState(browserState(m.fx.online()))
		return
	}
	m.fx.startPolling()
	m.poll()
	m.connect()
}

func (m *machine) unmount() {
	if !m.alive {
		return
	}
	m.alive = false
	m.fx.stopPolling()
	m.teardownSocket()
}

func (m *machine) poll() {
	if !m.active() || m.pollInFlight {
		return
	}
	m.pollInFlight = true
	m.fx.poll()
}

func (m *machine) pollResult(p *Presence, err error) {
	m.pollInFlight = false
	if !m.active() {
		return
	}

	var invalid *ValidationError
	switch {
	case errors.Is(err, ErrNotLinked):
		logging.L().Warn("presence subject is not linked to relay", "subject_id", m.subjectID)
		m.notLinked = true
		m.fx.stopPolling()
		m.teardownSocket()
		m.setState(state{availability: AvailabilityNotLinked, source: SourceProvider})
	case errors.As(err, &invalid):
		logging.L().Debug("ignoring presence poll payload", "error", err)
	case err != nil:
		logging.L().Debug("presence poll failed", "error", err)
		m.setFailure()
	default:
		m.setState(normalize(p, m.subjectID, m.now()))
	}
}

// setFailure marks the provider unreachable while keeping the last avatar.
func (m *machine) setFailure() {
	next := state{
		availability:          AvailabilityUnavailable,
		source:                SourceProvider,
		avatarURL:             m.st.avatarURL,
		decorationURL:         m.st.decorationURL,
		decorationFallbackURL: m.st.decorationFallbackURL,
	}
	if !m.fx.online() {
		next.availability = AvailabilityBrowserOffline
		next.source = SourceBrowser
	}
	m.setState(next)
}

func (m *machine) connect() {
	if m.socket == StateConnecting || m.socket == StateSubscribed {
		return
	}
	m.socket = StateConnecting
	m.fx.dial()
}

func (m *machine) socketOpened() {
	if !m.wantsSocket() {
		m.fx.closeSocket()
		return
	}
	m.fx.cancelReconnect()
	m.reconnectPending = false
	m.socket = StateSubscribed
	m.fx.send(subscribeFrame(m.subjectID))
	m.poll()
}

func (m *machine) socketFrame(f Frame) {
	if m.socket != StateSubscribed || !m.active() {
		return
	}
	if f.Op == opHello {
		m.heartbeat = heartbeatInterval(f)
		m.fx.send(subscribeFrame(m.subjectID))
		m.fx.startHeartbeat(m.heartbeat)
		return
	}
	if p := presenceFromFrame(f, m.subjectID); p != nil {
		m.setState(normalize(p, m.subjectID, m.now()))
	}
}

func (m *machine) socketLost() {
	m.fx.stopHeartbeat()
	m.heartbeat = 0
	if !m.active() {
		m.socket = StateDisconnected
		return
	}
	m.socket = StateDegraded
	m.fx.closeSocket()
	m.scheduleReconnect()
}

func (m *machine) scheduleReconnect() {
	if !m.active() || m.reconnectPending {
		return
	}
	m.reconnectPending = true
	m.fx.scheduleReconnect(m.retryDelay)
}

func (m *machine) teardownSocket() {
	m.fx.cancelReconnect()
	m.reconnectPending = false
	m.fx.stopHeartbeat()
	m.heartbeat = 0
	m.fx.closeSocket()
	m.socket = StateDisconnected
}

func (m *machine) setState(st state) {
	m.st = st
	m.fx.publish(st)
}
