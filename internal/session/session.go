package session

// Per-connection FIX session engine: sequence numbers, the
// Logon/Logout/Heartbeat/TestRequest state machine, and the decision
// of when to auto-generate housekeeping messages.

import (
	"fmt"
	"sync"
	"time"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
)

// State is the connection's position in the session lifecycle.
type State int

const (
	Disconnected State = iota
	Connected
	LoggedOn
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case LoggedOn:
		return "logged-on"
	case LoggedOut:
		return "logged-out"
	default:
		return "disconnected"
	}
}

// Config carries the identity and protocol parameters of one session.
type Config struct {
	Name              string
	SenderCompID      string
	TargetCompID      string
	ProtocolVersion   string
	HeartbeatInterval time.Duration
}

// Session owns the sequence numbers and handshake state for one
// connection. All mutation happens on the transport's receive/send
// paths; test bodies only read through the accessor methods.
type Session struct {
	mu  sync.Mutex
	cfg Config

	state       State
	sendSeq     int
	recvSeq     int // last MsgSeqNum seen from the peer, 0 until the first
	heartbeatOn bool

	pendingTestReqID string
	testReqSentAt    time.Time
	lastSent         time.Time
	lastReceived     time.Time

	now func() time.Time
}

// New creates a session in the Disconnected state.
func New(cfg Config) *Session {
	return &Session{cfg: cfg, now: time.Now}
}

// Name returns the connection name this session belongs to.
func (s *Session) Name() string { return s.cfg.Name }

// SenderCompID returns this endpoint's comp id.
func (s *Session) SenderCompID() string { return s.cfg.SenderCompID }

// TargetCompID returns the peer's comp id.
func (s *Session) TargetCompID() string { return s.cfg.TargetCompID }

// HeartbeatInterval returns the configured heartbeat interval.
func (s *Session) HeartbeatInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.HeartbeatInterval
}

// SetHeartbeatInterval changes the heartbeat interval. Zero disables
// heartbeat emission regardless of the armed flag.
func (s *Session) SetHeartbeatInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.HeartbeatInterval = d
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OutgoingSeqNum returns the sequence number of the last sent message.
func (s *Session) OutgoingSeqNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendSeq
}

// IncomingSeqNum returns the last sequence number seen from the peer.
func (s *Session) IncomingSeqNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvSeq
}

// StartHeartbeat arms or disarms automatic heartbeat emission. Tests
// own the logon handshake, so this stays off until the test body arms
// it after Logon completes.
func (s *Session) StartHeartbeat(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeatOn = on
	if on {
		now := s.now()
		s.lastSent = now
		s.lastReceived = now
	}
}

// HeartbeatEnabled reports whether automatic heartbeats are armed.
func (s *Session) HeartbeatEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeatOn
}

// OnConnected moves the session into the Connected state. Sequence
// numbers reset; a new connection starts a new numbered conversation.
func (s *Session) OnConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Connected
	s.sendSeq = 0
	s.recvSeq = 0
	s.pendingTestReqID = ""
	now := s.now()
	s.lastSent = now
	s.lastReceived = now
}

// OnDisconnected tears the session state down.
func (s *Session) OnDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
	s.heartbeatOn = false
	s.pendingTestReqID = ""
}

// PrepareSend stamps the session fields onto an outbound message:
// MsgSeqNum, SenderCompID, TargetCompID and SendingTime. The sequence
// number increments on every call.
func (s *Session) PrepareSend(m *fix.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendSeq++
	now := s.now()
	m.Set(fix.TagMsgSeqNum, s.sendSeq)
	if !m.Has(fix.TagSenderCompID) {
		m.Set(fix.TagSenderCompID, s.cfg.SenderCompID)
	}
	if !m.Has(fix.TagTargetCompID) {
		m.Set(fix.TagTargetCompID, s.cfg.TargetCompID)
	}
	m.Set(fix.TagSendingTime, fix.FormatSendingTime(now))
	s.lastSent = now
}

// HandleReceived applies one inbound message to the session state:
// sequence checking, lifecycle transitions, and the TestRequest reflex.
// The returned message, when non-nil, is a housekeeping reply the
// transport must send (a Heartbeat answering a TestRequest).
func (s *Session) HandleReceived(m *fix.Message) (*fix.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version, ok := m.Get(fix.TagBeginString); ok && version != s.cfg.ProtocolVersion {
		return nil, errors.DecodingError{
			Kind:   errors.DecodeMalformed,
			Tag:    fix.TagBeginString,
			Reason: fmt.Sprintf("version mismatch: expect %s, received %s", s.cfg.ProtocolVersion, version),
		}
	}

	if seq, ok := m.GetInt(fix.TagMsgSeqNum); ok {
		if s.recvSeq != 0 && seq != s.recvSeq+1 {
			return nil, errors.SequenceGapError{Expected: s.recvSeq + 1, Received: seq}
		}
		s.recvSeq = seq
	}
	s.lastReceived = s.now()

	switch m.MsgType() {
	case fix.MsgTypeLogon:
		if s.state == Connected {
			s.state = LoggedOn
		}
	case fix.MsgTypeLogout:
		if s.state == LoggedOn {
			s.state = LoggedOut
		}
	case fix.MsgTypeHeartbeat:
		// a Heartbeat answering our TestRequest clears the pending marker
		if id, ok := m.Get(fix.TagTestReqID); ok && id == s.pendingTestReqID {
			s.pendingTestReqID = ""
		}
	case fix.MsgTypeTestRequest:
		id, _ := m.Get(fix.TagTestReqID)
		return fix.NewMessage(
			fix.F(fix.TagMsgType, fix.MsgTypeHeartbeat),
			fix.F(fix.TagTestReqID, id),
			fix.F(fix.TagSenderCompID, s.cfg.SenderCompID),
			fix.F(fix.TagTargetCompID, s.cfg.TargetCompID),
		), nil
	}

	return nil, nil
}

// Tick runs the heartbeat timer logic. It returns any housekeeping
// messages due for sending: a Heartbeat when nothing has been sent for
// the interval, and a TestRequest when nothing has been received for
// the interval. An unanswered TestRequest older than twice the interval
// is a liveness failure.
func (s *Session) Tick() ([]*fix.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.heartbeatOn || s.cfg.HeartbeatInterval <= 0 {
		return nil, nil
	}

	now := s.now()

	if s.pendingTestReqID != "" && now.Sub(s.testReqSentAt) > 2*s.cfg.HeartbeatInterval {
		return nil, errors.ConnectionError{
			Name: s.cfg.Name,
			Err:  fmt.Errorf("testrequest %s not answered within %v", s.pendingTestReqID, 2*s.cfg.HeartbeatInterval),
		}
	}

	var due []*fix.Message

	if now.Sub(s.lastSent) > s.cfg.HeartbeatInterval {
		due = append(due, fix.NewMessage(
			fix.F(fix.TagMsgType, fix.MsgTypeHeartbeat),
			fix.F(fix.TagSenderCompID, s.cfg.SenderCompID),
			fix.F(fix.TagTargetCompID, s.cfg.TargetCompID),
		))
	}

	if s.pendingTestReqID == "" && now.Sub(s.lastReceived) > s.cfg.HeartbeatInterval {
		id := "TR" + now.Format("15:04:05.000000")
		s.pendingTestReqID = id
		s.testReqSentAt = now
		due = append(due, fix.NewMessage(
			fix.F(fix.TagMsgType, fix.MsgTypeTestRequest),
			fix.F(fix.TagTestReqID, id),
			fix.F(fix.TagSenderCompID, s.cfg.SenderCompID),
			fix.F(fix.TagTargetCompID, s.cfg.TargetCompID),
		))
	}

	return due, nil
}
