package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
)

func newTestSession() *Session {
	return New(Config{
		Name:              "client-9940",
		SenderCompID:      "FixClient",
		TargetCompID:      "FixServer",
		ProtocolVersion:   "FIX.4.2",
		HeartbeatInterval: 5 * time.Second,
	})
}

func inbound(seq int, msgType string, fields ...fix.Field) *fix.Message {
	m := fix.NewMessage(
		fix.F(fix.TagBeginString, "FIX.4.2"),
		fix.F(fix.TagMsgType, msgType),
		fix.F(fix.TagMsgSeqNum, seq),
	)
	for _, f := range fields {
		m.Set(f.Tag, string(f.Value))
	}
	return m
}

func TestLifecycleStates(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, Disconnected, s.State())

	s.OnConnected()
	assert.Equal(t, Connected, s.State())

	_, err := s.HandleReceived(inbound(1, fix.MsgTypeLogon))
	require.NoError(t, err)
	assert.Equal(t, LoggedOn, s.State())

	_, err = s.HandleReceived(inbound(2, fix.MsgTypeLogout))
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, s.State())

	s.OnDisconnected()
	assert.Equal(t, Disconnected, s.State())
}

func TestPrepareSendStampsSessionFields(t *testing.T) {
	s := newTestSession()
	s.OnConnected()

	m := fix.NewMessage(fix.F(fix.TagMsgType, fix.MsgTypeLogon))
	s.PrepareSend(m)

	assert.True(t, m.Verify([]fix.TagValue{
		{Tag: fix.TagMsgSeqNum, Value: "1"},
		{Tag: fix.TagSenderCompID, Value: "FixClient"},
		{Tag: fix.TagTargetCompID, Value: "FixServer"},
	}, []int{fix.TagSendingTime}, nil))

	// the counter advances on every send
	m2 := fix.NewMessage(fix.F(fix.TagMsgType, fix.MsgTypeHeartbeat))
	s.PrepareSend(m2)
	seq, _ := m2.GetInt(fix.TagMsgSeqNum)
	assert.Equal(t, 2, seq)
	assert.Equal(t, 2, s.OutgoingSeqNum())
}

func TestPrepareSendKeepsExplicitCompIDs(t *testing.T) {
	s := newTestSession()
	s.OnConnected()

	m := fix.NewMessage(
		fix.F(fix.TagMsgType, fix.MsgTypeLogon),
		fix.F(fix.TagSenderCompID, "Override"),
	)
	s.PrepareSend(m)

	sender, _ := m.Get(fix.TagSenderCompID)
	assert.Equal(t, "Override", sender)
}

func TestSequenceMonotonicity(t *testing.T) {
	s := newTestSession()
	s.OnConnected()

	// the first message seeds the expectation, whatever its value
	_, err := s.HandleReceived(inbound(5, fix.MsgTypeLogon))
	require.NoError(t, err)
	assert.Equal(t, 5, s.IncomingSeqNum())

	for seq := 6; seq <= 8; seq++ {
		_, err := s.HandleReceived(inbound(seq, fix.MsgTypeHeartbeat))
		require.NoError(t, err)
	}
	assert.Equal(t, 8, s.IncomingSeqNum())

	_, err = s.HandleReceived(inbound(10, fix.MsgTypeHeartbeat))
	var gap errors.SequenceGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, 9, gap.Expected)
	assert.Equal(t, 10, gap.Received)
}

func TestVersionMismatch(t *testing.T) {
	s := newTestSession()
	s.OnConnected()

	m := inbound(1, fix.MsgTypeLogon)
	m.Set(fix.TagBeginString, "FIX.4.4")

	_, err := s.HandleReceived(m)
	var decErr errors.DecodingError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, fix.TagBeginString, decErr.Tag)
}

func TestTestRequestReflex(t *testing.T) {
	s := newTestSession()
	s.OnConnected()
	_, err := s.HandleReceived(inbound(1, fix.MsgTypeLogon))
	require.NoError(t, err)

	reply, err := s.HandleReceived(inbound(2, fix.MsgTypeTestRequest, fix.F(fix.TagTestReqID, "T1")))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.True(t, reply.Verify([]fix.TagValue{
		{Tag: fix.TagMsgType, Value: fix.MsgTypeHeartbeat},
		{Tag: fix.TagTestReqID, Value: "T1"},
		{Tag: fix.TagSenderCompID, Value: "FixClient"},
		{Tag: fix.TagTargetCompID, Value: "FixServer"},
	}, nil, nil))

	// ordinary messages produce no auto-reply
	reply, err = s.HandleReceived(inbound(3, fix.MsgTypeHeartbeat))
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestConnectionResetsSequenceNumbers(t *testing.T) {
	s := newTestSession()
	s.OnConnected()
	s.PrepareSend(fix.NewMessage(fix.F(fix.TagMsgType, fix.MsgTypeLogon)))
	_, err := s.HandleReceived(inbound(1, fix.MsgTypeLogon))
	require.NoError(t, err)

	s.OnDisconnected()
	s.OnConnected()
	assert.Equal(t, 0, s.OutgoingSeqNum())
	assert.Equal(t, 0, s.IncomingSeqNum())

	m := fix.NewMessage(fix.F(fix.TagMsgType, fix.MsgTypeLogon))
	s.PrepareSend(m)
	seq, _ := m.GetInt(fix.TagMsgSeqNum)
	assert.Equal(t, 1, seq)
}

func TestTickDisarmed(t *testing.T) {
	s := newTestSession()
	s.OnConnected()

	due, err := s.Tick()
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestTickEmitsHeartbeatAndTestRequest(t *testing.T) {
	s := newTestSession()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.OnConnected()
	s.StartHeartbeat(true)

	// inside the interval: nothing due
	clock = clock.Add(2 * time.Second)
	due, err := s.Tick()
	require.NoError(t, err)
	assert.Empty(t, due)

	// past the interval with no traffic either way: one Heartbeat and
	// one TestRequest are due
	clock = clock.Add(4 * time.Second)
	due, err = s.Tick()
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, fix.MsgTypeHeartbeat, due[0].MsgType())
	assert.Equal(t, fix.MsgTypeTestRequest, due[1].MsgType())
	assert.True(t, due[1].Has(fix.TagTestReqID))

	// the TestRequest stays pending; no duplicate on the next tick
	clock = clock.Add(time.Second)
	due, err = s.Tick()
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, fix.MsgTypeHeartbeat, due[0].MsgType())
}

func TestTickPendingTestRequestAnswered(t *testing.T) {
	s := newTestSession()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.OnConnected()
	s.StartHeartbeat(true)

	clock = clock.Add(6 * time.Second)
	due, err := s.Tick()
	require.NoError(t, err)
	require.Len(t, due, 2)
	id, _ := due[1].Get(fix.TagTestReqID)

	// peer answers with a Heartbeat carrying the same TestReqID
	_, err = s.HandleReceived(inbound(1, fix.MsgTypeHeartbeat, fix.F(fix.TagTestReqID, id)))
	require.NoError(t, err)

	// well past the response deadline: no liveness failure
	clock = clock.Add(20 * time.Second)
	_, err = s.Tick()
	require.NoError(t, err)
}

func TestTickTestRequestTimeout(t *testing.T) {
	s := newTestSession()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.OnConnected()
	s.StartHeartbeat(true)

	clock = clock.Add(6 * time.Second)
	_, err := s.Tick()
	require.NoError(t, err)

	// no answer within twice the interval
	clock = clock.Add(11 * time.Second)
	_, err = s.Tick()
	var connErr errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "client-9940", connErr.Name)
}
