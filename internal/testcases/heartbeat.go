package testcases

import (
	"time"

	"github.com/tturner/fixtest/internal/asserts"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/session"
)

// HeartbeatCase arms the heartbeat timers and verifies the session
// stays alive across quiet intervals. When the client connection
// filters housekeeping the conversation must be silent; otherwise the
// timed heartbeats themselves are expected on the queues.
type HeartbeatCase struct {
	controller.Base
	client, server string
	interval       time.Duration
	filtered       bool
}

func NewHeartbeatCase(cfg *config.Config) *HeartbeatCase {
	client, server := endpoints(cfg)
	interval := 30 * time.Second
	filtered := false
	if conn, ok := cfg.GetConnection(client); ok {
		interval = conn.HeartbeatInterval()
		filtered = conn.HeartbeatFiltered()
	}
	return &HeartbeatCase{
		Base: controller.Base{
			TestID:          "heartbeat",
			TestDescription: "session stays alive across quiet heartbeat intervals",
			ClientNames:     nameList(client),
			ServerNames:     nameList(server),
		},
		client:   client,
		server:   server,
		interval: interval,
		filtered: filtered,
	}
}

func isHousekeeping(m *fix.Message) bool {
	return m.MsgType() == fix.MsgTypeHeartbeat || m.MsgType() == fix.MsgTypeTestRequest
}

func (tc *HeartbeatCase) Run(env *controller.Env) error {
	if err := logon(env, tc.client, tc.server); err != nil {
		return err
	}

	ct, err := env.Transport(tc.client)
	if err != nil {
		return err
	}
	before := ct.Session().OutgoingSeqNum()

	if err := env.StartHeartbeat(tc.client, true); err != nil {
		return err
	}
	if tc.server != "" {
		if err := env.StartHeartbeat(tc.server, true); err != nil {
			return err
		}
	}

	if tc.filtered {
		// housekeeping is hidden from the queue; the conversation should
		// be silent while the timers keep the session alive underneath
		quiet := 2*tc.interval + time.Second
		if err := env.ExpectTimeout(tc.client, "quiet interval", quiet); err != nil {
			return err
		}
	} else {
		deadline := tc.interval + env.WaitTimeout()
		if tc.server != "" {
			st, err := env.Transport(tc.server)
			if err != nil {
				return err
			}
			m, err := st.WaitForMessage("client heartbeat", deadline)
			if err != nil {
				return err
			}
			asserts.True(isHousekeeping(m), "housekeeping message")
		}
		m, err := ct.WaitForMessage("peer heartbeat", deadline)
		if err != nil {
			return err
		}
		asserts.True(isHousekeeping(m), "housekeeping message")
	}

	asserts.Equal(ct.Session().State(), session.LoggedOn)
	if tc.filtered || tc.server != "" {
		asserts.True(ct.Session().OutgoingSeqNum() > before, "heartbeats were sent")
	}
	return nil
}
