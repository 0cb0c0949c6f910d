package controller

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tturner/fixtest/internal/asserts"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/logging"
	"github.com/tturner/fixtest/internal/session"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func boolPtr(b bool) *bool { return &b }

func intPtr(v int) *int { return &v }

func testConfig(t *testing.T, waitSec int) *config.Config {
	t.Helper()
	port := freePort(t)
	cfg := &config.Config{
		Defaults: config.DefaultsConfig{
			WaitTimeoutSec: waitSec,
			LogLevel:       "silent",
		},
		Roles: map[string]config.RoleConfig{
			"client": {CompID: "FixClient"},
			"server": {CompID: "FixServer"},
		},
		Protocol: config.ProtocolConfig{Version: "FIX.4.2"},
		Connections: []config.ConnectionConfig{
			{
				Name:                 "client-1",
				Role:                 "client",
				PeerRole:             "server",
				Host:                 "127.0.0.1",
				Port:                 port,
				HeartbeatIntervalSec: intPtr(30),
			},
			{
				Name:                 "server-1",
				Role:                 "server",
				PeerRole:             "client",
				Host:                 "127.0.0.1",
				Port:                 port,
				ActsAsServer:         true,
				HeartbeatIntervalSec: intPtr(30),
				FilterHeartbeat:      boolPtr(false),
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config) *Runner {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	require.NoError(t, err)
	return NewRunner(cfg, logger, nil)
}

// logonLogoutCase walks the full session lifecycle: logon both ways,
// an order round trip, then logout both ways.
type logonLogoutCase struct {
	Base
	tornDown bool
}

func newLogonLogoutCase() *logonLogoutCase {
	return &logonLogoutCase{
		Base: Base{
			TestID:          "logon-logout",
			TestDescription: "full session lifecycle",
			ServerNames:     []string{"server-1"},
			ClientNames:     []string{"client-1"},
		},
	}
}

func (tc *logonLogoutCase) Run(env *Env) error {
	client, err := env.Transport("client-1")
	if err != nil {
		return err
	}
	server, err := env.Transport("server-1")
	if err != nil {
		return err
	}

	if err := env.Send("client-1", fix.Logon(client.Session())); err != nil {
		return err
	}
	m, err := env.WaitForMessage("server-1", "logon request")
	asserts.Nil(err)
	asserts.MsgType(m, fix.MsgTypeLogon)
	asserts.Tag(m, fix.TagSenderCompID, "FixClient")
	asserts.Tag(m, fix.TagHeartBtInt, "30")

	if err := env.Send("server-1", fix.Logon(server.Session())); err != nil {
		return err
	}
	m, err = env.WaitForMessage("client-1", "logon response")
	asserts.Nil(err)
	asserts.MsgType(m, fix.MsgTypeLogon)

	asserts.Equal(client.Session().State(), session.LoggedOn)
	asserts.Equal(server.Session().State(), session.LoggedOn)

	order := fix.NewOrderSingle(client.Session(), fix.Order{
		Symbol: "MSFT",
		Side:   "1",
	})
	if err := env.Send("client-1", order); err != nil {
		return err
	}
	m, err = env.WaitForMessage("server-1", "new order")
	asserts.Nil(err)
	asserts.MsgType(m, fix.MsgTypeNewOrderSingle)
	asserts.Tag(m, fix.TagSymbol, "MSFT")

	if err := env.Send("client-1", fix.Logout(client.Session())); err != nil {
		return err
	}
	m, err = env.WaitForMessage("server-1", "logout request")
	asserts.Nil(err)
	asserts.MsgType(m, fix.MsgTypeLogout)

	if err := env.Send("server-1", fix.Logout(server.Session())); err != nil {
		return err
	}
	m, err = env.WaitForMessage("client-1", "logout response")
	asserts.Nil(err)
	asserts.MsgType(m, fix.MsgTypeLogout)

	asserts.Equal(client.Session().State(), session.LoggedOut)
	return nil
}

func (tc *logonLogoutCase) Teardown(env *Env) error {
	tc.tornDown = true
	return nil
}

func TestRunnerLogonLogout(t *testing.T) {
	tc := newLogonLogoutCase()
	result := newTestRunner(t, testConfig(t, 5)).Run(tc)
	require.NoError(t, result.Err)
	assert.Equal(t, Passed, result.Outcome)
	assert.True(t, tc.tornDown)
}

type assertingCase struct {
	Base
	body func(env *Env) error
}

func newAssertingCase(body func(env *Env) error) *assertingCase {
	return &assertingCase{
		Base: Base{
			TestID:          "scripted",
			TestDescription: "scripted body",
			ServerNames:     []string{"server-1"},
			ClientNames:     []string{"client-1"},
		},
		body: body,
	}
}

func (tc *assertingCase) Run(env *Env) error { return tc.body(env) }

func TestRunnerAssertionFailure(t *testing.T) {
	tc := newAssertingCase(func(env *Env) error {
		asserts.Equal(1, 2)
		return nil
	})
	result := newTestRunner(t, testConfig(t, 5)).Run(tc)
	assert.Equal(t, Failed, result.Outcome)
	var ae errors.AssertionError
	assert.ErrorAs(t, result.Err, &ae)
}

func TestRunnerWaitTimeout(t *testing.T) {
	tc := newAssertingCase(func(env *Env) error {
		_, err := env.WaitForMessage("client-1", "message that never comes")
		return err
	})
	result := newTestRunner(t, testConfig(t, 1)).Run(tc)
	assert.Equal(t, Failed, result.Outcome)
	var timeoutErr errors.TestTimeoutError
	require.ErrorAs(t, result.Err, &timeoutErr)
	assert.Equal(t, "message that never comes", timeoutErr.Title)
}

func TestRunnerInterrupt(t *testing.T) {
	runner := newTestRunner(t, testConfig(t, 10))
	tc := newAssertingCase(func(env *Env) error {
		_, err := env.WaitForMessage("client-1", "blocked")
		return err
	})

	go func() {
		time.Sleep(100 * time.Millisecond)
		runner.Interrupt("operator abort")
	}()

	start := time.Now()
	result := runner.Run(tc)
	assert.Equal(t, Interrupted, result.Outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunnerPeerFailureInterruptsRun(t *testing.T) {
	tc := newAssertingCase(func(env *Env) error {
		// dropping the peer mid-wait aborts instead of running out the clock
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = env.CloseConnection("server-1")
		}()
		_, err := env.WaitForMessage("client-1", "blocked")
		return err
	})

	result := newTestRunner(t, testConfig(t, 10)).Run(tc)
	assert.NotEqual(t, Passed, result.Outcome)
	assert.Error(t, result.Err)
}

func TestRunnerUnknownConnection(t *testing.T) {
	tc := &assertingCase{
		Base: Base{
			TestID:      "bad-wiring",
			ClientNames: []string{"no-such-conn"},
		},
		body: func(env *Env) error { return nil },
	}
	result := newTestRunner(t, testConfig(t, 2)).Run(tc)
	assert.Equal(t, Failed, result.Outcome)
	assert.ErrorContains(t, result.Err, "unknown connection")
}

func TestRunnerConnectFailure(t *testing.T) {
	cfg := testConfig(t, 1)
	// nobody listens on the client's port when the server half is absent
	tc := &assertingCase{
		Base: Base{
			TestID:      "no-server",
			ClientNames: []string{"client-1"},
		},
		body: func(env *Env) error { return nil },
	}
	result := newTestRunner(t, cfg).Run(tc)
	assert.Equal(t, Failed, result.Outcome)
	var connErr errors.ConnectionError
	assert.ErrorAs(t, result.Err, &connErr)
}

func TestRunnerHeartbeatReachesPeerQueue(t *testing.T) {
	cfg := testConfig(t, 5)
	for i := range cfg.Connections {
		cfg.Connections[i].HeartbeatIntervalSec = intPtr(1)
	}

	tc := newAssertingCase(func(env *Env) error {
		if err := env.StartHeartbeat("client-1", true); err != nil {
			return err
		}
		// the server connection leaves housekeeping unfiltered, so the
		// timed Heartbeat or TestRequest lands on its queue
		m, err := env.WaitForMessage("server-1", "timed heartbeat")
		asserts.Nil(err)
		if m.MsgType() != fix.MsgTypeHeartbeat && m.MsgType() != fix.MsgTypeTestRequest {
			asserts.MsgType(m, fix.MsgTypeHeartbeat)
		}
		return nil
	})

	result := newTestRunner(t, cfg).Run(tc)
	require.NoError(t, result.Err)
	assert.Equal(t, Passed, result.Outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", Passed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "interrupted", Interrupted.String())
}
