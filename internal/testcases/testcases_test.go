package testcases

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }

func loopbackConfig(t *testing.T, heartbeatSec int) *config.Config {
	t.Helper()
	port := freePort(t)
	cfg := &config.Config{
		Defaults: config.DefaultsConfig{
			WaitTimeoutSec: 5,
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
				HeartbeatIntervalSec: intPtr(heartbeatSec),
			},
			{
				Name:                 "server-1",
				Role:                 "server",
				PeerRole:             "client",
				Host:                 "127.0.0.1",
				Port:                 port,
				ActsAsServer:         true,
				HeartbeatIntervalSec: intPtr(heartbeatSec),
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func runCase(t *testing.T, name string, cfg *config.Config) controller.Result {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	require.NoError(t, err)

	tc, err := Get(name, cfg)
	require.NoError(t, err)
	return controller.NewRunner(cfg, logger, nil).Run(tc)
}

func TestRegistry(t *testing.T) {
	cfg := loopbackConfig(t, 30)

	for _, name := range Names() {
		tc, err := Get(name, cfg)
		require.NoError(t, err, name)
		assert.Equal(t, name, tc.ID())
		assert.NotEmpty(t, tc.Description())
		assert.NotEmpty(t, Describe(name, cfg))
	}

	_, err := Get("nope", cfg)
	var unknown *UnknownTestCaseError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
	assert.Empty(t, Describe("nope", cfg))
}

func TestCaseWiring(t *testing.T) {
	cfg := loopbackConfig(t, 30)
	tc := NewLogonCase(cfg)
	assert.Equal(t, []string{"client-1"}, tc.Clients())
	assert.Equal(t, []string{"server-1"}, tc.Servers())
}

func TestLogonCase(t *testing.T) {
	result := runCase(t, "logon", loopbackConfig(t, 30))
	require.NoError(t, result.Err)
	assert.Equal(t, controller.Passed, result.Outcome)
}

func TestLogonLogoutCase(t *testing.T) {
	result := runCase(t, "logon-logout", loopbackConfig(t, 30))
	require.NoError(t, result.Err)
	assert.Equal(t, controller.Passed, result.Outcome)
}

func TestHeartbeatCase(t *testing.T) {
	result := runCase(t, "heartbeat", loopbackConfig(t, 1))
	require.NoError(t, result.Err)
	assert.Equal(t, controller.Passed, result.Outcome)
}

func TestHeartbeatCaseFilteredConnections(t *testing.T) {
	cfg := loopbackConfig(t, 1)
	for i := range cfg.Connections {
		cfg.Connections[i].FilterHeartbeat = boolPtr(true)
	}
	result := runCase(t, "heartbeat", cfg)
	require.NoError(t, result.Err)
	assert.Equal(t, controller.Passed, result.Outcome)
}

func TestLogonCaseInterruptedMidWait(t *testing.T) {
	// a bare listener accepts the dial but never answers the Logon
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	cfg := &config.Config{
		Defaults: config.DefaultsConfig{
			WaitTimeoutSec: 10,
			LogLevel:       "silent",
		},
		Roles: map[string]config.RoleConfig{
			"client": {CompID: "FixClient"},
			"server": {CompID: "FixServer"},
		},
		Protocol: config.ProtocolConfig{Version: "FIX.4.2"},
		Connections: []config.ConnectionConfig{
			{
				Name:     "client-1",
				Role:     "client",
				PeerRole: "server",
				Host:     "127.0.0.1",
				Port:     l.Addr().(*net.TCPAddr).Port,
			},
		},
	}
	require.NoError(t, cfg.Validate())

	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	require.NoError(t, err)
	runner := controller.NewRunner(cfg, logger, nil)

	go func() {
		time.Sleep(200 * time.Millisecond)
		runner.Interrupt("operator abort")
	}()

	tc, err := Get("logon", cfg)
	require.NoError(t, err)
	result := runner.Run(tc)
	assert.Equal(t, controller.Interrupted, result.Outcome)
}

func TestOrderFlowCase(t *testing.T) {
	result := runCase(t, "order-flow", loopbackConfig(t, 30))
	require.NoError(t, result.Err)
	assert.Equal(t, controller.Passed, result.Outcome)
}
