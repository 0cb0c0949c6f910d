package controller

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/logging"
	"github.com/tturner/fixtest/internal/transport"
)

// Env is what a test body sees: the established connections by name,
// the run configuration, and the logger.
type Env struct {
	Config *config.Config
	Logger *logging.Logger

	timeout    time.Duration
	interrupt  <-chan struct{}
	transports map[string]*transport.Transport
}

// Transport returns the connection registered under name.
func (e *Env) Transport(name string) (*transport.Transport, error) {
	t, ok := e.transports[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", name)
	}
	return t, nil
}

// Send stamps and sends a message on the named connection.
func (e *Env) Send(name string, m *fix.Message) error {
	t, err := e.Transport(name)
	if err != nil {
		return err
	}
	return t.SendMessage(m)
}

// WaitForMessage blocks for the next message on the named connection,
// up to the configured wait timeout.
func (e *Env) WaitForMessage(name, title string) (*fix.Message, error) {
	t, err := e.Transport(name)
	if err != nil {
		return nil, err
	}
	return t.WaitForMessage(title, e.timeout)
}

// ExpectTimeout waits on the named connection and succeeds only when
// nothing arrives within d. A message arriving is the failure case.
func (e *Env) ExpectTimeout(name, title string, d time.Duration) error {
	t, err := e.Transport(name)
	if err != nil {
		return err
	}
	m, err := t.WaitForMessage(title, d)
	if err == nil {
		return fmt.Errorf("%s: expected silence, received %s", title, m.Describe())
	}
	var timeoutErr errors.TestTimeoutError
	if stderrors.As(err, &timeoutErr) {
		return nil
	}
	return err
}

// StartHeartbeat arms or disarms the heartbeat timer on the named
// connection.
func (e *Env) StartHeartbeat(name string, on bool) error {
	t, err := e.Transport(name)
	if err != nil {
		return err
	}
	t.StartHeartbeat(on)
	return nil
}

// CloseConnection drops the named connection mid-test.
func (e *Env) CloseConnection(name string) error {
	t, err := e.Transport(name)
	if err != nil {
		return err
	}
	return t.Close()
}

// WaitTimeout returns the per-wait deadline for this run.
func (e *Env) WaitTimeout() time.Duration { return e.timeout }

// Interrupted reports whether the run has been aborted.
func (e *Env) Interrupted() bool {
	select {
	case <-e.interrupt:
		return true
	default:
		return false
	}
}
