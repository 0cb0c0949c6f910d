package testcases

// Built-in test cases, looked up by name

import (
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
)

// Get returns a test case by name, wired to the connections the
// configuration defines.
func Get(name string, cfg *config.Config) (controller.TestCase, error) {
	switch name {
	case "logon":
		return NewLogonCase(cfg), nil
	case "logon-logout":
		return NewLogonLogoutCase(cfg), nil
	case "heartbeat":
		return NewHeartbeatCase(cfg), nil
	case "order-flow":
		return NewOrderFlowCase(cfg), nil
	default:
		return nil, &UnknownTestCaseError{Name: name}
	}
}

// Names lists the built-in test cases in run order.
func Names() []string {
	return []string{"logon", "logon-logout", "heartbeat", "order-flow"}
}

// Describe returns the one-line description for a named test case.
func Describe(name string, cfg *config.Config) string {
	tc, err := Get(name, cfg)
	if err != nil {
		return ""
	}
	return tc.Description()
}

// UnknownTestCaseError represents an error for unknown test case names.
type UnknownTestCaseError struct {
	Name string
}

func (e *UnknownTestCaseError) Error() string {
	return "unknown test case: " + e.Name
}
