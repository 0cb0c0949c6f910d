package controller

// TestCase interface and the Base helper test cases embed

// A TestCase drives one scripted FIX conversation. Servers and
// Clients name the configured connections the runner must establish
// before Run; Run is the synchronous test body.
type TestCase interface {
	ID() string
	Description() string
	Servers() []string
	Clients() []string
	Setup(env *Env) error
	Run(env *Env) error
	Teardown(env *Env) error
}

// Base carries the declarative half of a test case. Embed it and
// override Run; Setup and Teardown default to no-ops.
type Base struct {
	TestID          string
	TestDescription string
	ServerNames     []string
	ClientNames     []string
}

func (b Base) ID() string          { return b.TestID }
func (b Base) Description() string { return b.TestDescription }
func (b Base) Servers() []string   { return b.ServerNames }
func (b Base) Clients() []string   { return b.ClientNames }

func (b Base) Setup(env *Env) error    { return nil }
func (b Base) Teardown(env *Env) error { return nil }
