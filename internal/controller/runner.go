package controller

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/logging"
	"github.com/tturner/fixtest/internal/session"
	"github.com/tturner/fixtest/internal/transport"
)

// Outcome classifies how a test run ended.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "ok"
	case Interrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

// Result is the report for one test case run.
type Result struct {
	TestID   string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Runner establishes a test case's connections, executes its body and
// classifies the outcome. A connection failing mid-run interrupts the
// whole test so no wait blocks until its full timeout.
type Runner struct {
	cfg *config.Config
	log *logging.Logger
	rec transport.Recorder

	interrupt chan struct{}
	intOnce   sync.Once
}

func NewRunner(cfg *config.Config, logger *logging.Logger, rec transport.Recorder) *Runner {
	return &Runner{
		cfg:       cfg,
		log:       logger,
		rec:       rec,
		interrupt: make(chan struct{}),
	}
}

// Interrupt aborts the run: every outstanding and future wait fails
// immediately. Safe to call from any goroutine, once or many times.
func (r *Runner) Interrupt(reason string) {
	r.intOnce.Do(func() {
		r.log.Error("run interrupted: %s", reason)
		close(r.interrupt)
	})
}

// Run executes one test case end to end.
func (r *Runner) Run(tc TestCase) Result {
	start := time.Now()
	r.log.Info("test %s: %s", tc.ID(), tc.Description())

	factory := transport.NewFactory(r.cfg.Dictionary(), transport.Options{
		Logger:    r.log,
		Recorder:  r.rec,
		Interrupt: r.interrupt,
		FilterFor: r.filterFor,
		OnClosed: func(name string, err error) {
			if err != nil {
				r.Interrupt(fmt.Sprintf("connection %s failed: %v", name, err))
			}
		},
	})
	defer factory.Close()

	env := &Env{
		Config:     r.cfg,
		Logger:     r.log,
		timeout:    r.cfg.WaitTimeout(),
		interrupt:  r.interrupt,
		transports: map[string]*transport.Transport{},
	}

	err := r.establish(tc, factory, env)
	if err == nil {
		err = r.execute(tc, env)
	}
	factory.Close()

	result := Result{
		TestID:   tc.ID(),
		Err:      err,
		Duration: time.Since(start),
	}
	switch {
	case err == nil:
		result.Outcome = Passed
	case isInterrupted(err):
		result.Outcome = Interrupted
	default:
		result.Outcome = Failed
	}

	if result.Outcome == Passed {
		r.log.Info("test %s passed in %v", tc.ID(), result.Duration.Round(time.Millisecond))
		fmt.Println("Test status: ok")
	} else {
		r.log.Error("test %s %s: %v", tc.ID(), result.Outcome, err)
		fmt.Println("Test status: failed")
	}
	return result
}

func (r *Runner) filterFor(name string) bool {
	// accepted server connections may carry a #n suffix
	for _, conn := range r.cfg.Connections {
		if name == conn.Name || (len(name) > len(conn.Name) && name[:len(conn.Name)+1] == conn.Name+"#") {
			return conn.HeartbeatFiltered()
		}
	}
	return true
}

// establish brings up the listeners, dials the clients, then waits for
// one accepted connection per server.
func (r *Runner) establish(tc TestCase, factory *transport.Factory, env *Env) error {
	timeout := r.cfg.WaitTimeout()
	var listeners []*transport.Listener

	for _, name := range tc.Servers() {
		conn, ok := r.cfg.GetConnection(name)
		if !ok {
			return fmt.Errorf("test %s: unknown connection %q", tc.ID(), name)
		}
		accepted := 0
		l, err := factory.Listen(name, conn.Addr(), func() *session.Session {
			accepted++
			sc := r.cfg.SessionConfig(conn)
			if accepted > 1 {
				sc.Name = fmt.Sprintf("%s#%d", conn.Name, accepted)
			}
			return session.New(sc)
		})
		if err != nil {
			return err
		}
		listeners = append(listeners, l)
	}

	for _, name := range tc.Clients() {
		conn, ok := r.cfg.GetConnection(name)
		if !ok {
			return fmt.Errorf("test %s: unknown connection %q", tc.ID(), name)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		t, err := factory.Connect(ctx, conn.Addr(), session.New(r.cfg.SessionConfig(conn)))
		cancel()
		if err != nil {
			return err
		}
		env.transports[name] = t
	}

	for _, l := range listeners {
		t, err := l.Accept(timeout, r.interrupt)
		if err != nil {
			return err
		}
		env.transports[l.Name()] = t
	}
	return nil
}

// execute runs Setup, Run and Teardown, recovering panics so an
// assertion failure reports instead of crashing the process.
func (r *Runner) execute(tc TestCase, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", p)
			}
			r.log.Debug("test %s panic:\n%s", tc.ID(), debug.Stack())
		}
	}()

	if err := tc.Setup(env); err != nil {
		return err
	}
	defer func() {
		if tdErr := r.teardown(tc, env); tdErr != nil && err == nil {
			err = tdErr
		}
	}()
	return tc.Run(env)
}

func (r *Runner) teardown(tc TestCase, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("teardown panic: %v", p)
			}
		}
	}()
	return tc.Teardown(env)
}

func isInterrupted(err error) bool {
	var intErr errors.TestInterruptedError
	return stderrors.As(err, &intErr)
}
