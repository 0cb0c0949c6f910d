package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/session"
)

// Factory owns every connection a test run creates: it dials the
// client side, listens for the server side, and closes the lot when
// the run ends. All transports share one dictionary and one set of
// options.
type Factory struct {
	dict *fix.Dictionary
	opts Options

	mu         sync.Mutex
	listeners  []*Listener
	transports []*Transport
	closed     bool
}

func NewFactory(dict *fix.Dictionary, opts Options) *Factory {
	return &Factory{dict: dict, opts: opts}
}

// Connect dials addr and wraps the connection for sess.
func (f *Factory) Connect(ctx context.Context, addr string, sess *session.Session) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.ConnectionError{Name: sess.Name(), Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	t := New(conn, sess, f.dict, f.opts)
	if !f.track(t) {
		t.Close()
		return nil, errors.ConnectionError{Name: sess.Name(), Err: net.ErrClosed}
	}
	return t, nil
}

// Listen binds addr and accepts connections in the background. Each
// accepted connection gets its own session from newSession and is
// handed out through Listener.Accept.
func (f *Factory) Listen(name, addr string, newSession func() *session.Session) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.ConnectionError{Name: name, Err: fmt.Errorf("listen %s: %w", addr, err)}
	}

	l := &Listener{
		name:     name,
		ln:       ln,
		factory:  f,
		accepted: make(chan *Transport, 16),
		done:     make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		ln.Close()
		return nil, errors.ConnectionError{Name: name, Err: net.ErrClosed}
	}
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(newSession)

	return l, nil
}

// Transports returns every connection created so far.
func (f *Factory) Transports() []*Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Transport, len(f.transports))
	copy(out, f.transports)
	return out
}

// Close tears down all listeners and connections.
func (f *Factory) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	listeners := f.listeners
	transports := f.transports
	f.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
	for _, t := range transports {
		t.Close()
	}
}

func (f *Factory) track(t *Transport) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.transports = append(f.transports, t)
	return true
}

// Listener accepts server-side connections for one endpoint.
type Listener struct {
	name     string
	ln       net.Listener
	factory  *Factory
	accepted chan *Transport
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func (l *Listener) Name() string { return l.name }

// Addr returns the bound address, useful with port 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept hands out the next established connection, blocking up to
// timeout for one to arrive.
func (l *Listener) Accept(timeout time.Duration, interrupt <-chan struct{}) (*Transport, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case t := <-l.accepted:
		return t, nil
	case <-timer.C:
		return nil, errors.ConnectionTimeoutError{Name: l.name, Timeout: timeout}
	case <-interrupt:
		return nil, errors.TestInterruptedError{}
	case <-l.done:
		return nil, errors.ConnectionLostError{Name: l.name}
	}
}

// Close stops accepting. Established connections stay up; the factory
// closes those.
func (l *Listener) Close() {
	l.once.Do(func() {
		close(l.done)
		l.ln.Close()
	})
	l.wg.Wait()
}

func (l *Listener) acceptLoop(newSession func() *session.Session) {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
			default:
				l.factory.opts.Logger.Error("accept %s: %v", l.name, err)
			}
			return
		}

		t := New(conn, newSession(), l.factory.dict, l.factory.opts)
		if !l.factory.track(t) {
			t.Close()
			return
		}

		select {
		case l.accepted <- t:
		case <-l.done:
			return
		}
	}
}
