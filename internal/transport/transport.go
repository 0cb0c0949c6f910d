package transport

import (
	stderrors "errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
	"github.com/tturner/fixtest/internal/logging"
	"github.com/tturner/fixtest/internal/session"
)

// Recorder receives the raw bytes moving through a connection, for
// packet capture.
type Recorder interface {
	Record(local, remote net.Addr, outbound bool, payload []byte) error
}

// Options configures a Transport beyond its connection and session.
type Options struct {
	// FilterHeartbeat drops Heartbeat and TestRequest messages from the
	// queue so test bodies never see session housekeeping. FilterFor,
	// when set, decides per connection name and wins.
	FilterHeartbeat bool
	FilterFor       func(name string) bool

	Logger   *logging.Logger
	Recorder Recorder

	// Interrupt aborts outstanding WaitForMessage calls when closed.
	Interrupt <-chan struct{}

	// OnClosed runs once when the connection goes away, with the error
	// that ended it (nil for a clean peer disconnect).
	OnClosed func(name string, err error)
}

// Transport couples one established connection to its session state.
// A reader goroutine decodes the inbound byte stream, feeds the
// session engine, and buffers messages on the queue; the test body
// stays synchronous and pulls from the queue with WaitForMessage.
type Transport struct {
	name      string
	conn      net.Conn
	sess      *session.Session
	dict      *fix.Dictionary
	log       *logging.Logger
	rec       Recorder
	queue     *MessageQueue
	filter    bool
	interrupt <-chan struct{}
	onClosed  func(string, error)

	writeMu sync.Mutex
	done    chan struct{}
	closing sync.Once
	failing sync.Once
	hbOnce  sync.Once
	wg      sync.WaitGroup
}

// New wraps an established connection and starts its reader. The
// session transitions to Connected.
func New(conn net.Conn, sess *session.Session, dict *fix.Dictionary, opts Options) *Transport {
	filter := opts.FilterHeartbeat
	if opts.FilterFor != nil {
		filter = opts.FilterFor(sess.Name())
	}
	t := &Transport{
		name:      sess.Name(),
		conn:      conn,
		sess:      sess,
		dict:      dict,
		log:       opts.Logger,
		rec:       opts.Recorder,
		queue:     NewMessageQueue(sess.Name()),
		filter:    filter,
		interrupt: opts.Interrupt,
		onClosed:  opts.OnClosed,
		done:      make(chan struct{}),
	}

	sess.OnConnected()
	t.log.Info("connection %s established: %s -> %s", t.name, conn.LocalAddr(), conn.RemoteAddr())

	t.wg.Add(1)
	go t.readLoop()

	return t
}

func (t *Transport) Name() string { return t.name }

// Session exposes the session engine for state and sequence checks.
func (t *Transport) Session() *session.Session { return t.sess }

// SendMessage stamps the session fields onto m, encodes it and writes
// it out.
func (t *Transport) SendMessage(m *fix.Message) error {
	t.sess.PrepareSend(m)

	data, err := fix.Encode(m, t.dict)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	_, err = t.conn.Write(data)
	t.writeMu.Unlock()
	if err != nil {
		return errors.ConnectionError{Name: t.name, Err: err}
	}

	t.log.TraceMessage(t.name, "sent", m.Describe())
	t.log.Debug("%s sent: %s", t.name, m.String())
	t.record(true, data)
	return nil
}

// WaitForMessage blocks until the next queued message arrives, up to
// timeout. title names the wait in the timeout error.
func (t *Transport) WaitForMessage(title string, timeout time.Duration) (*fix.Message, error) {
	return t.queue.Wait(title, timeout, t.interrupt)
}

// StartHeartbeat arms or disarms the session heartbeat timer. The
// first arming starts the timer goroutine; it keeps running, idle,
// across disarms.
func (t *Transport) StartHeartbeat(on bool) {
	t.sess.StartHeartbeat(on)
	if on {
		t.hbOnce.Do(func() {
			t.wg.Add(1)
			go t.heartbeatLoop()
		})
	}
}

// Close shuts the connection down and releases any waiters.
func (t *Transport) Close() error {
	t.shutdown(nil)
	return nil
}

// Done is closed once the connection has gone away.
func (t *Transport) Done() <-chan struct{} { return t.done }

func (t *Transport) record(outbound bool, payload []byte) {
	if t.rec == nil {
		return
	}
	if err := t.rec.Record(t.conn.LocalAddr(), t.conn.RemoteAddr(), outbound, payload); err != nil {
		t.log.Error("capture %s: %v", t.name, err)
	}
}

// fail ends the connection with a cause. The first caller wins; the
// cause reaches waiters draining the queue and the OnClosed callback.
func (t *Transport) fail(err error) {
	t.failing.Do(func() {
		if err != nil {
			t.log.Error("connection %s: %v", t.name, err)
		} else {
			t.log.Info("connection %s closed by peer", t.name)
		}
		t.shutdown(err)
		if t.onClosed != nil {
			t.onClosed(t.name, err)
		}
	})
}

func (t *Transport) shutdown(err error) {
	t.closing.Do(func() {
		close(t.done)
		t.conn.Close()
		t.queue.CloseWithError(err)
		t.sess.OnDisconnected()
	})
}

func (t *Transport) readLoop() {
	defer t.wg.Done()

	dec := fix.NewDecoder(t.dict)
	buf := make([]byte, 4096)

	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.record(false, buf[:n])
			dec.Write(buf[:n])
			if drainErr := t.drain(dec); drainErr != nil {
				t.fail(drainErr)
				return
			}
		}
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if err == io.EOF || stderrors.Is(err, net.ErrClosed) {
				t.fail(nil)
			} else {
				t.fail(errors.ConnectionError{Name: t.name, Err: err})
			}
			return
		}
	}
}

func (t *Transport) drain(dec *fix.Decoder) error {
	for {
		m, err := dec.Next()
		if err != nil {
			return err
		}
		if m == nil {
			return nil
		}

		t.log.TraceMessage(t.name, "received", m.Describe())
		t.log.Debug("%s received: %s", t.name, m.String())

		reply, err := t.sess.HandleReceived(m)
		if err != nil {
			return err
		}
		if reply != nil {
			if err := t.SendMessage(reply); err != nil {
				return err
			}
		}

		if t.filter {
			switch m.MsgType() {
			case fix.MsgTypeHeartbeat, fix.MsgTypeTestRequest:
				continue
			}
		}
		t.queue.Push(m)
	}
}

func (t *Transport) heartbeatLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			due, err := t.sess.Tick()
			if err != nil {
				t.fail(err)
				return
			}
			for _, m := range due {
				if err := t.SendMessage(m); err != nil {
					return
				}
			}
		}
	}
}
