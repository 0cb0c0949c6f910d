package transport

import (
	"sync"
	"time"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
)

// MessageQueue buffers inbound messages for one connection until the
// test body asks for them. Push never blocks; Wait blocks the caller
// until a message, a deadline, an interrupt, or the connection going
// away, whichever comes first.
type MessageQueue struct {
	name string

	mu     sync.Mutex
	items  []*fix.Message
	err    error
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
}

func NewMessageQueue(name string) *MessageQueue {
	return &MessageQueue{
		name:   name,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push appends a message and wakes one waiter. Messages pushed after
// Close are dropped.
func (q *MessageQueue) Push(m *fix.Message) {
	q.mu.Lock()
	select {
	case <-q.closed:
		q.mu.Unlock()
		return
	default:
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the connection gone. Buffered messages stay readable;
// a Wait past the end of the buffer fails.
func (q *MessageQueue) Close() {
	q.CloseWithError(nil)
}

// CloseWithError is Close with a cause. Waiters draining an empty
// queue receive err instead of the generic disconnect error.
func (q *MessageQueue) CloseWithError(err error) {
	q.once.Do(func() {
		q.mu.Lock()
		q.err = err
		q.mu.Unlock()
		close(q.closed)
	})
}

func (q *MessageQueue) pop() (*fix.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

func (q *MessageQueue) closeErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return errors.ConnectionLostError{Name: q.name, Err: q.err}
}

// Wait returns the oldest buffered message, blocking up to timeout for
// one to arrive. title names the operation for the timeout error. A
// close on interrupt aborts the wait immediately.
func (q *MessageQueue) Wait(title string, timeout time.Duration, interrupt <-chan struct{}) (*fix.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if m, ok := q.pop(); ok {
			return m, nil
		}

		select {
		case <-q.closed:
			// drain whatever arrived before the close
			if m, ok := q.pop(); ok {
				return m, nil
			}
			return nil, q.closeErr()
		default:
		}

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, errors.TestTimeoutError{Title: title, Timeout: timeout}
		case <-interrupt:
			return nil, errors.TestInterruptedError{}
		case <-q.closed:
		}
	}
}
