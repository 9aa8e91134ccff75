package modification

import "sync"

// conduit is an unbounded FIFO connecting a run's producer to its single
// consumer. push never blocks; next blocks until an event is queued or the
// conduit is closed and drained.
type conduit struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	ready  chan struct{}
}

func newConduit() *conduit {
	return &conduit{ready: make(chan struct{}, 1)}
}

// push enqueues e. It reports false when the conduit is already closed.
func (c *conduit) push(e Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.queue = append(c.queue, e)
	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// close marks end-of-stream. Safe to call more than once.
func (c *conduit) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ready)
}

// next returns the oldest queued event, or false once the conduit is closed
// and empty.
func (c *conduit) next() (Event, bool) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			e := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			if len(c.queue) == 0 {
				c.queue = nil
			}
			c.mu.Unlock()
			return e, true
		}
		if c.closed {
			c.mu.Unlock()
			return nil, false
		}
		c.mu.Unlock()
		<-c.ready
	}
}

// len reports the number of buffered events.
func (c *conduit) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
