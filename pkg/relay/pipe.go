package relay

import (
	"context"
	"sync"
	"sync/atomic"
)

// pipe is the bounded FIFO chunk buffer that couples one upload to one
// download. It is never closed via close(ch) because multiple producer
// handles may hold the send side; teardown goes through the done channel
// so both sides unblock.
type pipe struct {
	ch       chan []byte
	done     chan struct{}
	once     sync.Once
	used     atomic.Bool
	capacity int
}

func newPipe(capacity int) *pipe {
	if capacity < 1 {
		capacity = 1
	}
	return &pipe{
		ch:       make(chan []byte, capacity),
		done:     make(chan struct{}),
		capacity: capacity,
	}
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *pipe) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Producer is the send end of a ticket's chunk pipe. Producers are
// cloneable: the registry keeps one handle so delete can tear the pipe
// down while an upload handler holds another.
type Producer struct {
	p *pipe
}

// Clone returns another handle on the same pipe.
func (pr *Producer) Clone() *Producer {
	return &Producer{p: pr.p}
}

// Capacity reports the chunk capacity of the underlying pipe.
func (pr *Producer) Capacity() int {
	return pr.p.capacity
}

// Used reports whether any chunk was ever enqueued.
func (pr *Producer) Used() bool {
	return pr.p.used.Load()
}

// IsClosed reports whether the pipe was torn down.
func (pr *Producer) IsClosed() bool {
	return pr.p.closed()
}

// Close tears the pipe down, unblocking any pending send or receive.
func (pr *Producer) Close() {
	pr.p.close()
}

// Send enqueues one chunk, blocking while the buffer is full. An empty
// chunk is the end-of-stream sentinel by convention; Send does not treat
// it specially.
func (pr *Producer) Send(ctx context.Context, chunk []byte) error {
	// Don't race a buffered enqueue against teardown.
	if pr.p.closed() {
		return ErrClosed
	}
	select {
	case pr.p.ch <- chunk:
		pr.p.used.Store(true)
		return nil
	case <-pr.p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consumer is the receive end of a ticket's chunk pipe. Exactly one
// consumer exists per ticket; begin_download moves it out of the registry.
type Consumer struct {
	p *pipe
}

// Recv dequeues the next chunk in FIFO order. After teardown it keeps
// returning buffered chunks until the pipe is drained, then ErrClosed.
func (c *Consumer) Recv(ctx context.Context) ([]byte, error) {
	// Prefer buffered data over observing teardown.
	select {
	case chunk := <-c.p.ch:
		return chunk, nil
	default:
	}

	select {
	case chunk := <-c.p.ch:
		return chunk, nil
	case <-c.p.done:
		select {
		case chunk := <-c.p.ch:
			return chunk, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the pipe down from the consumer side. Used when a receiver
// disconnects for good: the producer's next Send observes ErrClosed.
func (c *Consumer) Close() {
	c.p.close()
}
