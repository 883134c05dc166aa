package process

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marekjm/viuavm-sub001/pkg/regval"
)

// nonBlockingChan is the teacher's single-sender/many-receiver non-blocking
// channel wrapper (vm/devices.go's nonBlockingChan[T]), reused as the
// delivery primitive for the mailbox, the join registry, and the I/O bus:
// the mailbox's SEND must never block the sender, exactly the property
// that type already provides.
type nonBlockingChan[T any] struct {
	ch       chan T
	count    atomic.Int32
	capacity int32
}

func newNonBlockingChan[T any](capacity int32) *nonBlockingChan[T] {
	return &nonBlockingChan[T]{ch: make(chan T, capacity), capacity: capacity}
}

func (c *nonBlockingChan[T]) trySend(v T) bool {
	n := c.count.Add(1)
	if n > c.capacity {
		c.count.Add(-1)
		return false
	}
	c.ch <- v
	return true
}

func (c *nonBlockingChan[T]) receive(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-c.ch:
		if ok {
			c.count.Add(-1)
		}
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Message is one mailbox entry. A single FIFO queue is sufficient to
// satisfy spec §5 "Ordering" (per-sender order is a subsequence of total
// queue order, which is trivially preserved; no guarantee is required
// across senders).
type Message struct {
	From  [16]byte
	Value regval.Cell
}

// Mailbox is the per-process inbound message queue (spec §3 "mailbox").
type Mailbox struct {
	queue *nonBlockingChan[Message]
}

func NewMailbox(capacity int32) *Mailbox {
	return &Mailbox{queue: newNonBlockingChan[Message](capacity)}
}

// Send never blocks; a full mailbox drops the send (the same "queue full"
// failure mode the teacher's TrySend/StatusDeviceBusy models).
func (m *Mailbox) Send(from [16]byte, v regval.Cell) bool {
	return m.queue.trySend(Message{From: from, Value: v})
}

// Receive blocks until a message arrives or timeout elapses (timeout <= 0
// waits forever). An exhausted timeout is MailboxEmpty (spec §7).
func (m *Mailbox) Receive(ctx context.Context, timeout time.Duration) (regval.Cell, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	msg, ok := m.queue.receive(ctx)
	if !ok {
		return regval.Cell{}, NewException(TagMailboxEmpty, "receive: mailbox empty")
	}
	return msg.Value, nil
}

// JoinRegistry lets one process block (JOIN) until another, named by PID,
// has exited. Grounded on devices.go's systemTimer "register a waiter,
// deliver asynchronously" shape, keyed by PID instead of interrupt address
// (SPEC_FULL §5.5).
type JoinRegistry struct {
	mu   sync.Mutex
	done map[[16]byte]chan struct{}
}

func NewJoinRegistry() *JoinRegistry {
	return &JoinRegistry{done: map[[16]byte]chan struct{}{}}
}

func (r *JoinRegistry) Register(pid [16]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[pid] = make(chan struct{})
}

// MarkDone signals any JOIN waiters that pid has exited.
func (r *JoinRegistry) MarkDone(pid [16]byte) {
	r.mu.Lock()
	ch, ok := r.done[pid]
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (r *JoinRegistry) Join(ctx context.Context, pid [16]byte, timeout time.Duration) error {
	r.mu.Lock()
	ch, ok := r.done[pid]
	r.mu.Unlock()
	if !ok {
		return NewException(TagBoundsError, "join: unknown process %x", pid)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return NewException(TagMailboxEmpty, "join: timed out waiting for process %x", pid)
	}
}

// IOResult is what the async adapter delivers for a completed IO_SUBMIT.
type IOResult struct {
	ID   uint32
	Data []byte
	Err  error
}

// IOAdapter is the single asynchronous I/O device spec §1 treats as an
// external collaborator. IO_SUBMIT calls Submit and gets an interaction ID
// back immediately; IO_WAIT blocks on Results for a matching completion.
type IOAdapter interface {
	Submit(command uint32, data []byte) (uint32, error)
	Results() <-chan IOResult
}

// EchoIOAdapter is a trivial in-process IOAdapter: it immediately "completes"
// every submission by echoing the submitted data back. Good enough for
// tests and as the default when no real adapter is wired in; grounded on
// devices.go's consoleIO, which drives its own goroutine and delivers
// results over a response bus the same way.
type EchoIOAdapter struct {
	results chan IOResult
	next    atomic.Uint32
}

func NewEchoIOAdapter() *EchoIOAdapter {
	return &EchoIOAdapter{results: make(chan IOResult, 64)}
}

func (a *EchoIOAdapter) Submit(_ uint32, data []byte) (uint32, error) {
	id := a.next.Add(1)
	go func() { a.results <- IOResult{ID: id, Data: data} }()
	return id, nil
}

func (a *EchoIOAdapter) Results() <-chan IOResult { return a.results }
