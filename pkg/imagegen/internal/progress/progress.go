// ABOUTME: Best-effort byte progress reporting for response bodies
// ABOUTME: Reader counts inline; Tracker observes a tee and reports from a detached goroutine

package progress

import (
	"io"
	"sync"
	"sync/atomic"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
)

// Func receives the cumulative number of bytes received so far.
type Func func(receivedBytes int64)

// Reader counts bytes as they are read and reports the running total after
// every chunk. It is used inside the streaming read loop, where reporting
// inline is what the consumer wants.
type Reader struct {
	r     io.Reader
	fn    Func
	total int64
}

// NewReader wraps r. A nil fn makes the wrapper a plain pass-through.
func NewReader(r io.Reader, fn Func) *Reader {
	return &Reader{r: r, fn: fn}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.total += int64(n)
		if p.fn != nil && !safeCall(p.fn, p.total) {
			p.fn = nil
		}
	}
	return n, err
}

// Total returns the bytes read so far.
func (p *Reader) Total() int64 {
	return p.total
}

// Tracker observes a copy of a body and reports progress from its own
// goroutine, so a slow callback never holds up the primary reader. Counts
// that arrive while the callback is busy are coalesced into the latest.
type Tracker struct {
	fn      Func
	total   atomic.Int64
	pending chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	failed  atomic.Bool
}

// Track returns the reader the primary consumer should use in place of r,
// together with the Tracker observing it. Call Stop once the body is consumed.
func Track(r io.Reader, fn Func) (io.Reader, *Tracker) {
	t := &Tracker{
		fn:      fn,
		pending: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return io.TeeReader(r, t), t
}

// Write records len(b) more bytes. It never blocks and never fails, so the
// tee cannot disturb the primary read.
func (t *Tracker) Write(b []byte) (int, error) {
	if len(b) == 0 || t.failed.Load() {
		return len(b), nil
	}
	t.total.Add(int64(len(b)))
	select {
	case t.pending <- struct{}{}:
	default:
	}
	return len(b), nil
}

// Total returns the bytes observed so far.
func (t *Tracker) Total() int64 {
	return t.total.Load()
}

// Stop ends tracking. The goroutine delivers the final count if it has not
// been reported yet, then exits. Stop does not wait for it.
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Done is closed when the tracking goroutine has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) run() {
	defer close(t.done)
	var reported int64
	deliver := func() bool {
		n := t.total.Load()
		if n == reported {
			return true
		}
		reported = n
		if !safeCall(t.fn, n) {
			t.failed.Store(true)
			return false
		}
		return true
	}

	for {
		select {
		case <-t.pending:
			if !deliver() {
				return
			}
		case <-t.stop:
			deliver()
			return
		}
	}
}

// safeCall runs fn and reports whether it returned normally. A panicking
// callback is logged; progress is best-effort and must not take the request down.
func safeCall(fn Func, n int64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			pilog.Warn("progress: callback failed, tracking stopped: %v", r)
			ok = false
		}
	}()
	fn(n)
	return true
}
