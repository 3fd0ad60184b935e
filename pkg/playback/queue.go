// ABOUTME: FIFO playback queue driven by an event loop
// ABOUTME: Hands one chunk at a time to the renderer and advances on completion
package playback

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/output"
)

// State is the playback state of the queue
type State int32

const (
	// Idle means no chunk is rendering
	Idle State = iota
	// Playing means exactly one chunk is rendering
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Config holds queue configuration
type Config struct {
	// SampleRate passed to the renderer with every chunk (default: 24000)
	SampleRate int

	// MaxPending bounds the number of waiting chunks; 0 means unbounded.
	// When full, the oldest waiting chunk is discarded.
	MaxPending int

	// OnStateChange is called from the queue goroutine on Idle/Playing transitions
	OnStateChange func(State)

	// OnRenderError is called from the queue goroutine when a render fails
	OnRenderError func(chunk audio.Chunk, err error)
}

// Stats contains queue counters
type Stats struct {
	Received   int64
	Played     int64
	Dropped    int64 // render failures
	Overflowed int64 // discarded because MaxPending was reached
	Pending    int
	State      State
}

// Queue serializes chunk playback through a Renderer
type Queue struct {
	renderer output.Renderer
	config   Config

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started atomic.Bool

	// Chunks handed over by Enqueue, drained by the run loop
	inboxMu sync.Mutex
	inbox   []audio.Chunk
	closed  bool
	wake    chan struct{}

	// Owned by the run loop
	pending []audio.Chunk
	current audio.Chunk
	state   State
	nextSeq uint64

	// Published for Stats
	received   atomic.Int64
	played     atomic.Int64
	dropped    atomic.Int64
	overflowed atomic.Int64
	depth      atomic.Int64
	published  atomic.Int32
}

// NewQueue creates a playback queue for the given renderer
func NewQueue(renderer output.Renderer, config Config) *Queue {
	if config.SampleRate == 0 {
		config.SampleRate = audio.OutputSampleRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		renderer: renderer,
		config:   config,
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the queue goroutine
func (q *Queue) Start() {
	q.once.Do(func() {
		q.started.Store(true)
		go q.run()
	})
}

// Enqueue appends a chunk to the tail of the queue. If nothing is playing,
// the chunk starts rendering right away. It never blocks or fails, including
// before Start; after Stop the chunk is discarded.
func (q *Queue) Enqueue(chunk audio.Chunk) {
	q.inboxMu.Lock()
	if q.closed {
		q.inboxMu.Unlock()
		return
	}
	q.inbox = append(q.inbox, chunk)
	q.inboxMu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// takeInbox hands every waiting chunk over to the run loop
func (q *Queue) takeInbox() []audio.Chunk {
	q.inboxMu.Lock()
	defer q.inboxMu.Unlock()
	chunks := q.inbox
	q.inbox = nil
	return chunks
}

// run is the queue's event loop. inflight is the completion channel of the
// chunk being rendered, nil while idle.
func (q *Queue) run() {
	defer close(q.done)

	var inflight <-chan error

	for {
		select {
		case <-q.ctx.Done():
			q.discardPending()
			return

		case <-q.wake:
			for _, chunk := range q.takeInbox() {
				q.push(chunk)
			}
			if q.state == Idle {
				inflight = q.consume()
			}

		case err := <-inflight:
			q.finish(err)
			inflight = q.consume()
		}
	}
}

// push appends a chunk, enforcing MaxPending
func (q *Queue) push(chunk audio.Chunk) {
	q.nextSeq++
	chunk.Seq = q.nextSeq
	q.received.Add(1)

	if q.config.MaxPending > 0 && len(q.pending) >= q.config.MaxPending {
		oldest := q.pending[0]
		q.pending = q.pending[1:]
		q.overflowed.Add(1)
		log.Printf("Playback queue full (%d pending), discarded chunk #%d", q.config.MaxPending, oldest.Seq)
	}

	q.pending = append(q.pending, chunk)
	q.depth.Store(int64(len(q.pending)))
}

// consume starts rendering the head chunk, or goes idle when nothing is pending
func (q *Queue) consume() <-chan error {
	if len(q.pending) == 0 {
		q.setState(Idle)
		return nil
	}

	q.setState(Playing)

	q.current = q.pending[0]
	q.pending[0] = audio.Chunk{}
	q.pending = q.pending[1:]
	q.depth.Store(int64(len(q.pending)))

	return q.renderer.Render(q.current.Samples, q.config.SampleRate)
}

// finish records the outcome of the chunk that just completed
func (q *Queue) finish(err error) {
	if err != nil {
		q.dropped.Add(1)
		if q.config.OnRenderError != nil {
			q.config.OnRenderError(q.current, err)
		} else {
			log.Printf("Render failed for chunk #%d (%d samples): %v", q.current.Seq, q.current.Len(), err)
		}
	} else {
		q.played.Add(1)
	}
	q.current = audio.Chunk{}
}

// setState updates the state and notifies on transitions
func (q *Queue) setState(state State) {
	if q.state == state {
		return
	}
	q.state = state
	q.published.Store(int32(state))

	if q.config.OnStateChange != nil {
		q.config.OnStateChange(state)
	}
}

// discardPending drops waiting chunks on shutdown
func (q *Queue) discardPending() {
	if n := len(q.pending); n > 0 {
		log.Printf("Playback queue stopped with %d chunks pending", n)
	}
	q.pending = nil
	q.depth.Store(0)
}

// inboxLen returns how many chunks wait for the run loop
func (q *Queue) inboxLen() int {
	q.inboxMu.Lock()
	defer q.inboxMu.Unlock()
	return len(q.inbox)
}

// Stats returns a snapshot of queue counters; safe from any goroutine
func (q *Queue) Stats() Stats {
	return Stats{
		Received:   q.received.Load(),
		Played:     q.played.Load(),
		Dropped:    q.dropped.Load(),
		Overflowed: q.overflowed.Load(),
		Pending:    int(q.depth.Load()) + q.inboxLen(),
		State:      State(q.published.Load()),
	}
}

// Stop stops the queue goroutine. A chunk that is already rendering plays
// to completion on the device; pending chunks are discarded.
func (q *Queue) Stop() {
	q.inboxMu.Lock()
	q.closed = true
	q.inbox = nil
	q.inboxMu.Unlock()

	q.cancel()
	if q.started.Load() {
		<-q.done
	}
}
