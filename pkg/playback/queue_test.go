// ABOUTME: Tests for the playback queue
// ABOUTME: Covers FIFO order, non-overlap, idle/playing transitions and failure handling
package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/audio"
	"github.com/Resonate-Protocol/voicechat-go/pkg/audio/output"
)

// renderCall records one Render invocation
type renderCall struct {
	id         float32 // first sample, used to identify the chunk
	samples    int
	sampleRate int
}

// fakeRenderer hands completion control to the test
type fakeRenderer struct {
	mu        sync.Mutex
	auto      bool  // complete every render immediately
	failWith  error // error reported by auto-completed renders
	calls     []renderCall
	waiting   []chan error
	active    int
	maxActive int
	started   chan renderCall
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{started: make(chan renderCall, 256)}
}

func (f *fakeRenderer) Render(samples []float32, sampleRate int) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := renderCall{samples: len(samples), sampleRate: sampleRate}
	if len(samples) > 0 {
		call.id = samples[0]
	}
	f.calls = append(f.calls, call)

	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}

	done := make(chan error, 1)
	if f.auto {
		f.active--
		done <- f.failWith
	} else {
		f.waiting = append(f.waiting, done)
	}

	f.started <- call
	return done
}

func (f *fakeRenderer) Close() error { return nil }

// finish completes the oldest outstanding render
func (f *fakeRenderer) finish(t *testing.T, err error) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.waiting) == 0 {
		t.Fatal("no render in flight to finish")
	}
	done := f.waiting[0]
	f.waiting = f.waiting[1:]
	f.active--
	done <- err
}

func (f *fakeRenderer) snapshot() ([]renderCall, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]renderCall, len(f.calls))
	copy(calls, f.calls)
	return calls, f.maxActive
}

func chunkWithID(id float32, n int) audio.Chunk {
	samples := make([]float32, n)
	if n > 0 {
		samples[0] = id
	}
	return audio.Chunk{Samples: samples}
}

func waitStarted(t *testing.T, f *fakeRenderer) renderCall {
	t.Helper()
	select {
	case call := <-f.started:
		return call
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for render to start")
	}
	return renderCall{}
}

func expectNoStart(t *testing.T, f *fakeRenderer) {
	t.Helper()
	select {
	case call := <-f.started:
		t.Fatalf("unexpected render started: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForState(t *testing.T, q *Queue, state State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.Stats().State == state {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("queue did not reach state %v, still %v", state, q.Stats().State)
}

func TestEnqueueWhileIdleStartsImmediately(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{})
	q.Start()
	defer q.Stop()

	q.Enqueue(chunkWithID(1, 100))

	call := waitStarted(t, f)
	if call.samples != 100 {
		t.Errorf("expected 100 samples, got %d", call.samples)
	}
	if call.sampleRate != audio.OutputSampleRate {
		t.Errorf("expected sample rate %d, got %d", audio.OutputSampleRate, call.sampleRate)
	}
	if state := q.Stats().State; state != Playing {
		t.Errorf("expected state playing, got %v", state)
	}
}

func TestChunksQueuedWhileBusyPlayInOrder(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{})
	q.Start()
	defer q.Stop()

	q.Enqueue(chunkWithID(1, 10)) // X
	if call := waitStarted(t, f); call.id != 1 {
		t.Fatalf("expected X to render first, got %v", call.id)
	}

	q.Enqueue(chunkWithID(2, 10)) // Y
	q.Enqueue(chunkWithID(3, 10)) // Z
	expectNoStart(t, f)

	f.finish(t, nil)
	if call := waitStarted(t, f); call.id != 2 {
		t.Fatalf("expected Y after X, got %v", call.id)
	}
	expectNoStart(t, f)

	f.finish(t, nil)
	if call := waitStarted(t, f); call.id != 3 {
		t.Fatalf("expected Z after Y, got %v", call.id)
	}

	f.finish(t, nil)
	waitForState(t, q, Idle)
}

func TestIdleQueueNeverRenders(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{})
	q.Start()
	defer q.Stop()

	expectNoStart(t, f)

	stats := q.Stats()
	if stats.State != Idle {
		t.Errorf("expected idle, got %v", stats.State)
	}
	if stats.Received != 0 || stats.Played != 0 {
		t.Errorf("expected no activity, got %+v", stats)
	}
}

func TestFIFOOrderingUnderBurst(t *testing.T) {
	f := newFakeRenderer()
	f.auto = true
	q := NewQueue(f, Config{})

	// Enqueue before the loop runs so every chunk is waiting at once
	const n = 50
	go func() {
		for i := 1; i <= n; i++ {
			q.Enqueue(chunkWithID(float32(i), 4))
		}
	}()
	q.Start()
	defer q.Stop()

	for i := 1; i <= n; i++ {
		call := waitStarted(t, f)
		if call.id != float32(i) {
			t.Fatalf("render %d: expected chunk %d, got %v", i, i, call.id)
		}
	}

	waitForState(t, q, Idle)

	_, maxActive := f.snapshot()
	if maxActive != 1 {
		t.Errorf("expected at most one render in flight, saw %d", maxActive)
	}

	stats := q.Stats()
	if stats.Received != n || stats.Played != n {
		t.Errorf("expected %d received and played, got %+v", n, stats)
	}
	if stats.Pending != 0 {
		t.Errorf("expected empty queue, got %d pending", stats.Pending)
	}
}

func TestEnqueueBeforeStartNeverBlocks(t *testing.T) {
	f := newFakeRenderer()
	f.auto = true
	q := NewQueue(f, Config{})
	defer q.Stop()

	const n = 200
	done := make(chan struct{})
	go func() {
		for i := 1; i <= n; i++ {
			q.Enqueue(chunkWithID(float32(i), 4))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Enqueue blocked before Start; received=%d", q.Stats().Received)
	}

	if pending := q.Stats().Pending; pending != n {
		t.Errorf("expected %d pending before Start, got %d", n, pending)
	}
	expectNoStart(t, f)

	q.Start()

	for i := 1; i <= n; i++ {
		call := waitStarted(t, f)
		if call.id != float32(i) {
			t.Fatalf("render %d: expected chunk %d, got %v", i, i, call.id)
		}
	}
	waitForState(t, q, Idle)

	stats := q.Stats()
	if stats.Played != n || stats.Pending != 0 {
		t.Errorf("expected %d played and nothing pending, got %+v", n, stats)
	}
}

func TestNoOverlapWithManualCompletion(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{})
	q.Start()
	defer q.Stop()

	for i := 1; i <= 5; i++ {
		q.Enqueue(chunkWithID(float32(i), 8))
	}

	for i := 1; i <= 5; i++ {
		waitStarted(t, f)
		expectNoStart(t, f)
		f.finish(t, nil)
	}

	waitForState(t, q, Idle)

	_, maxActive := f.snapshot()
	if maxActive != 1 {
		t.Errorf("expected at most one render in flight, saw %d", maxActive)
	}
}

func TestStateTransitions(t *testing.T) {
	f := newFakeRenderer()

	var mu sync.Mutex
	var states []State
	q := NewQueue(f, Config{
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(chunkWithID(1, 10))
	waitStarted(t, f)
	q.Enqueue(chunkWithID(2, 10))

	f.finish(t, nil)
	waitStarted(t, f)
	f.finish(t, nil)
	waitForState(t, q, Idle)

	mu.Lock()
	defer mu.Unlock()
	expected := []State{Playing, Idle}
	if len(states) != len(expected) {
		t.Fatalf("expected transitions %v, got %v", expected, states)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Errorf("transition %d: expected %v, got %v", i, expected[i], states[i])
		}
	}
}

func TestRenderErrorDropsChunkAndContinues(t *testing.T) {
	f := newFakeRenderer()

	var mu sync.Mutex
	var failed []uint64
	q := NewQueue(f, Config{
		OnRenderError: func(chunk audio.Chunk, err error) {
			mu.Lock()
			failed = append(failed, chunk.Seq)
			mu.Unlock()
		},
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(chunkWithID(1, 10))
	q.Enqueue(chunkWithID(2, 10))

	waitStarted(t, f)
	f.finish(t, errors.New("device unavailable"))

	if call := waitStarted(t, f); call.id != 2 {
		t.Fatalf("expected next chunk after failure, got %v", call.id)
	}
	f.finish(t, nil)
	waitForState(t, q, Idle)

	stats := q.Stats()
	if stats.Dropped != 1 || stats.Played != 1 {
		t.Errorf("expected 1 dropped and 1 played, got %+v", stats)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != 1 {
		t.Errorf("expected chunk #1 reported as failed, got %v", failed)
	}
}

func TestEmptyChunkCompletesAndAdvances(t *testing.T) {
	out := output.NewNull()
	q := NewQueue(out, Config{})
	q.Start()
	defer q.Stop()

	q.Enqueue(audio.Chunk{})
	q.Enqueue(chunkWithID(0.5, 24)) // 1ms

	deadline := time.Now().Add(time.Second)
	for q.Stats().Played < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	if played := q.Stats().Played; played != 2 {
		t.Fatalf("expected 2 chunks played, got %d", played)
	}
	if out.Rendered() != 2 {
		t.Errorf("expected renderer to see 2 chunks, got %d", out.Rendered())
	}
	waitForState(t, q, Idle)
}

func TestMaxPendingDiscardsOldestWaiting(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{MaxPending: 2})
	q.Start()
	defer q.Stop()

	q.Enqueue(chunkWithID(1, 10))
	waitStarted(t, f)

	q.Enqueue(chunkWithID(2, 10))
	q.Enqueue(chunkWithID(3, 10))
	q.Enqueue(chunkWithID(4, 10)) // pushes out 2

	deadline := time.Now().Add(time.Second)
	for q.Stats().Received < 4 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	f.finish(t, nil)
	if call := waitStarted(t, f); call.id != 3 {
		t.Fatalf("expected chunk 3 after overflow, got %v", call.id)
	}
	f.finish(t, nil)
	if call := waitStarted(t, f); call.id != 4 {
		t.Fatalf("expected chunk 4, got %v", call.id)
	}
	f.finish(t, nil)
	waitForState(t, q, Idle)

	if overflowed := q.Stats().Overflowed; overflowed != 1 {
		t.Errorf("expected 1 overflowed chunk, got %d", overflowed)
	}
}

func TestStopDiscardsPendingAndUnblocksEnqueue(t *testing.T) {
	f := newFakeRenderer()
	q := NewQueue(f, Config{})
	q.Start()

	q.Enqueue(chunkWithID(1, 10))
	waitStarted(t, f)
	q.Enqueue(chunkWithID(2, 10))

	q.Stop()

	if pending := q.Stats().Pending; pending != 0 {
		t.Errorf("expected pending cleared on stop, got %d", pending)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			q.Enqueue(chunkWithID(float32(i), 1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after Stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	q := NewQueue(newFakeRenderer(), Config{})

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a queue that was never started")
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" {
		t.Errorf("expected idle, got %s", Idle.String())
	}
	if Playing.String() != "playing" {
		t.Errorf("expected playing, got %s", Playing.String())
	}
}
