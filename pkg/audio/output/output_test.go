// ABOUTME: Audio output tests
// ABOUTME: Verifies renderer implementations, volume handling and completion signalling
package output

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ebitengine/oto/v3"
)

// fakeOtoContext counts suspend/resume calls without touching a device
type fakeOtoContext struct {
	suspended int
	resumed   int
	resumeErr error
}

func (f *fakeOtoContext) NewPlayer(io.Reader) *oto.Player { return nil }

func (f *fakeOtoContext) Suspend() error {
	f.suspended++
	return nil
}

func (f *fakeOtoContext) Resume() error {
	f.resumed++
	return f.resumeErr
}

func TestRenderersImplementInterfaces(t *testing.T) {
	var _ Renderer = (*Oto)(nil)
	var _ Renderer = (*Null)(nil)
	var _ VolumeControl = (*Oto)(nil)
	var _ VolumeControl = (*Null)(nil)
}

func TestVolumeMultiplier(t *testing.T) {
	tests := []struct {
		volume   int
		muted    bool
		expected float64
	}{
		{100, false, 1.0},
		{50, false, 0.5},
		{0, false, 0.0},
		{80, true, 0.0}, // Muted overrides volume
	}

	for _, tt := range tests {
		result := getVolumeMultiplier(tt.volume, tt.muted)
		if result != tt.expected {
			t.Errorf("volume=%d, muted=%v: expected %f, got %f",
				tt.volume, tt.muted, tt.expected, result)
		}
	}
}

func TestApplyVolume(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25, -0.25}

	result := applyVolume(samples, 50, false)

	if result[0] != 0.25 {
		t.Errorf("expected 0.25, got %f", result[0])
	}
	if result[1] != -0.25 {
		t.Errorf("expected -0.25, got %f", result[1])
	}
	if samples[0] != 0.5 {
		t.Error("applyVolume should not modify its input")
	}
}

func TestClampVolume(t *testing.T) {
	if v := clampVolume(150); v != 100 {
		t.Errorf("expected 100, got %d", v)
	}
	if v := clampVolume(-10); v != 0 {
		t.Errorf("expected 0, got %d", v)
	}
	if v := clampVolume(42); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestOtoRenderBeforeOpen(t *testing.T) {
	out := NewOto()

	select {
	case err := <-out.Render([]float32{0.1}, 24000):
		if !errors.Is(err, ErrNotOpen) {
			t.Errorf("expected ErrNotOpen, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("render before open should complete immediately")
	}
}

func TestOtoReopenAfterClose(t *testing.T) {
	tests := []struct {
		name      string
		resumeErr error
		wantReady bool
	}{
		{"resume succeeds", nil, true},
		{"resume fails", errors.New("device gone"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOtoContext{resumeErr: tt.resumeErr}
			out := NewOto()
			out.otoCtx = fake
			out.sampleRate = 24000
			out.ready = true

			if err := out.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}
			if fake.suspended != 1 {
				t.Errorf("expected 1 suspend, got %d", fake.suspended)
			}
			if err := <-out.Render([]float32{0.1}, 24000); !errors.Is(err, ErrNotOpen) {
				t.Errorf("expected ErrNotOpen after close, got %v", err)
			}

			err := out.Open(24000)
			if tt.wantReady && err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			if !tt.wantReady && err == nil {
				t.Fatal("expected reopen to fail")
			}
			if fake.resumed != 1 {
				t.Errorf("expected 1 resume, got %d", fake.resumed)
			}

			err = <-out.Render(nil, 24000)
			if tt.wantReady && err != nil {
				t.Errorf("expected render after reopen to succeed, got %v", err)
			}
			if !tt.wantReady && !errors.Is(err, ErrNotOpen) {
				t.Errorf("expected ErrNotOpen, got %v", err)
			}
		})
	}
}

func TestNullRenderTakesChunkDuration(t *testing.T) {
	out := NewNull()

	start := time.Now()
	err := <-out.Render(make([]float32, 1200), 24000) // 50ms
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected render to take ~50ms, took %v", elapsed)
	}
	if out.Rendered() != 1 {
		t.Errorf("expected 1 rendered chunk, got %d", out.Rendered())
	}
}

func TestNullRenderEmptyChunkCompletesImmediately(t *testing.T) {
	out := NewNull()

	select {
	case err := <-out.Render(nil, 24000):
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("empty chunk should complete immediately")
	}
}

func TestNullVolume(t *testing.T) {
	out := NewNull()

	out.SetVolume(120)
	if out.GetVolume() != 100 {
		t.Errorf("expected volume clamped to 100, got %d", out.GetVolume())
	}

	out.SetMuted(true)
	if !out.IsMuted() {
		t.Error("expected muted")
	}
}
