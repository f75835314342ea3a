package cooldown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func at(sec float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second)))
}

func TestUnknownCooldownScenario(t *testing.T) {
	tr := NewTracker(20*time.Second, nil)

	steps := []struct {
		sec  float64
		want bool
	}{
		{0, true},
		{10, false},
		{21, true},
	}
	for _, s := range steps {
		if got := tr.ShouldFire("Unknown", at(s.sec)); got != s.want {
			t.Errorf("t=%v: ShouldFire = %v, want %v", s.sec, got, s.want)
		}
	}
}

func TestGapBoundary(t *testing.T) {
	tests := []struct {
		name string
		gap  float64
		want bool
	}{
		{"Just under window", 19.999, false},
		{"Exactly window", 20, true},
		{"Past window", 25, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(20*time.Second, nil)
			if !tr.ShouldFire("Sander", at(100)) {
				t.Fatal("first call must fire")
			}
			if got := tr.ShouldFire("Sander", at(100+tt.gap)); got != tt.want {
				t.Errorf("gap %v: ShouldFire = %v, want %v", tt.gap, got, tt.want)
			}
		})
	}
}

func TestSuppressedCallDoesNotExtendWindow(t *testing.T) {
	tr := NewTracker(20*time.Second, nil)
	tr.ShouldFire("A", at(0))
	tr.ShouldFire("A", at(15)) // suppressed, must not reset the clock
	if !tr.ShouldFire("A", at(20)) {
		t.Error("expected fire at t=20 measured from the last fire, not the last attempt")
	}
}

func TestLabelsAreIndependent(t *testing.T) {
	state := NewState()
	tr := NewTracker(time.Minute, state)
	if !tr.ShouldFire("A", at(0)) || !tr.ShouldFire("B", at(1)) || !tr.ShouldFire("Unknown", at(2)) {
		t.Fatal("first detection of each label must fire")
	}
	if tr.ShouldFire("A", at(3)) {
		t.Error("A should still be cooling down")
	}
	if state.Len() != 3 {
		t.Errorf("expected 3 tracked labels, got %d", state.Len())
	}
	if last, ok := state.LastFired("B"); !ok || !last.Equal(at(1)) {
		t.Errorf("LastFired(B) = %v, %v", last, ok)
	}
}

func TestZeroWindowAlwaysFires(t *testing.T) {
	tr := NewTracker(0, nil)
	for i := 0; i < 3; i++ {
		if !tr.ShouldFire("A", at(5)) {
			t.Fatalf("call %d did not fire with zero cooldown", i)
		}
	}
}

func TestConcurrentCheckAndSet(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	now := time.Now()

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.ShouldFire("Unknown", now) {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := fired.Load(); n != 1 {
		t.Errorf("expected exactly one fire across goroutines, got %d", n)
	}
}
