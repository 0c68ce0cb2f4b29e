package supervisor

import (
	"testing"
	"time"
)

func TestBackoff_ExactSequenceWithoutJitter(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 1*time.Second, 2.0, 0)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1 * time.Second,
		1 * time.Second,
	}
	for i, expected := range want {
		if got := b.Next(); got != expected {
			t.Errorf("delay %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestBackoff_JitterOnlyExtends(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 1*time.Second, 2.0, 0.2)

	base := 100 * time.Millisecond
	var prev time.Duration
	for i := 0; i < 6; i++ {
		got := b.Next()
		max := base + time.Duration(0.2*float64(base))
		if got < base || got > max {
			t.Errorf("delay %d: expected within [%v, %v], got %v", i, base, max, got)
		}
		if got < prev-time.Duration(0.2*float64(prev)) {
			t.Errorf("delay %d shrank below previous base: %v after %v", i, got, prev)
		}
		prev = got

		next := time.Duration(float64(base) * 2)
		if next > 1*time.Second {
			next = 1 * time.Second
		}
		base = next
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 1*time.Second, 2.0, 0)

	b.Next()
	b.Next()
	if b.Current() != 400*time.Millisecond {
		t.Errorf("expected base 400ms after two delays, got %v", b.Current())
	}

	b.Reset()
	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("expected initial delay after reset, got %v", got)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0, 0, -1)

	if b.Initial != time.Second {
		t.Errorf("expected default initial 1s, got %v", b.Initial)
	}
	if b.Max < b.Initial {
		t.Errorf("max %v must not be below initial %v", b.Max, b.Initial)
	}
	if b.Multiplier < 1 {
		t.Errorf("expected multiplier >= 1, got %v", b.Multiplier)
	}
	if b.Jitter != 0 {
		t.Errorf("expected negative jitter clamped to 0, got %v", b.Jitter)
	}
}
