package clock

import (
	"testing"
	"time"
)

func TestMockAdvanceFiresDueTimers(t *testing.T) {
	m := NewMock(time.Unix(1000, 0))
	fired := []string{}
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	m.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	m.Advance(500 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("nothing should have fired yet: %v", fired)
	}
	m.Advance(2 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("expected deadline order [a b], got %v", fired)
	}
}

func TestMockStopPreventsFiring(t *testing.T) {
	m := NewMock(time.Unix(1000, 0))
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("first stop should report true")
	}
	if tm.Stop() {
		t.Fatalf("second stop should report false")
	}
	m.Advance(5 * time.Second)
	if fired {
		t.Fatalf("stopped timer must not fire")
	}
}

func TestMockNowAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewMock(start)
	m.Advance(300 * time.Second)
	if got := m.Now().Sub(start); got != 300*time.Second {
		t.Fatalf("expected 300s elapsed, got %v", got)
	}
}
