package presence

import (
	"testing"
	"time"
)

func waitEvent(t *testing.T, tr *Tracker) Event {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typing event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, tr *Tracker, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-tr.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(wait):
	}
}

func TestTouchEmitsOneTypingTransition(t *testing.T) {
	tr := NewTracker(nil, time.Hour)
	defer tr.Close()

	tr.Touch("c1", "alice")
	ev := waitEvent(t, tr)
	if !ev.Typing || ev.ChatID != "c1" || ev.UserID != "alice" {
		t.Fatalf("first touch event = %+v", ev)
	}

	// Further touches while typing only restart the countdown.
	tr.Touch("c1", "alice")
	tr.Touch("c1", "alice")
	expectNoEvent(t, tr, 50*time.Millisecond)
}

func TestInactivityExpiresToIdle(t *testing.T) {
	tr := NewTracker(nil, 60*time.Millisecond)
	defer tr.Close()

	tr.Touch("c1", "alice")
	if ev := waitEvent(t, tr); !ev.Typing {
		t.Fatalf("expected typing transition, got %+v", ev)
	}
	ev := waitEvent(t, tr)
	if ev.Typing {
		t.Fatalf("expected idle transition, got %+v", ev)
	}
	if len(tr.Typing("c1")) != 0 {
		t.Error("expired typer still listed")
	}
}

func TestEveryTouchRestartsTheCountdown(t *testing.T) {
	tr := NewTracker(nil, 120*time.Millisecond)
	defer tr.Close()

	tr.Touch("c1", "alice")
	waitEvent(t, tr)

	// Keep touching faster than the window; the idle transition must not
	// fire while input continues.
	for i := 0; i < 4; i++ {
		time.Sleep(60 * time.Millisecond)
		tr.Touch("c1", "alice")
	}
	expectNoEvent(t, tr, 60*time.Millisecond)

	ev := waitEvent(t, tr)
	if ev.Typing {
		t.Fatalf("expected idle after input stopped, got %+v", ev)
	}
}

func TestStopIdlesImmediately(t *testing.T) {
	tr := NewTracker(nil, time.Hour)
	defer tr.Close()

	tr.Touch("c1", "alice")
	waitEvent(t, tr)

	tr.Stop("c1", "alice")
	ev := waitEvent(t, tr)
	if ev.Typing {
		t.Fatalf("expected idle on stop, got %+v", ev)
	}

	// Stopping a non-typer is a no-op.
	tr.Stop("c1", "alice")
	tr.Stop("c2", "bob")
	expectNoEvent(t, tr, 50*time.Millisecond)
}

func TestTypingListsPerChat(t *testing.T) {
	tr := NewTracker(nil, time.Hour)
	defer tr.Close()

	tr.Touch("c1", "alice")
	tr.Touch("c1", "bob")
	tr.Touch("c2", "carol")

	states := tr.Typing("c1")
	if len(states) != 2 {
		t.Fatalf("Typing(c1) = %d states, want 2", len(states))
	}
	for _, st := range states {
		if st.ExpiresAt.IsZero() {
			t.Errorf("state %+v has no deadline", st)
		}
	}
	if got := tr.Typing("c2"); len(got) != 1 || got[0].UserID != "carol" {
		t.Errorf("Typing(c2) = %+v", got)
	}
}

func TestCloseStopsTracking(t *testing.T) {
	tr := NewTracker(nil, 50*time.Millisecond)
	tr.Touch("c1", "alice")
	waitEvent(t, tr)

	tr.Close()
	tr.Touch("c1", "bob")
	expectNoEvent(t, tr, 100*time.Millisecond)
	if len(tr.Typing("c1")) != 0 {
		t.Error("closed tracker still lists typers")
	}
}
