package sessions

import (
	"context"
	"testing"
	"time"
)

func TestRegisterUnregister(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})
	if got := tr.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	unregister()
	if got := tr.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
	// Double unregister is safe.
	unregister()
}

func TestRegister_SameIDDisplacesOldEntry(t *testing.T) {
	tr := NewTracker()
	oldCanceled := false
	tr.Register("s1", Handle{Cancel: func() { oldCanceled = true }})
	unregister := tr.Register("s1", Handle{})

	if got := tr.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1 after displacement", got)
	}
	if oldCanceled {
		t.Fatal("displacement must not cancel the old session")
	}
	unregister()
	if !tr.Wait(nil) {
		t.Fatal("Wait did not return after displacement cleanup")
	}
}

func TestNotifyAllAndCancelAll(t *testing.T) {
	tr := NewTracker()
	var notified []string
	canceled := 0
	tr.Register("s1", Handle{
		Cancel: func() { canceled++ },
		Notify: func(msg string) error { notified = append(notified, msg); return nil },
	})
	tr.Register("s2", Handle{
		Cancel: func() { canceled++ },
	})

	if sent := tr.NotifyAll("draining"); sent != 1 {
		t.Fatalf("NotifyAll sent = %d, want 1", sent)
	}
	if len(notified) != 1 || notified[0] != "draining" {
		t.Fatalf("notified = %v", notified)
	}
	if got := tr.CancelAll(); got != 2 {
		t.Fatalf("CancelAll = %d, want 2", got)
	}
	if canceled != 2 {
		t.Fatalf("canceled = %d, want 2", canceled)
	}
}

func TestWait_TimesOutWithLiveSessions(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})
	defer unregister()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Fatal("Wait returned true with a live session")
	}
}

func TestWait_ReturnsWhenDrained(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})

	done := make(chan bool, 1)
	go func() { done <- tr.Wait(context.Background()) }()

	unregister()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Wait returned false")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after drain")
	}
}

func TestNilTrackerIsSafe(t *testing.T) {
	var tr *Tracker
	tr.Register("s1", Handle{})()
	if tr.Count() != 0 || tr.NotifyAll("x") != 0 || tr.CancelAll() != 0 || !tr.Wait(nil) {
		t.Fatal("nil tracker must be inert")
	}
}
