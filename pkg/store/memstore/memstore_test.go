package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
)

func TestUpsertSession_InsertThenUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.UpsertSession(ctx, "s1", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertSession(ctx, "s1", "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.UserID != "u1" {
		t.Fatalf("user_id = %q, want u1", sess.UserID)
	}
	if sess.StartTime.IsZero() {
		t.Fatal("start_time not set")
	}
}

func TestUpsertSession_EmptyUserKeepsExisting(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.UpsertSession(ctx, "s1", "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertSession(ctx, "s1", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.UserID != "u1" {
		t.Fatalf("user_id = %q, an empty upsert must not erase the known user", sess.UserID)
	}
}

func TestFetchTranscript_PreservesInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if err := s.LogEvent(ctx, "s1", store.EventUserMessage, store.RoleUser, c, nil); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	events, err := s.FetchTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != len(contents) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(contents))
	}
	for i, ev := range events {
		if ev.Content != contents[i] {
			t.Fatalf("events[%d] = %q, want %q", i, ev.Content, contents[i])
		}
		if i > 0 && events[i].ID <= events[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", events[i-1].ID, events[i].ID)
		}
	}
}

func TestFinalizeSession_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.UpsertSession(ctx, "s1", "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	end := time.Now()
	if err := s.FinalizeSession(ctx, "s1", end, 30, "first summary"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	err := s.FinalizeSession(ctx, "s1", end.Add(time.Minute), 90, "second summary")
	if !errors.Is(err, store.ErrAlreadyFinalized) {
		t.Fatalf("second finalize err = %v, want ErrAlreadyFinalized", err)
	}

	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Summary == nil || *sess.Summary != "first summary" {
		t.Fatalf("summary = %v, first write must win", sess.Summary)
	}
	if sess.DurationSeconds == nil || *sess.DurationSeconds != 30 {
		t.Fatalf("duration = %v, want 30", sess.DurationSeconds)
	}
	if !sess.Finalized() {
		t.Fatal("session not reported finalized")
	}
}

func TestFinalizeSession_MissingSession(t *testing.T) {
	s := New()
	err := s.FinalizeSession(context.Background(), "ghost", time.Now(), 0, "")
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestDropNextLogEvents_SimulatesDegradedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.DropNextLogEvents(1)
	if err := s.LogEvent(ctx, "s1", store.EventUserMessage, store.RoleUser, "lost", nil); err != nil {
		t.Fatalf("degraded write must not surface an error, got %v", err)
	}
	if err := s.LogEvent(ctx, "s1", store.EventUserMessage, store.RoleUser, "kept", nil); err != nil {
		t.Fatalf("log: %v", err)
	}
	if n := s.EventCount("s1"); n != 1 {
		t.Fatalf("EventCount = %d, want 1", n)
	}
}
