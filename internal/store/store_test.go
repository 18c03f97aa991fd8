package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/minutelabs/minute-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "minute.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "weekly sync")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected generated session id")
	}

	if err := s.SetNotes(ctx, sess.ID, "budget tbd"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if err := s.SetAgenda(ctx, sess.ID, "- [ ] Intro"); err != nil {
		t.Fatalf("set agenda: %v", err)
	}
	if err := s.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Notes != "budget tbd" || got.Agenda != "- [ ] Intro" {
		t.Fatalf("unexpected session content: %+v", got)
	}
	if got.EndedAt == nil {
		t.Fatal("expected ended_at to be set")
	}

	if err := s.SetNotes(ctx, "missing", "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSegmentsPreserveInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "ordering")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i, start := range []int64{1000, 34000, 120000} {
		seg := Segment{
			SessionID: sess.ID,
			SpeakerID: "spk-1",
			Text:      "line",
			StartMS:   start,
			EndMS:     start + 500 + int64(i),
		}
		if err := s.AppendSegment(ctx, seg); err != nil {
			t.Fatalf("append segment: %v", err)
		}
	}

	segs, err := s.ListSegments(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartMS < segs[i-1].StartMS {
			t.Fatalf("segments out of order: %d before %d", segs[i].StartMS, segs[i-1].StartMS)
		}
	}
}

func TestRenameSpeakerScopedToSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateSession(ctx, "a")
	b, _ := s.CreateSession(ctx, "b")

	for _, sessID := range []string{a.ID, a.ID, b.ID} {
		if err := s.AppendSegment(ctx, Segment{SessionID: sessID, SpeakerID: "Speaker 1", Text: "hi", StartMS: 0, EndMS: 100}); err != nil {
			t.Fatalf("append segment: %v", err)
		}
	}
	if err := s.AppendSegment(ctx, Segment{SessionID: a.ID, SpeakerID: "Speaker 2", Text: "yo", StartMS: 200, EndMS: 300}); err != nil {
		t.Fatalf("append segment: %v", err)
	}

	n, err := s.RenameSpeaker(ctx, a.ID, "Speaker 1", "Alice")
	if err != nil {
		t.Fatalf("rename speaker: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 renamed segments, got %d", n)
	}

	segsA, _ := s.ListSegments(ctx, a.ID)
	for _, seg := range segsA {
		if seg.SpeakerID == "Speaker 1" {
			if seg.SpeakerName == nil || *seg.SpeakerName != "Alice" {
				t.Fatalf("expected renamed segment, got %+v", seg)
			}
		} else if seg.SpeakerName != nil {
			t.Fatalf("unrelated speaker renamed: %+v", seg)
		}
	}

	segsB, _ := s.ListSegments(ctx, b.ID)
	if segsB[0].SpeakerName != nil {
		t.Fatalf("rename leaked into other session: %+v", segsB[0])
	}
}

func TestMeetingUpdateMirrorsAgenda(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, _ := s.CreateSession(ctx, "updates")
	if err := s.SetAgenda(ctx, sess.ID, "- [ ] Intro"); err != nil {
		t.Fatalf("set agenda: %v", err)
	}

	saved, err := s.SaveMeetingUpdate(ctx, MeetingUpdate{
		SessionID: sess.ID,
		Summary:   "covered intro",
		Agenda:    "- [x] Intro",
		ModelUsed: "test-model",
	})
	if err != nil {
		t.Fatalf("save update: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected assigned update id")
	}

	got, err := s.LatestMeetingUpdate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("latest update: %v", err)
	}
	if got.Summary != "covered intro" || got.ModelUsed != "test-model" {
		t.Fatalf("unexpected update: %+v", got)
	}

	sessNow, _ := s.GetSession(ctx, sess.ID)
	if sessNow.Agenda != "- [x] Intro" {
		t.Fatalf("expected agenda mirrored onto session, got %q", sessNow.Agenda)
	}

	if _, err := s.LatestMeetingUpdate(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneByAgeAndCount(t *testing.T) {
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "minute.db"), RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	old, _ := s.CreateSession(ctx, "old")

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	fresh, _ := s.CreateSession(ctx, "fresh")

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := s.GetSession(ctx, old.ID); err != ErrNotFound {
		t.Fatalf("expected old session pruned, got %v", err)
	}
	if _, err := s.GetSession(ctx, fresh.ID); err != nil {
		t.Fatalf("expected fresh session kept: %v", err)
	}
}
