package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

var t0 = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func saveSchedule(t *testing.T, repo Repo, userID int64, name string, start time.Time, mins int) *domain.Schedule {
	t.Helper()
	s := &domain.Schedule{
		UserID:          userID,
		Name:            name,
		Title:           "Title " + name,
		Description:     "desc",
		StartAt:         start,
		EndAt:           start.Add(time.Hour),
		ReminderMinutes: mins,
	}
	if _, err := repo.SaveSchedule(context.Background(), s); err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	if s.ID == 0 {
		t.Fatal("expected schedule id to be set")
	}
	return s
}

// runRepoContract exercises the behaviour every Repo implementation must share.
func runRepoContract(t *testing.T, repo Repo) {
	ctx := context.Background()

	t.Run("save twice updates in place", func(t *testing.T) {
		s := saveSchedule(t, repo, 1, "s1", t0.Add(time.Hour), 30)
		s2 := &domain.Schedule{
			UserID: 1, Name: "s1", Title: "renamed",
			StartAt: t0.Add(2 * time.Hour), EndAt: t0.Add(3 * time.Hour),
		}
		existed, err := repo.SaveSchedule(ctx, s2)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if !existed || s2.ID != s.ID {
			t.Fatalf("want update of id %d, got existed=%v id=%d", s.ID, existed, s2.ID)
		}
		got, err := repo.GetSchedule(ctx, 1, "s1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Title != "renamed" || !got.StartAt.Equal(t0.Add(2*time.Hour)) {
			t.Fatalf("unexpected schedule: %+v", got)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := repo.GetSchedule(ctx, 1, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		if _, err := repo.GetPendingReminder(ctx, 999999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert keeps one row", func(t *testing.T) {
		s := saveSchedule(t, repo, 2, "r1", t0.Add(2*time.Hour), 30)
		if err := repo.UpsertPendingReminder(ctx, s.ID, t0.Add(time.Hour)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := repo.UpsertPendingReminder(ctx, s.ID, t0.Add(90*time.Minute)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		list, err := repo.ListUnsentReminders(ctx, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("want 1 row, got %d", len(list))
		}
		if !list[0].Reminder.FiringAt.Equal(t0.Add(90 * time.Minute)) {
			t.Fatalf("want latest firing time, got %s", list[0].Reminder.FiringAt)
		}
		if list[0].Schedule.Title != "Title r1" {
			t.Fatalf("schedule not joined: %+v", list[0].Schedule)
		}
	})

	t.Run("mark sent once", func(t *testing.T) {
		s := saveSchedule(t, repo, 3, "m1", t0.Add(2*time.Hour), 30)
		if err := repo.UpsertPendingReminder(ctx, s.ID, t0.Add(time.Hour)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		ok, err := repo.MarkReminderSent(ctx, s.ID, t0.Add(time.Hour), t0.Add(time.Hour))
		if err != nil || !ok {
			t.Fatalf("first mark: ok=%v err=%v", ok, err)
		}
		ok, err = repo.MarkReminderSent(ctx, s.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
		if err != nil || ok {
			t.Fatalf("second mark: ok=%v err=%v", ok, err)
		}
		p, err := repo.GetPendingReminder(ctx, s.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !p.Sent || p.SentAt == nil || !p.SentAt.Equal(t0.Add(time.Hour)) {
			t.Fatalf("unexpected row: %+v", p)
		}
		list, _ := repo.ListUnsentReminders(ctx, 3)
		if len(list) != 0 {
			t.Fatalf("sent row still listed as unsent: %+v", list)
		}
	})

	t.Run("mark sent ignores a replaced occurrence", func(t *testing.T) {
		s := saveSchedule(t, repo, 3, "m2", t0.Add(3*time.Hour), 30)
		oldFire := t0.Add(time.Hour)
		newFire := t0.Add(25 * time.Hour)
		if err := repo.UpsertPendingReminder(ctx, s.ID, oldFire); err != nil {
			t.Fatalf("upsert old: %v", err)
		}
		if err := repo.UpsertPendingReminder(ctx, s.ID, newFire); err != nil {
			t.Fatalf("upsert new: %v", err)
		}

		ok, err := repo.MarkReminderSent(ctx, s.ID, oldFire, oldFire)
		if err != nil || ok {
			t.Fatalf("old occurrence mark: ok=%v err=%v", ok, err)
		}
		p, err := repo.GetPendingReminder(ctx, s.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Sent || !p.FiringAt.Equal(newFire) {
			t.Fatalf("new occurrence consumed: %+v", p)
		}

		ok, err = repo.MarkReminderSent(ctx, s.ID, newFire, newFire)
		if err != nil || !ok {
			t.Fatalf("new occurrence mark: ok=%v err=%v", ok, err)
		}
	})

	t.Run("armable excludes past and sent", func(t *testing.T) {
		future := saveSchedule(t, repo, 4, "future", t0.Add(3*time.Hour), 30)
		past := saveSchedule(t, repo, 4, "past", t0.Add(10*time.Minute), 30)
		sent := saveSchedule(t, repo, 4, "sent", t0.Add(4*time.Hour), 30)
		for _, s := range []*domain.Schedule{future, past, sent} {
			f, _ := s.FiringTime()
			if err := repo.UpsertPendingReminder(ctx, s.ID, f); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}
		sentFire, _ := sent.FiringTime()
		if _, err := repo.MarkReminderSent(ctx, sent.ID, sentFire, t0); err != nil {
			t.Fatalf("mark: %v", err)
		}

		list, err := repo.ListArmableReminders(ctx, t0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		var ids []int64
		for _, a := range list {
			if a.Schedule.UserID == 4 {
				ids = append(ids, a.Schedule.ID)
			}
		}
		if len(ids) != 1 || ids[0] != future.ID {
			t.Fatalf("want only %d, got %v", future.ID, ids)
		}
	})

	t.Run("delete schedule cascades", func(t *testing.T) {
		s := saveSchedule(t, repo, 5, "d1", t0.Add(2*time.Hour), 30)
		if err := repo.UpsertPendingReminder(ctx, s.ID, t0.Add(time.Hour)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		deleted, err := repo.DeleteSchedule(ctx, 5, "d1")
		if err != nil || !deleted {
			t.Fatalf("delete: deleted=%v err=%v", deleted, err)
		}
		if _, err := repo.GetPendingReminder(ctx, s.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("reminder row survived delete: %v", err)
		}
		deleted, err = repo.DeleteSchedule(ctx, 5, "d1")
		if err != nil || deleted {
			t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
		}
	})

	t.Run("delete missing reminder is no-op", func(t *testing.T) {
		if err := repo.DeletePendingReminder(ctx, 424242); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	t.Run("list upcoming", func(t *testing.T) {
		saveSchedule(t, repo, 6, "b", t0.Add(2*time.Hour), 0)
		saveSchedule(t, repo, 6, "a", t0.Add(time.Hour), 0)
		saveSchedule(t, repo, 6, "old", t0.Add(-time.Hour), 0)
		list, err := repo.ListUpcoming(ctx, 6, t0, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
			t.Fatalf("unexpected order: %+v", list)
		}
	})
}
