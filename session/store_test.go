package session

import (
	"errors"
	"testing"
	"time"

	"github.com/jmensah/fieldcheck/storage/memory"
)

// storeTests runs the common suite against any Store implementation.
func storeTests(t *testing.T, store Store) {
	t.Helper()

	t.Run("SaveAndGet", func(t *testing.T) {
		s := New("s-1", ChannelUSSD, time.Minute)
		s.QueryType = QueryWanted
		store.Save("s-1", s, time.Minute)
		got, ok := store.Get("s-1")
		if !ok {
			t.Fatal("expected to find session")
		}
		if got.QueryType != QueryWanted {
			t.Fatalf("got QueryType %q, want %q", got.QueryType, QueryWanted)
		}
		if got.State != StateMainMenu {
			t.Fatalf("got State %q, want %q", got.State, StateMainMenu)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok := store.Get("no-such-session")
		if ok {
			t.Fatal("expected not found for missing session")
		}
	})

	t.Run("ExpiredSessionRejected", func(t *testing.T) {
		s := New("s-exp", ChannelUSSD, -time.Second)
		store.Save("s-exp", s, -time.Second)
		if _, ok := store.Get("s-exp"); ok {
			t.Fatal("expected expired session to be rejected")
		}
		if store.Exists("s-exp") {
			t.Fatal("expected Exists to be false for expired session")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store.Save("s-del", New("s-del", ChannelUSSD, time.Minute), time.Minute)
		store.Delete("s-del")
		if _, ok := store.Get("s-del"); ok {
			t.Fatal("expected session to be deleted")
		}
		// Deleting a missing session must not panic.
		store.Delete("never-existed")
	})

	t.Run("UpdateMissingFails", func(t *testing.T) {
		s := New("s-up", ChannelUSSD, time.Minute)
		err := store.Update("s-up", s)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateSameState", func(t *testing.T) {
		s := New("s-pin", ChannelWhatsApp, time.Minute)
		s.State = StateAwaitingPIN
		store.Save("s-pin", s, time.Minute)

		s.PINAttempts = 2
		if err := store.Update("s-pin", s); err != nil {
			t.Fatalf("same-state update should succeed: %v", err)
		}
		got, _ := store.Get("s-pin")
		if got.PINAttempts != 2 {
			t.Fatalf("got PINAttempts %d, want 2", got.PINAttempts)
		}
	})

	t.Run("SaveResetsTTLClock", func(t *testing.T) {
		store.Save("s-ttl", New("s-ttl", ChannelUSSD, time.Minute), 50*time.Millisecond)
		store.Save("s-ttl", New("s-ttl", ChannelUSSD, time.Minute), time.Hour)
		got, ok := store.Get("s-ttl")
		if !ok {
			t.Fatal("expected session after re-save")
		}
		if time.Until(got.ExpiresAt) < 30*time.Minute {
			t.Fatalf("expected TTL reset to ~1h, expires in %v", time.Until(got.ExpiresAt))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeTests(t, NewMemoryStore())

	t.Run("SweepPurgesExpired", func(t *testing.T) {
		m := NewMemoryStore()
		m.Save("live", New("live", ChannelUSSD, time.Minute), time.Minute)
		m.Save("dead", New("dead", ChannelUSSD, time.Minute), -time.Second)
		if purged := m.Sweep(); purged != 1 {
			t.Fatalf("expected 1 purged, got %d", purged)
		}
		if !m.Exists("live") {
			t.Fatal("live session should survive sweep")
		}
	})
}

func TestRepoStore(t *testing.T) {
	store := NewRepoStore(memory.NewRepository(), 0)
	defer store.Close()
	storeTests(t, store)
}

func TestRepoStoreValidatesTransitions(t *testing.T) {
	store := NewRepoStore(memory.NewRepository(), 0)
	defer store.Close()

	s := New("wa-1", ChannelWhatsApp, time.Minute)
	store.Save("wa-1", s, time.Minute)

	// MAIN_MENU cannot jump straight to RESULT_SENT; this is the replay guard.
	s.State = StateResultSent
	err := store.Update("wa-1", s)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// The stored session must be unchanged after the rejected update.
	got, _ := store.Get("wa-1")
	if got.State != StateMainMenu {
		t.Fatalf("rejected update mutated state to %q", got.State)
	}

	// The legal path works step by step.
	got.State = StateAwaitingSearch
	if err := store.Update("wa-1", got); err != nil {
		t.Fatalf("MAIN_MENU to AWAITING_SEARCH: %v", err)
	}
	got.State = StateAwaitingPIN
	if err := store.Update("wa-1", got); err != nil {
		t.Fatalf("AWAITING_SEARCH to AWAITING_PIN: %v", err)
	}
	got.State = StateResultSent
	if err := store.Update("wa-1", got); err != nil {
		t.Fatalf("AWAITING_PIN to RESULT_SENT: %v", err)
	}
}

func TestRepoStoreSurvivesReopen(t *testing.T) {
	repo := memory.NewRepository()
	s1 := NewRepoStore(repo, 0)
	sess := New("wa-persist", ChannelWhatsApp, time.Hour)
	sess.State = StateAwaitingPIN
	sess.QueryType = QueryVehicle
	sess.SearchTerm = "UBA123X"
	s1.Save("wa-persist", sess, time.Hour)
	s1.Close()

	s2 := NewRepoStore(repo, 0)
	defer s2.Close()
	got, ok := s2.Get("wa-persist")
	if !ok {
		t.Fatal("expected session to survive store reopen")
	}
	if got.SearchTerm != "UBA123X" || got.State != StateAwaitingPIN {
		t.Fatalf("unexpected session after reopen: %+v", got)
	}
}

func TestRepoStoreLifetimeCap(t *testing.T) {
	store := NewRepoStore(memory.NewRepository(), 10*time.Minute)
	defer store.Close()

	s := New("wa-cap", ChannelWhatsApp, 5*time.Minute)
	store.Save("wa-cap", s, 5*time.Minute)
	got, _ := store.Get("wa-cap")

	// However often the session is touched, expiry stays within the cap.
	for i := 0; i < 5; i++ {
		got.Touch(5*time.Minute, 10*time.Minute)
		if err := store.Update("wa-cap", got); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		got, _ = store.Get("wa-cap")
	}
	if got.ExpiresAt.After(got.CreatedAt.Add(10*time.Minute + time.Second)) {
		t.Fatalf("expiry %v exceeds lifetime cap from %v", got.ExpiresAt, got.CreatedAt)
	}
}

func TestRepoStoreSweepExpired(t *testing.T) {
	repo := memory.NewRepository()
	store := NewRepoStore(repo, 0)
	defer store.Close()

	store.Save("gone", New("gone", ChannelWhatsApp, time.Minute), -time.Second)
	store.Save("kept", New("kept", ChannelWhatsApp, time.Minute), time.Hour)

	if purged := store.SweepExpired(); purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	if _, err := repo.Get("sessions", "SESSION", "gone"); err == nil {
		t.Fatal("expected expired session removed from storage")
	}
	if !store.Exists("kept") {
		t.Fatal("live session should survive sweep")
	}
}
