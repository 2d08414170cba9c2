package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"profiles", "sessions", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Profiles().Create(&Profile{ID: uuid.NewString(), Name: "keep"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	if _, err := s.Profiles().GetByName("keep"); err != nil {
		t.Errorf("profile lost across reopen: %v", err)
	}
}

func TestProfileRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	p := &Profile{
		ID:       uuid.NewString(),
		Name:     "ranked",
		Settings: json.RawMessage(`{"kp":0.7,"max_speed":30}`),
	}
	if err := repo.Create(p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "ranked" || string(got.Settings) != `{"kp":0.7,"max_speed":30}` {
		t.Errorf("GetByID() = %+v", got)
	}

	got.Name = "ranked-v2"
	got.Settings = json.RawMessage(`{"kp":0.9}`)
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	byName, err := repo.GetByName("ranked-v2")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if string(byName.Settings) != `{"kp":0.9}` {
		t.Errorf("settings not updated: %s", byName.Settings)
	}

	if err := repo.Delete(p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
}

func TestProfileRepository_DefaultSettings(t *testing.T) {
	s := newTestStore(t)

	p := &Profile{ID: uuid.NewString(), Name: "empty"}
	if err := s.Profiles().Create(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Profiles().GetByID(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Settings) != "{}" {
		t.Errorf("Settings = %s, want {}", got.Settings)
	}
}

func TestProfileRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(&Profile{ID: uuid.NewString(), Name: "same"}); err != nil {
		t.Fatal(err)
	}
	err := repo.Create(&Profile{ID: uuid.NewString(), Name: "same"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Create() duplicate = %v, want ErrDuplicate", err)
	}
}

func TestProfileRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := repo.Create(&Profile{ID: uuid.NewString(), Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	profiles, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if profiles[i].Name != want {
			t.Errorf("profiles[%d] = %q, want %q", i, profiles[i].Name, want)
		}
	}
}

func TestProfileRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if _, err := repo.GetByName("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName() = %v", err)
	}
	if err := repo.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() = %v", err)
	}
	if err := repo.Update(&Profile{ID: "nope", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() = %v", err)
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{ID: uuid.NewString(), Profile: "ranked", Mode: "track"}
	if err := repo.Start(sess); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sess.Frames = 600
	sess.Inferences = 420
	sess.Moves = 35
	if err := repo.Record(sess); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	open, err := repo.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if open.EndedAt != nil {
		t.Error("session should still be open")
	}
	if open.Frames != 600 || open.Moves != 35 {
		t.Errorf("counters not recorded: %+v", open)
	}

	sess.Clicks = 2
	sess.Errors = 1
	if err := repo.End(sess); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	closed, err := repo.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if closed.EndedAt == nil {
		t.Fatal("EndedAt should be set")
	}
	if closed.Clicks != 2 || closed.Errors != 1 || closed.Inferences != 420 {
		t.Errorf("final counters wrong: %+v", closed)
	}
}

func TestSessionRepository_RejectsUnknownMode(t *testing.T) {
	s := newTestStore(t)
	err := s.Sessions().Start(&Session{ID: uuid.NewString(), Mode: "spray"})
	if err == nil {
		t.Error("expected CHECK constraint failure")
	}
}

func TestSessionRepository_Recent(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		sess := &Session{ID: ids[i], Mode: "trigger", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Start(sess); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recent))
	}
	if recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Errorf("sessions not newest first: %s, %s", recent[0].ID, recent[1].ID)
	}
}

func TestSessionRepository_MissingSession(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v", err)
	}
	if err := repo.End(&Session{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("End() = %v", err)
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get(SettingActiveProfile); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty = %v", err)
	}

	if err := repo.Set(SettingActiveProfile, "ranked"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(SettingActiveProfile, "casual"); err != nil {
		t.Fatal(err)
	}

	v, err := repo.Get(SettingActiveProfile)
	if err != nil || v != "casual" {
		t.Errorf("Get() = %q, %v; want casual", v, err)
	}

	if err := repo.Delete(SettingActiveProfile); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(SettingActiveProfile); err != nil {
		t.Errorf("deleting a missing key should succeed: %v", err)
	}
}
