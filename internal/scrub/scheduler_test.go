package scrub

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ironnas/backend/irond/internal/mdraid"
)

func TestLoadSchedulesDefaults(t *testing.T) {
	s := LoadSchedules(filepath.Join(t.TempDir(), "missing.yaml"))
	if s.Check != "0 3 * * 0" {
		t.Fatalf("default check schedule = %q", s.Check)
	}
}

func TestLoadSchedulesFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "schedules.yaml")
	if err := os.WriteFile(p, []byte("check: \"30 2 * * 6\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := LoadSchedules(p)
	if s.Check != "30 2 * * 6" {
		t.Fatalf("check schedule = %q", s.Check)
	}
}

func TestRunChecksWritesSyncAction(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"md0", "md1", "md2"} {
		if err := os.MkdirAll(filepath.Join(base, name, "md"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	s := NewScheduler(zerolog.Nop(), defaultSchedules())
	s.sysBase = base
	s.arrays = func(ctx context.Context) ([]mdraid.Array, error) {
		return []mdraid.Array{
			{Name: "md0", Active: true},
			{Name: "md1", Active: true, Sync: &mdraid.SyncProgress{Action: "resync"}},
			{Name: "md2", Active: false},
		}, nil
	}

	s.runChecks(context.Background())

	b, err := os.ReadFile(filepath.Join(base, "md0", "md", "sync_action"))
	if err != nil {
		t.Fatalf("md0 sync_action not written: %v", err)
	}
	if string(b) != "check\n" {
		t.Fatalf("sync_action = %q", b)
	}
	for _, name := range []string{"md1", "md2"} {
		if _, err := os.Stat(filepath.Join(base, name, "md", "sync_action")); !os.IsNotExist(err) {
			t.Fatalf("%s should have been skipped", name)
		}
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(zerolog.Nop(), Schedules{Check: "not a cron expr"})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
