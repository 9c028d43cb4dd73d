package main

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	"github.com/wolfman30/tutoring-booking/migrations"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
}

func (f *fakeMigrator) Up() error                    { return f.upErr }
func (f *fakeMigrator) Steps(n int) error            { f.steps = append(f.steps, n); return nil }
func (f *fakeMigrator) Force(v int) error            { f.forced = v; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, false, nil }

func TestRunCommands(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange, version: 1}

	if err := run(m, nil); err != nil {
		t.Fatalf("up with no change should succeed: %v", err)
	}
	if err := run(m, []string{"down"}); err != nil || len(m.steps) != 1 || m.steps[0] != -1 {
		t.Fatalf("expected one step down, got %v (%v)", m.steps, err)
	}
	if err := run(m, []string{"force", "1"}); err != nil || m.forced != 1 {
		t.Fatalf("expected force to version 1, got %d (%v)", m.forced, err)
	}
	if err := run(m, []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := run(m, []string{"force"}); err == nil {
		t.Fatalf("expected error when force has no version")
	}
	if err := run(m, []string{"sideways"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil || len(ups) == 0 {
		t.Fatalf("expected embedded up migrations, got %v (%v)", ups, err)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migrations.FS, down); err != nil {
			t.Errorf("missing %s for %s", down, up)
		}
	}
}
