package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/seating/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   int
	downSteps int
	calls     []string
	pending   []postgres.MigrationInfo
	upErr     error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.calls = append(f.calls, "up")
	f.upSteps = steps
	return f.upErr
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.calls = append(f.calls, "down")
	f.downSteps = steps
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, int, error) {
	return 1, 1, nil
}

func (f *fakeMigrator) PendingMigrations(context.Context) ([]postgres.MigrationInfo, error) {
	return f.pending, nil
}

func lookupOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-direction", " DOWN ", "-steps", "2"}, lookupOf(map[string]string{
		envPostgresDSN: " postgres://seating@localhost/seating ",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.direction != "down" || opts.steps != 2 || opts.dsn != "postgres://seating@localhost/seating" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts, err = parseOptions([]string{"-dsn=postgres://flag"}, lookupOf(map[string]string{envPostgresDSN: "postgres://env"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.dsn != "postgres://flag" || opts.direction != "up" {
		t.Fatalf("flag dsn must win over env: %+v", opts)
	}
}

func TestParseOptions_Errors(t *testing.T) {
	if _, err := parseOptions([]string{"-direction=status"}, lookupOf(nil)); err == nil {
		t.Fatal("expected missing dsn error")
	}
	if _, err := parseOptions([]string{"-direction=sideways", "-dsn=x"}, lookupOf(nil)); err == nil {
		t.Fatal("expected unsupported direction error")
	}
	if _, err := parseOptions([]string{"-steps=many", "-dsn=x"}, lookupOf(nil)); err == nil {
		t.Fatal("expected invalid flag error")
	}
}

func TestRun_Directions(t *testing.T) {
	m := &fakeMigrator{pending: []postgres.MigrationInfo{{Version: 2, Name: "outbox"}}}
	var out bytes.Buffer

	if err := run(context.Background(), m, options{direction: "down"}, &out); err != nil {
		t.Fatalf("run down: %v", err)
	}
	if m.downSteps != 1 {
		t.Fatalf("down without steps must roll back one migration, got %d", m.downSteps)
	}
	if !strings.Contains(out.String(), "migrate down ok: version=1 applied=1 pending=1") {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "pending 0002_outbox") {
		t.Fatalf("expected pending migration listed: %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), m, options{direction: "status"}, &out); err != nil {
		t.Fatalf("run status: %v", err)
	}
	if len(m.calls) != 1 {
		t.Fatalf("status must not migrate, calls=%v", m.calls)
	}

	m.upErr = errors.New("boom")
	if err := run(context.Background(), m, options{direction: "up", steps: 1}, &out); err == nil {
		t.Fatal("expected up error")
	}
	if m.upSteps != 1 {
		t.Fatalf("unexpected up steps: %d", m.upSteps)
	}
}

func TestRun_PostgresLifecycle(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("SEATING_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	ctx := context.Background()
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	defer store.Close()

	var out bytes.Buffer
	if err := run(ctx, store, options{direction: "up"}, &out); err != nil {
		t.Fatalf("run up: %v", err)
	}
	if !strings.Contains(out.String(), "pending=0") {
		t.Fatalf("expected no pending migrations after up: %q", out.String())
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
