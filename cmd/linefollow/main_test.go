package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/linefollow/internal/db"
	"github.com/banshee-data/linefollow/internal/monitoring"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() {
		monitoring.Logf = original
		monitoring.SetDebug(false)
	})

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "linefollow dev") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestRun_RequiresSource(t *testing.T) {
	if _, err := execute(t, "run"); err == nil {
		t.Error("expected error when neither --port nor --replay is given")
	}
	if _, err := execute(t, "run", "--port", "/dev/null", "--replay", "x.txt"); err == nil {
		t.Error("expected error when both --port and --replay are given")
	}
	_, err := execute(t, "run", "--port", "/dev/does-not-exist", "--fast")
	if err == nil || !strings.Contains(err.Error(), "--fast requires --replay") {
		t.Errorf("expected --fast error, got %v", err)
	}
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tuning.json")
	if err := os.WriteFile(cfgPath, []byte(`{"ema_gain": 3}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "run", "--replay", "testdata/line.txt", "--fast", "--config", cfgPath)
	if err == nil {
		t.Error("expected invalid config to fail")
	}
}

func TestReplayRecordListPlot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")

	if _, err := execute(t, "run", "--replay", "testdata/line.txt", "--fast", "--db", dbPath, "--debug"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, "runs", "--db", dbPath)
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "replay:testdata/line.txt") {
		t.Errorf("runs output missing source:\n%s", out)
	}
	// The first of 50 samples seeds the filters.
	if !strings.Contains(out, "\t49\t") && !strings.Contains(out, " 49 ") {
		t.Errorf("runs output missing frame count 49:\n%s", out)
	}

	pngPath := filepath.Join(dir, "path.png")
	out, err = execute(t, "plot", "--db", dbPath, "--out", pngPath)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	if !strings.Contains(out, "49 frames") {
		t.Errorf("unexpected plot output %q", out)
	}
	info, err := os.Stat(pngPath)
	if err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty PNG at %s: %v", pngPath, err)
	}

	out, err = execute(t, "migrate", "version", "--db", dbPath)
	if err != nil {
		t.Fatalf("migrate version failed: %v", err)
	}
	if !strings.Contains(out, "schema version 2 (clean)") {
		t.Errorf("unexpected migrate output %q", out)
	}
}

func TestRuns_Units(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	if _, err := execute(t, "run", "--replay", "testdata/line.txt", "--fast", "--db", dbPath); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, "runs", "--db", dbPath, "--units", "cm")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "DISTANCE (cm)") {
		t.Errorf("runs output missing unit header:\n%s", out)
	}

	if _, err := execute(t, "runs", "--db", dbPath, "--units", "furlong"); err == nil {
		t.Error("expected invalid units error")
	}
}

func TestRuns_MissingDatabase(t *testing.T) {
	_, err := execute(t, "runs", "--db", filepath.Join(t.TempDir(), "none.db"))
	if err == nil {
		t.Error("expected error for missing database")
	}
}

func TestMigrateUpDown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "schema.db")

	out, err := execute(t, "migrate", "up", "--db", dbPath)
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if !strings.Contains(out, "schema version 2") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "migrate", "down", "--db", dbPath)
	if err != nil {
		t.Fatalf("migrate down failed: %v", err)
	}
	if !strings.Contains(out, "schema version 1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunsDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	database, err := db.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	run, err := database.CreateRun(time.Unix(100, 0), "test", nil)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	database.Close()

	out, err := execute(t, "runs", "delete", run.ID, "--db", dbPath)
	if err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if !strings.Contains(out, "deleted run "+run.ID) {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "runs", "--db", dbPath)
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "no runs recorded") {
		t.Errorf("expected empty run list, got:\n%s", out)
	}

	if _, err := execute(t, "runs", "delete", run.ID, "--db", dbPath); !errors.Is(err, db.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
	}
	if _, err := execute(t, "runs", "delete", "--db", dbPath); err == nil {
		t.Error("expected error without a run id")
	}
}

func TestMigrateForce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "schema.db")
	if _, err := execute(t, "migrate", "up", "--db", dbPath); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	out, err := execute(t, "migrate", "force", "1", "--db", dbPath)
	if err != nil {
		t.Fatalf("migrate force failed: %v", err)
	}
	if !strings.Contains(out, "schema version 1 (clean)") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := execute(t, "migrate", "force", "latest", "--db", dbPath); err == nil {
		t.Error("expected error for a non-numeric version")
	}
}

func TestRun_SummaryCoversWholeRun(t *testing.T) {
	// One more sample than the recorder holds, plus the seeding sample.
	var fixture strings.Builder
	for i := 0; i <= recorderCapacity+1; i++ {
		fmt.Fprintf(&fixture, "1.5,1.5,%d,%d,0\n", i*12, i*12)
	}
	path := filepath.Join(t.TempDir(), "long.txt")
	if err := os.WriteFile(path, []byte(fixture.String()), 0644); err != nil {
		t.Fatal(err)
	}

	var (
		mu   sync.Mutex
		logs []string
	)
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	defer func() { monitoring.Logf = original }()

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"run", "--replay", path, "--fast"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := fmt.Sprintf("run finished: frames=%d ", recorderCapacity+1)
	for _, line := range logs {
		if strings.HasPrefix(line, want) {
			return
		}
	}
	t.Errorf("no %q log line in:\n%s", want, strings.Join(logs[len(logs)-3:], "\n"))
}
