package runner

import (
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/kelora-go/kelora/config"
	"github.com/kelora-go/kelora/testutil"
)

func baseConfig(files ...string) *config.Config {
	return &config.Config{
		Input:  config.Input{Format: "apache-combined", Files: files},
		Output: config.Output{Format: "json"},
	}
}

func TestRunSequentialProducesOneEventPerLine(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 5)
	cfg := baseConfig(path)

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsOut != 5 {
		t.Fatalf("expected 5 events, got %d", result.EventsOut)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 output lines, got %d", len(lines))
	}
}

func TestRunHeadLimitsLinesConsidered(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 10)
	cfg := baseConfig(path)
	cfg.Input.Head = 3

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsOut != 3 {
		t.Fatalf("expected 3 events under --head 3, got %d", result.EventsOut)
	}
}

func TestRunTakeLimitsEventsEmitted(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 10)
	cfg := baseConfig(path)
	take := 2
	cfg.Processing.Take = &take

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsOut != 2 {
		t.Fatalf("expected 2 events under --take 2, got %d", result.EventsOut)
	}
}

func TestRunTakeZeroEmitsNothing(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 10)
	cfg := baseConfig(path)
	take := 0
	cfg.Processing.Take = &take

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsOut != 0 {
		t.Fatalf("expected 0 events under --take 0, got %d", result.EventsOut)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output under --take 0, got %q", out.String())
	}
}

func TestRunSkipLinesDropsLeadingInput(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 5)
	cfg := baseConfig(path)
	cfg.Input.SkipLines = 2

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.EventsOut != 3 {
		t.Fatalf("expected 3 events after skipping 2 of 5 lines, got %d", result.EventsOut)
	}
}

func TestRunKeepPatternFiltersLines(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 5)
	cfg := baseConfig(path)
	cfg.Input.KeepPattern = regexp.MustCompile("GET")

	var out bytes.Buffer
	r, buildErr := New(cfg, &out, nil)
	if buildErr != nil {
		t.Fatalf("New: %v", buildErr)
	}
	result, runErr := r.Run(context.Background())
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	// 3 of the 5 cycled sample lines contain "GET" (indices 0, 2 and 4).
	if result.EventsOut == 0 || result.EventsOut == 5 {
		t.Fatalf("expected keep-pattern to filter some but not all lines, got %d", result.EventsOut)
	}
}

func TestRunIgnorePatternDropsLines(t *testing.T) {
	path := testutil.GenerateTestLogFile(t, 5)
	cfg := baseConfig(path)
	cfg.Input.IgnorePattern = regexp.MustCompile("login")

	var out bytes.Buffer
	r, buildErr := New(cfg, &out, nil)
	if buildErr != nil {
		t.Fatalf("New: %v", buildErr)
	}
	result, runErr := r.Run(context.Background())
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if result.EventsOut != 4 {
		t.Fatalf("expected 4 events after ignoring the /api/login line, got %d", result.EventsOut)
	}
}

func TestRunMultiFileHeaderReinitForCSV(t *testing.T) {
	f1 := writeTempCSV(t, "status,method\n200,GET\n404,POST\n")
	f2 := writeTempCSV(t, "status,method\n500,PUT\n")

	cfg := &config.Config{
		Input:  config.Input{Format: "csv", Files: []string{f1, f2}, HasHeader: true},
		Output: config.Output{Format: "json"},
	}

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 2 data rows from f1 + 1 data row from f2; if the second file's
	// header line were parsed as data this would be 4.
	if result.EventsOut != 3 {
		t.Fatalf("expected 3 data events across two headered files, got %d", result.EventsOut)
	}
}

func TestRunResilientModeSkipsUnparsableChunks(t *testing.T) {
	path := writeTempCSV(t, "not json at all\n{\"status\":200}\nnot json either\n")
	cfg := &config.Config{
		Input:  config.Input{Format: "json", Files: []string{path}},
		Output: config.Output{Format: "json"},
	}

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run should not fail in resilient mode: %v", err)
	}
	if result.EventsOut != 1 {
		t.Fatalf("expected 1 surviving event, got %d", result.EventsOut)
	}
	if result.ParseErrors != 2 {
		t.Fatalf("expected 2 parse errors counted, got %d", result.ParseErrors)
	}
}

func TestRunStrictModeAbortsOnParseError(t *testing.T) {
	path := writeTempCSV(t, "not json at all\n{\"status\":200}\n")
	cfg := &config.Config{
		Input:      config.Input{Format: "json", Files: []string{path}},
		Output:     config.Output{Format: "json"},
		Processing: config.Processing{Strict: true},
	}

	var out bytes.Buffer
	r, err := New(cfg, &out, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected strict mode to abort on the unparsable first line")
	}
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test_*.csv")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}
