package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestInspectFiltersAndSaves(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "universe.csv")
	if err := os.WriteFile(data, []byte("ticker,price,sector\nSPY,234.5,etf\nAAPL,139.2,tech\nMSFT,64.9,tech\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := filepath.Join(dir, "cache")

	out, _, err := execute(t, "inspect", data, "--where", "sector==tech", "--where", "price>100",
		"--columns", "ticker,price", "--save", "tech", "--cache-dir", cache)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ticker") || !strings.HasPrefix(lines[1], "AAPL") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(cache, "df_tech.json")); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
}

func TestValidatePrintsSchedule(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "konan.yaml")
	body := `
session: {name: demo, timezone: UTC}
data: {universe: ./universe.csv}
`
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, "validate", "--config", cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"demo", "09:30:00", "open_day", "15:30:00", "end_day"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if _, _, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("validate accepted a missing file")
	}
}
