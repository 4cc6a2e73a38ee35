package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ProspectScanner/internal/domain"
)

func TestRootRegistersCommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	for _, name := range []string{"serve", "campaign", "crawl", "score", "list", "export", "migrate", "schedule"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	if _, _, err := root.Find([]string{"migrate", "down"}); err != nil {
		t.Fatalf("migrate down missing: %v", err)
	}
}

func TestRenderProspects(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderProspects(&buf, []domain.Prospect{
		{URL: "https://reef.org", OrganizationName: "Reef Trust", Emails: []string{"hi@reef.org"}, Scores: domain.NewHeuristicScores(0.5, 0.5, 0.5)},
	})

	out := buf.String()
	for _, want := range []string{"ORGANIZATION", "Reef Trust", "https://reef.org", "hi@reef.org", "0.500"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderScored(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderScored(&buf, []domain.ScoredProspect{
		{URL: "https://reef.org", AIScore: 0.91, Confidence: 0.8, Recommendation: domain.RecommendationHigh},
	})
	if !strings.Contains(buf.String(), "HIGH_PRIORITY") || !strings.Contains(buf.String(), "0.910") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}
}

func TestListCommandWithEmptyMemoryStore(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"list", "--env-file", filepath.Join(t.TempDir(), "missing.env"), "--log-level", "error"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "No prospects stored") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SERVER_ADDR=:6123\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SERVER_ADDR", "")
	os.Unsetenv("SERVER_ADDR")

	opts := &rootOptions{envFile: envFile}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":6123" {
		t.Fatalf("addr = %q, want :6123", cfg.Server.Addr)
	}
}
