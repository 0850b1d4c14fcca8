package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newWorkspace creates a temp dir with a .citetrack directory inside.
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(WorkspacePath(root), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestDefault(t *testing.T) {
	cfg := Default("job-42")

	if cfg.JobID != "job-42" {
		t.Errorf("JobID = %q", cfg.JobID)
	}
	if cfg.Style != "author-date" {
		t.Errorf("Style = %q, want author-date", cfg.Style)
	}
	if cfg.TitleThreshold != 0.85 || cfg.AuthorThreshold != 0.90 {
		t.Errorf("thresholds = %v / %v", cfg.TitleThreshold, cfg.AuthorThreshold)
	}
	if cfg.CacheTTL.Std() != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", cfg.CacheTTL.Std())
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.OverRelianceFraction != 0.30 {
		t.Errorf("OverRelianceFraction = %v, want 0.30", cfg.OverRelianceFraction)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	root := newWorkspace(t)

	cfg := Default("job-rt")
	cfg.Style = "numeric"
	cfg.TitleThreshold = 0.92
	cfg.CacheTTL = Duration(6 * time.Hour)
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *cfg {
		t.Errorf("roundtrip mismatch:\n got  %+v\n want %+v", got, cfg)
	}
}

// The cache TTL is written as a duration string, not raw nanoseconds, so
// the file stays hand-editable.
func TestCacheTTLSerializesAsDurationString(t *testing.T) {
	root := newWorkspace(t)
	if err := Default("job-d").Save(root); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "cache_ttl: 24h0m0s") {
		t.Errorf("config.yaml = %q, want cache_ttl as a duration string", data)
	}
	if strings.Contains(string(data), "86400000000000") {
		t.Errorf("config.yaml = %q carries raw nanoseconds", data)
	}
}

func TestCacheTTLAcceptsHandWrittenDuration(t *testing.T) {
	root := newWorkspace(t)
	if err := os.WriteFile(ConfigPath(root),
		[]byte("job_id: j\nstyle: numeric\ncache_ttl: 6h\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL.Std() != 6*time.Hour {
		t.Errorf("CacheTTL = %v, want 6h", cfg.CacheTTL.Std())
	}

	if err := os.WriteFile(ConfigPath(root),
		[]byte("job_id: j\nstyle: numeric\ncache_ttl: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Error("Load() should reject an unparseable duration")
	}
}

func TestLoadRejectsMissingJobID(t *testing.T) {
	root := newWorkspace(t)
	if err := os.WriteFile(ConfigPath(root), []byte("style: numeric\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(root)
	if err == nil || !strings.Contains(err.Error(), "job_id") {
		t.Errorf("Load() error = %v, want missing job_id", err)
	}
}

func TestLoadRejectsBadStyle(t *testing.T) {
	root := newWorkspace(t)
	if err := os.WriteFile(ConfigPath(root), []byte("job_id: j\nstyle: chicago\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(root); err == nil {
		t.Error("Load() should reject unknown style")
	}
}

func TestLoadMissingFile(t *testing.T) {
	root := newWorkspace(t)
	if _, err := Load(root); err == nil {
		t.Error("Load() should fail with no config file")
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"title threshold above 1", func(c *Config) { c.TitleThreshold = 1.5 }},
		{"title threshold negative", func(c *Config) { c.TitleThreshold = -0.1 }},
		{"author threshold above 1", func(c *Config) { c.AuthorThreshold = 2 }},
		{"over-reliance above 1", func(c *Config) { c.OverRelianceFraction = 1.1 }},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }},
		{"bad style", func(c *Config) { c.Style = "mla" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("job-v")
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestFindWorkspaceWalksUp(t *testing.T) {
	t.Setenv(RootEnv, "")
	root := newWorkspace(t)
	nested := filepath.Join(root, "analysis", "results")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindWorkspace(nested)
	if err != nil {
		t.Fatalf("FindWorkspace() error = %v", err)
	}
	want, _ := filepath.Abs(root)
	gotAbs, _ := filepath.Abs(got)
	// TempDir may live behind a symlink; compare resolved paths.
	wantReal, _ := filepath.EvalSymlinks(want)
	gotReal, _ := filepath.EvalSymlinks(gotAbs)
	if gotReal != wantReal {
		t.Errorf("FindWorkspace() = %q, want %q", got, want)
	}
}

func TestFindWorkspaceNotFound(t *testing.T) {
	t.Setenv(RootEnv, "")
	dir := t.TempDir()

	if _, err := FindWorkspace(dir); err == nil {
		t.Error("FindWorkspace() should fail outside any workspace")
	}
}

func TestFindWorkspaceRootEnv(t *testing.T) {
	root := newWorkspace(t)
	t.Setenv(RootEnv, root)

	// CT_ROOT wins regardless of the start path.
	got, err := FindWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("FindWorkspace() error = %v", err)
	}
	if got != root {
		t.Errorf("FindWorkspace() = %q, want %q", got, root)
	}

	t.Setenv(RootEnv, t.TempDir())
	if _, err := FindWorkspace("."); err == nil {
		t.Errorf("FindWorkspace() should reject a %s that is not a workspace", RootEnv)
	}
}

func TestIsWorkspace(t *testing.T) {
	root := newWorkspace(t)
	if !IsWorkspace(root) {
		t.Error("IsWorkspace() = false for a workspace root")
	}
	if IsWorkspace(t.TempDir()) {
		t.Error("IsWorkspace() = true for an empty dir")
	}

	// A plain file named .citetrack does not count.
	dir := t.TempDir()
	if err := os.WriteFile(WorkspacePath(dir), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if IsWorkspace(dir) {
		t.Error("IsWorkspace() = true for a file")
	}
}

func TestParsedStyle(t *testing.T) {
	cfg := Default("job-s")
	if cfg.ParsedStyle() != "author-date" {
		t.Errorf("ParsedStyle() = %q", cfg.ParsedStyle())
	}

	cfg.Style = "nonsense"
	defer func() {
		if recover() == nil {
			t.Error("ParsedStyle() should panic on an unvalidated style")
		}
	}()
	cfg.ParsedStyle()
}
