package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFromPathDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "anthropic:\n  api_key: test-key\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("api key = %q, want test-key", cfg.Anthropic.APIKey)
	}
	if cfg.Limits.MaxSubtasksPerParent != 10 {
		t.Errorf("max subtasks = %d, want default 10", cfg.Limits.MaxSubtasksPerParent)
	}
	if cfg.Limits.ListDefault != 20 {
		t.Errorf("list default = %d, want 20", cfg.Limits.ListDefault)
	}
	if cfg.Planner.Timeout != 60*time.Second {
		t.Errorf("planner timeout = %v, want 60s", cfg.Planner.Timeout)
	}
	if cfg.Model.Name == "" {
		t.Error("model name default missing")
	}
	if cfg.Cost.TokensByRole["researcher"] != 12000 {
		t.Errorf("researcher tokens = %d, want 12000", cfg.Cost.TokensByRole["researcher"])
	}
}

func TestLoadFromPathOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
model:
  name: claude-haiku-4-5
  use_aws_bedrock: true
  aws_region: us-west-2
planner:
  timeout: 30s
limits:
  max_subtasks_per_parent: 5
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Model.Name != "claude-haiku-4-5" {
		t.Errorf("model = %q", cfg.Model.Name)
	}
	if !cfg.Model.UseAWSBedrock || cfg.Model.AWSRegion != "us-west-2" {
		t.Errorf("bedrock config = %+v", cfg.Model)
	}
	if cfg.Planner.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Planner.Timeout)
	}
	if cfg.Limits.MaxSubtasksPerParent != 5 {
		t.Errorf("max subtasks = %d, want 5", cfg.Limits.MaxSubtasksPerParent)
	}
}

func TestLoadRoleKeywords(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".orchid.yaml", `
planner:
  role_keywords:
    researcher: [benchmark, survey]
    video-editor: [edit, render]
`)

	kws, err := loadRoleKeywordsFromPath(path)
	if err != nil {
		t.Fatalf("loadRoleKeywordsFromPath failed: %v", err)
	}
	if len(kws["researcher"]) != 2 || kws["researcher"][0] != "benchmark" {
		t.Errorf("researcher keywords = %v", kws["researcher"])
	}
	if len(kws["video-editor"]) != 2 {
		t.Errorf("video-editor keywords = %v", kws["video-editor"])
	}
}

func TestLoadRoleKeywordsAbsentSection(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".orchid.yaml", "limits:\n  max_subtasks_per_parent: 3\n")

	kws, err := loadRoleKeywordsFromPath(path)
	if err != nil {
		t.Fatalf("loadRoleKeywordsFromPath failed: %v", err)
	}
	if len(kws) != 0 {
		t.Errorf("keywords = %v, want empty", kws)
	}
}
