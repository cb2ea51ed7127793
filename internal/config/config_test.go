package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_apiKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.OpenAI.APIKey)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/documents.db"
  upload_dir: "./data/uploads"
watch:
  directories: ["./dev/inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "documents.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantUpload := filepath.Join(dir, "data", "uploads")
	if cfg.Storage.UploadDir != wantUpload {
		t.Errorf("upload_dir = %s, want %s", cfg.Storage.UploadDir, wantUpload)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "inbox")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("default chat model: got %s", cfg.OpenAI.ChatModel)
	}
	if cfg.OpenAI.EmbeddingDimensions != 1536 {
		t.Errorf("default embedding dimensions: got %d", cfg.OpenAI.EmbeddingDimensions)
	}
	if cfg.Retrieval.TopK != 8 || cfg.Retrieval.MaxContextChunks != 6 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.MaxVectorDistance != 1.2 {
		t.Errorf("default max_vector_distance: got %f", cfg.Retrieval.MaxVectorDistance)
	}
	if cfg.Evidence.QuestionWeight != 0.2 || cfg.Evidence.AnswerWeight != 0.8 {
		t.Errorf("weight defaults: q=%f a=%f", cfg.Evidence.QuestionWeight, cfg.Evidence.AnswerWeight)
	}
	if cfg.Evidence.RelativeScoreThreshold != 0.60 || cfg.Evidence.DropRatioStop != 0.72 {
		t.Errorf("selector defaults: %+v", cfg.Evidence)
	}
	if cfg.Evidence.MinAbsoluteScore != 0.20 {
		t.Errorf("default min_absolute_score: got %f", cfg.Evidence.MinAbsoluteScore)
	}
	if cfg.Evidence.MaxEvidenceItems != 0 {
		t.Errorf("max_evidence_items should default to 0 (no cap), got %d", cfg.Evidence.MaxEvidenceItems)
	}
	if cfg.Evidence.MinEvidenceItems != 1 {
		t.Errorf("default min_evidence_items: got %d", cfg.Evidence.MinEvidenceItems)
	}
	if cfg.Evidence.MatchThreshold != 0.80 {
		t.Errorf("default match_threshold: got %f", cfg.Evidence.MatchThreshold)
	}
	if !cfg.Evidence.RequireCitationsOrDefault() {
		t.Error("require_citations should default to true")
	}
}

func TestApplyDefaults_explicitAnswerWeightSurvives(t *testing.T) {
	cfg := &Config{}
	cfg.Evidence.AnswerWeight = 1.0
	ApplyDefaults(cfg)
	if cfg.Evidence.QuestionWeight != 0 {
		t.Errorf("question weight should stay 0 when answer weight is set, got %f", cfg.Evidence.QuestionWeight)
	}
	if cfg.Evidence.AnswerWeight != 1.0 {
		t.Errorf("answer weight changed: got %f", cfg.Evidence.AnswerWeight)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestEvidenceConfig_RequireCitationsOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		e := &EvidenceConfig{}
		if !e.RequireCitationsOrDefault() {
			t.Error("want true for unset")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		e := &EvidenceConfig{RequireCitations: &f}
		if e.RequireCitationsOrDefault() {
			t.Error("want false when explicitly disabled")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
