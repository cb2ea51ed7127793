// Package config provides configuration loading and structs for the pageproof server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and uploaded files.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// OpenAIConfig holds model settings. The API key is never read from YAML;
// it comes from the OPENAI_API_KEY environment variable (or a .env file).
type OpenAIConfig struct {
	APIKey              string `yaml:"-"`
	ChatModel           string `yaml:"chat_model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
}

// RetrievalConfig holds nearest-neighbour and gating settings.
type RetrievalConfig struct {
	TopK              int     `yaml:"top_k"`
	MaxContextChunks  int     `yaml:"max_context_chunks"`
	MaxVectorDistance float64 `yaml:"max_vector_distance"`
	MinKeywordOverlap int     `yaml:"min_keyword_overlap"`
}

// EvidenceConfig holds candidate scoring and selection thresholds.
type EvidenceConfig struct {
	QuestionWeight         float64 `yaml:"question_weight"`
	AnswerWeight           float64 `yaml:"answer_weight"`
	RelativeScoreThreshold float64 `yaml:"relative_score_threshold"`
	DropRatioStop          float64 `yaml:"drop_ratio_stop"`
	MinAbsoluteScore       float64 `yaml:"min_absolute_score"`
	MaxEvidenceItems       int     `yaml:"max_evidence_items"`
	MinEvidenceItems       int     `yaml:"min_evidence_items"`
	RequireCitations       *bool   `yaml:"require_citations"`
	MatchThreshold         float64 `yaml:"match_threshold"`
}

// RequireCitationsOrDefault returns whether cited chunk ids are mandatory;
// defaults to true when unset.
func (e *EvidenceConfig) RequireCitationsOrDefault() bool {
	if e.RequireCitations != nil {
		return *e.RequireCitations
	}
	return true
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // target chunk size in words
	ChunkOverlap int `yaml:"chunk_overlap"` // overlapping lines between consecutive chunks
}

// WatchConfig holds drop-directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and picks up the OpenAI API key from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory changes.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
