package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pageproof/data/db/documents.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/pageproof/data/uploads"
	}
	if cfg.Storage.MaxUploadBytes == 0 {
		cfg.Storage.MaxUploadBytes = 50 * 1024 * 1024
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.EmbeddingDimensions == 0 {
		cfg.OpenAI.EmbeddingDimensions = 1536
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.MaxContextChunks == 0 {
		cfg.Retrieval.MaxContextChunks = 6
	}
	if cfg.Retrieval.MaxVectorDistance == 0 {
		cfg.Retrieval.MaxVectorDistance = 1.2
	}
	if cfg.Retrieval.MinKeywordOverlap == 0 {
		cfg.Retrieval.MinKeywordOverlap = 1
	}
	// Weights default together so an explicit zero for one of them survives.
	if cfg.Evidence.QuestionWeight == 0 && cfg.Evidence.AnswerWeight == 0 {
		cfg.Evidence.QuestionWeight = 0.2
		cfg.Evidence.AnswerWeight = 0.8
	}
	if cfg.Evidence.RelativeScoreThreshold == 0 {
		cfg.Evidence.RelativeScoreThreshold = 0.60
	}
	if cfg.Evidence.DropRatioStop == 0 {
		cfg.Evidence.DropRatioStop = 0.72
	}
	if cfg.Evidence.MinAbsoluteScore == 0 {
		cfg.Evidence.MinAbsoluteScore = 0.20
	}
	// MaxEvidenceItems defaults to 0, meaning no cap.
	if cfg.Evidence.MinEvidenceItems == 0 {
		cfg.Evidence.MinEvidenceItems = 1
	}
	if cfg.Evidence.MatchThreshold == 0 {
		cfg.Evidence.MatchThreshold = 0.80
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 120
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 1
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
