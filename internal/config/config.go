package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database         DatabaseConfig   `json:"database"`
	JWTSecret        string           `json:"jwt_secret"`
	Port             int              `json:"port"`
	JWTTTLHours      int              `json:"jwt_ttl_hours"`
	LogConfig        logger.LogConfig `json:"log_config"`
	FileStore        FileStoreConfig  `json:"file_store"`
	LLM              LLMConfig        `json:"llm"`
	Embedding        EmbeddingConfig  `json:"embedding"`
	RAG              RAGConfig        `json:"rag"`
	Schedule         ScheduleConfig   `json:"schedule"`
	CORSOrigins      []string         `json:"cors_origins"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`

	MaxOpenConns int `json:"max_open_conns"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// LLMConfig selects the structured-generation provider.
type LLMConfig struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url"`
	HTTPReferer   string `json:"http_referer"`
	XTitle        string `json:"x_title"`
	Timeout       int    `json:"timeout"`
	MaxInputChars int    `json:"max_input_chars"`
	// RequestsPerSecond throttles upstream calls; 0 means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type EmbeddingConfig struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	APIKey          string `json:"api_key"`
	BaseURL         string `json:"base_url"`
	Dimensions      int    `json:"dimensions"`
	Concurrency     int    `json:"concurrency"`
	LRUSize         int    `json:"lru_size"`
	LRUTTLSeconds   int    `json:"lru_ttl_seconds"`
	DBCache         bool   `json:"db_cache"`
	CacheMaxAgeDays int    `json:"cache_max_age_days"`

	RequestsPerSecond float64     `json:"requests_per_second"`
	Redis             RedisConfig `json:"redis"`
}

// RedisConfig enables the shared embedding cache when Addr is set.
type RedisConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type RAGConfig struct {
	TargetSize        int     `json:"target_size"`
	Overlap           int     `json:"overlap"`
	MatchCount        int     `json:"match_count"`
	MatchThreshold    float64 `json:"match_threshold"`
	SearchMode        string  `json:"search_mode"`
	FlashcardMaxTerms int     `json:"flashcard_max_terms"`
}

type ScheduleConfig struct {
	ReindexSpec      string `json:"reindex_spec"`
	ReindexBatch     int    `json:"reindex_batch"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
}

const (
	SearchModeMemory   = "memory"
	SearchModePGVector = "pgvector"
)

// Load reads a JSON or YAML config file. A .env file next to it (or in the
// working directory) is loaded first so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if raw, err = yamlToJSON(raw); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// yamlToJSON lets YAML files share the json field tags.
func yamlToJSON(raw []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(doc)
}

const envPrefix = "STUDYNOTE_"

// applyEnv overrides secrets and endpoints from STUDYNOTE_* variables.
func (cfg *Config) applyEnv() error {
	strs := map[string]*string{
		"DATABASE_DSN":       &cfg.Database.DSN,
		"DATABASE_PASSWORD":  &cfg.Database.Password,
		"JWT_SECRET":         &cfg.JWTSecret,
		"LLM_API_KEY":        &cfg.LLM.APIKey,
		"LLM_BASE_URL":       &cfg.LLM.BaseURL,
		"EMBEDDING_API_KEY":  &cfg.Embedding.APIKey,
		"EMBEDDING_BASE_URL": &cfg.Embedding.BaseURL,
		"REDIS_ADDR":         &cfg.Embedding.Redis.Addr,
		"REDIS_PASSWORD":     &cfg.Embedding.Redis.Password,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sPORT: %w", envPrefix, err)
		}
		cfg.Port = port
	}
	return nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	cfg.Embedding.Provider = strings.ToLower(strings.TrimSpace(cfg.Embedding.Provider))
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Dimensions <= 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.Concurrency <= 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Redis.Addr != "" && cfg.Embedding.Redis.TTLSeconds <= 0 {
		cfg.Embedding.Redis.TTLSeconds = 7 * 24 * 3600
	}
	if cfg.LLM.RequestsPerSecond < 0 || cfg.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if cfg.Embedding.CacheMaxAgeDays <= 0 {
		cfg.Embedding.CacheMaxAgeDays = 30
	}
	if cfg.RAG.TargetSize <= 0 {
		cfg.RAG.TargetSize = 900
	}
	if cfg.RAG.Overlap <= 0 {
		cfg.RAG.Overlap = 120
	}
	if cfg.RAG.MatchCount <= 0 {
		cfg.RAG.MatchCount = 8
	}
	if cfg.RAG.MatchThreshold <= 0 {
		cfg.RAG.MatchThreshold = 0.4
	}
	if cfg.RAG.FlashcardMaxTerms <= 0 {
		cfg.RAG.FlashcardMaxTerms = 12
	}
	switch cfg.RAG.SearchMode {
	case "":
		cfg.RAG.SearchMode = SearchModeMemory
	case SearchModeMemory, SearchModePGVector:
	default:
		return fmt.Errorf("rag.search_mode must be memory or pgvector")
	}
	if cfg.Schedule.ReindexBatch <= 0 {
		cfg.Schedule.ReindexBatch = 20
	}
	return nil
}
