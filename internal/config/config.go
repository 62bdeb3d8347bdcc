package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StoreConfig selects and addresses the persistent key-value store.
type StoreConfig struct {
	// Backend is one of sqlite (default), bolt, redis, memory.
	Backend string `json:"backend,omitempty"`

	// Key is the single store key holding the save collection.
	Key string `json:"key,omitempty"`

	// Path is the bolt database file. Empty means <baseDir>/forge.bolt.
	Path string `json:"path,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// LLMConfig addresses the OpenAI-compatible generation endpoint.
type LLMConfig struct {
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is only ever read from the environment.
	APIKey string `json:"-"`
}

// Config holds application configuration.
type Config struct {
	// HistoryWindow is how many recent messages are sent with each turn.
	HistoryWindow int `json:"history_window"`

	// MaxSaveSlots caps the save collection. The oldest slot by last-saved
	// time is evicted when a new slot would exceed it.
	MaxSaveSlots int `json:"max_save_slots"`

	// NoticeSeconds is how long transient save/delete notices stay visible.
	NoticeSeconds int `json:"notice_seconds"`

	// PrefetchDelayMillis spaces customization-tab prefetch calls.
	PrefetchDelayMillis int `json:"prefetch_delay_ms"`

	Store StoreConfig `json:"store"`
	LLM   LLMConfig   `json:"llm"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.forge/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open sqlite connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle sqlite connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool families to disable entirely.
	// Known types: "game", "perspective", "saves".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryWindow:       20,
		MaxSaveSlots:        50,
		NoticeSeconds:       3,
		PrefetchDelayMillis: 1500,
		Store: StoreConfig{
			Backend: BackendSQLite,
			Key:     "adventure-forge:saves",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// NoticeTTL returns NoticeSeconds as a duration.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeSeconds) * time.Second
}

// PrefetchDelay returns PrefetchDelayMillis as a duration.
func (c *Config) PrefetchDelay() time.Duration {
	return time.Duration(c.PrefetchDelayMillis) * time.Millisecond
}

// Load loads configuration from baseDir/config.json, then applies
// environment overrides. Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return cfg, ApplyEnv(cfg)
}

// LoadWithRepo loads configuration from both global (~/.forge) and repo (.forge) directories.
// Repo config is found by walking upward from startDir to find the nearest .forge/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	return cfg, ApplyEnv(cfg)
}

// FindRepoConfig walks upward from startDir to find the nearest .forge/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".forge", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.HistoryWindow = firstNonZero(overlay.HistoryWindow, base.HistoryWindow)
	result.MaxSaveSlots = firstNonZero(overlay.MaxSaveSlots, base.MaxSaveSlots)
	result.NoticeSeconds = firstNonZero(overlay.NoticeSeconds, base.NoticeSeconds)
	result.PrefetchDelayMillis = firstNonZero(overlay.PrefetchDelayMillis, base.PrefetchDelayMillis)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Store = StoreConfig{
		Backend:       firstNonEmpty(overlay.Store.Backend, base.Store.Backend),
		Key:           firstNonEmpty(overlay.Store.Key, base.Store.Key),
		Path:          firstNonEmpty(overlay.Store.Path, base.Store.Path),
		RedisAddr:     firstNonEmpty(overlay.Store.RedisAddr, base.Store.RedisAddr),
		RedisPassword: firstNonEmpty(overlay.Store.RedisPassword, base.Store.RedisPassword),
		RedisDB:       firstNonZero(overlay.Store.RedisDB, base.Store.RedisDB),
	}
	result.LLM = LLMConfig{
		Model:   firstNonEmpty(overlay.LLM.Model, base.LLM.Model),
		BaseURL: firstNonEmpty(overlay.LLM.BaseURL, base.LLM.BaseURL),
		APIKey:  firstNonEmpty(overlay.LLM.APIKey, base.LLM.APIKey),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
