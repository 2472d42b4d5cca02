package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// FFmpegPath is the ffmpeg binary used to encode preview videos
	FFmpegPath string `json:"ffmpeg_path,omitempty"`

	// VideoCodec is the ffmpeg codec name (e.g. "libvpx-vp9", "libx264")
	VideoCodec string `json:"video_codec,omitempty"`

	// VideoFormat is the container format and file extension (e.g. "webm", "mp4")
	VideoFormat string `json:"video_format,omitempty"`

	// VideoQuality is the CRF passed to the encoder. Lower is better.
	VideoQuality int `json:"video_quality,omitempty"`

	// DemoBaseURL is prepended to relative image paths of demo projects before
	// they are fetched. Absolute URLs and s3:// references are used as-is.
	// It may be a URL or a local directory holding the movies/ tree. There is
	// no default: the seeded demos store relative paths, so previewing or
	// exporting them fails with NO_CONTENT until this is set.
	DemoBaseURL string `json:"demo_base_url,omitempty"`

	// ExportWorkers limits concurrent frame decodes during export.
	ExportWorkers int `json:"export_workers,omitempty"`

	// ResolveWorkers limits concurrent fetches of remote frame images.
	ResolveWorkers int `json:"resolve_workers,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Storage configures the object store used for s3:// image references.
	Storage StorageConfig `json:"storage,omitempty"`
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	Endpoint  string `json:"endpoint,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

// Enabled reports whether enough storage settings are present to create a client.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:     "ffmpeg",
		VideoCodec:     "libvpx-vp9",
		VideoFormat:    "webm",
		VideoQuality:   32,
		ExportWorkers:  4,
		ResolveWorkers: 4,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.onion.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.onion) and repo (.onion) directories.
// Repo config is found by walking upward from startDir to find the nearest .onion/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// LoadEnv fills unset storage settings from ONION_S3_* environment variables.
// A .env file in baseDir is read first if present; variables already set in
// the process environment win over the file.
func LoadEnv(cfg *Config, baseDir string) error {
	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return err
		}
	}

	s := &cfg.Storage
	setIfEmpty(&s.Endpoint, "ONION_S3_ENDPOINT")
	setIfEmpty(&s.Bucket, "ONION_S3_BUCKET")
	setIfEmpty(&s.AccessKey, "ONION_S3_ACCESS_KEY")
	setIfEmpty(&s.SecretKey, "ONION_S3_SECRET_KEY")
	if !s.UseSSL {
		s.UseSSL = strings.EqualFold(strings.TrimSpace(os.Getenv("ONION_S3_USE_SSL")), "true")
	}
	return nil
}

func setIfEmpty(dst *string, key string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(os.Getenv(key))
}

// FindRepoConfig walks upward from startDir to find the nearest .onion/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".onion", "config.json")
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

	result.FFmpegPath = pickString(overlay.FFmpegPath, base.FFmpegPath)
	result.VideoCodec = pickString(overlay.VideoCodec, base.VideoCodec)
	result.VideoFormat = pickString(overlay.VideoFormat, base.VideoFormat)
	result.DemoBaseURL = pickString(overlay.DemoBaseURL, base.DemoBaseURL)

	result.VideoQuality = pickInt(overlay.VideoQuality, base.VideoQuality)
	result.ExportWorkers = pickInt(overlay.ExportWorkers, base.ExportWorkers)
	result.ResolveWorkers = pickInt(overlay.ResolveWorkers, base.ResolveWorkers)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Storage = StorageConfig{
		Endpoint:  pickString(overlay.Storage.Endpoint, base.Storage.Endpoint),
		Bucket:    pickString(overlay.Storage.Bucket, base.Storage.Bucket),
		AccessKey: pickString(overlay.Storage.AccessKey, base.Storage.AccessKey),
		SecretKey: pickString(overlay.Storage.SecretKey, base.Storage.SecretKey),
		UseSSL:    base.Storage.UseSSL || overlay.Storage.UseSSL,
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
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
