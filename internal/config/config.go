package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
// It is built once at startup and passed to every component that needs it.
type Config struct {
	Port                  string
	Env                   string
	DatabaseURL           string
	Supabase              SupabaseConfig
	Auth                  AuthConfig
	LLM                   LLMConfig
	ImageGen              ImageGenConfig
	GitHub                GitHubConfig
	Cloudflare            CloudflareConfig
	Vercel                VercelConfig
	AssetScanSecret       string
	AssetScanBatchSize    int
	GenerationConcurrency int
	LessonValidation      string
	MediaStoragePath      string
	MetricsDiskPath       string
	MetricsSampleSeconds  int
	CorsOrigins           []string
	LogDir                string
	LogRetentionDays      int
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
}

type AuthConfig struct {
	JWTSecret              string
	JWTIssuer              string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// LLMConfig describes the OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// Configured reports whether any LLM endpoint has been set up. Self-hosted
// endpoints may run without a key, so either value is enough.
func (c LLMConfig) Configured() bool {
	return c.BaseURL != "" || c.APIKey != ""
}

type ImageGenConfig struct {
	BaseURL            string
	AccessClientID     string
	AccessClientSecret string
	Timeout            time.Duration
	MaxAttempts        int
}

type GitHubConfig struct {
	Token      string
	Repo       string
	Branch     string
	ContentDir string
}

func (c GitHubConfig) Configured() bool {
	return c.Token != "" && c.Repo != ""
}

type CloudflareConfig struct {
	APIToken  string
	AccountID string
}

type VercelConfig struct {
	Token     string
	ProjectID string
}

const (
	ValidationStrict  = "strict"
	ValidationLenient = "lenient"
)

func Load() (Config, error) {
	var missing []string
	required := func(key string) string {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			missing = append(missing, key)
		}
		return value
	}

	cfg := Config{
		Port:        envOr("PORT", "8080"),
		Env:         envOr("APP_ENV", "development"),
		DatabaseURL: required("DATABASE_URL"),
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(envOr("SUPABASE_URL", ""), "/"),
			ServiceRoleKey: envOr("SUPABASE_SERVICE_ROLE_KEY", ""),
		},
		Auth: AuthConfig{
			JWTSecret:              required("JWT_SECRET"),
			JWTIssuer:              envOr("JWT_ISSUER", "brightsteps"),
			AccessTTL:              time.Duration(envOrInt("ACCESS_TTL_SECONDS", 14400)) * time.Second,
			RefreshTTL:             time.Duration(envOrInt("REFRESH_TTL_SECONDS", 1209600)) * time.Second,
			BootstrapAdminEmail:    strings.ToLower(envOr("BOOTSTRAP_ADMIN_EMAIL", "")),
			BootstrapAdminPassword: envOr("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		LLM: LLMConfig{
			BaseURL:     strings.TrimRight(envOr("LLM_BASE_URL", ""), "/"),
			APIKey:      envOr("LLM_API_KEY", ""),
			Model:       envOr("LLM_MODEL", ""),
			Timeout:     time.Duration(envOrInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
			MaxAttempts: envOrInt("LLM_MAX_ATTEMPTS", 2),
		},
		ImageGen: ImageGenConfig{
			BaseURL:            strings.TrimRight(envOr("COMFYUI_BASE_URL", ""), "/"),
			AccessClientID:     envOr("CF_ACCESS_CLIENT_ID", ""),
			AccessClientSecret: envOr("CF_ACCESS_CLIENT_SECRET", ""),
			Timeout:            time.Duration(envOrInt("IMAGEGEN_TIMEOUT_SECONDS", 180)) * time.Second,
			MaxAttempts:        envOrInt("IMAGEGEN_MAX_ATTEMPTS", 2),
		},
		GitHub: GitHubConfig{
			Token:      envOr("GITHUB_SYNC_TOKEN", ""),
			Repo:       envOr("GITHUB_SYNC_REPO", ""),
			Branch:     envOr("GITHUB_SYNC_BRANCH", "main"),
			ContentDir: strings.Trim(envOr("GITHUB_SYNC_DIR", "content/lessons"), "/"),
		},
		Cloudflare: CloudflareConfig{
			APIToken:  envOr("CLOUDFLARE_API_TOKEN", ""),
			AccountID: envOr("CLOUDFLARE_ACCOUNT_ID", ""),
		},
		Vercel: VercelConfig{
			Token:     envOr("VERCEL_TOKEN", ""),
			ProjectID: envOr("VERCEL_PROJECT_ID", ""),
		},
		AssetScanSecret:       envOr("ADMIN_ASSET_SECRET", ""),
		AssetScanBatchSize:    envOrInt("ASSET_SCAN_BATCH_SIZE", 25),
		GenerationConcurrency: envOrInt("GENERATION_CONCURRENCY", 2),
		LessonValidation:      parseValidationMode(envOr("LESSON_VALIDATION", ValidationStrict)),
		MediaStoragePath:      envOr("MEDIA_STORAGE_PATH", "storage/media"),
		MetricsDiskPath:       envOr("METRICS_DISK_PATH", "storage/media"),
		MetricsSampleSeconds:  envOrInt("METRICS_SAMPLE_INTERVAL", 15),
		CorsOrigins:           parseCSV(envOr("CORS_ORIGINS", "")),
		LogDir:                envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays:      envOrInt("LOG_RETENTION_DAYS", 7),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.AssetScanBatchSize <= 0 {
		cfg.AssetScanBatchSize = 25
	}
	if cfg.GenerationConcurrency <= 0 {
		cfg.GenerationConcurrency = 1
	}
	if cfg.LogRetentionDays <= 0 || cfg.LogRetentionDays > 7 {
		cfg.LogRetentionDays = 7
	}
	if cfg.MetricsSampleSeconds <= 0 {
		cfg.MetricsSampleSeconds = 15
	}
	return cfg, nil
}

func parseValidationMode(raw string) string {
	if strings.EqualFold(raw, ValidationLenient) {
		return ValidationLenient
	}
	return ValidationStrict
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
