package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port              string
	IsProduction      bool
	LogLevel          string
	JWTSecret         string
	JWTIssuer         string
	JWTExpiryDuration time.Duration
	RateLimit         string
	CORSOrigins       []string
	MetricsEnabled    bool
	PosthogAPIKey     string
	PosthogEndpoint   string

	// WorkbookFilename is the canonical system-of-record file.
	WorkbookFilename string
	RemoteDriver     string
	RemoteTimeout    time.Duration

	GitHub GitHubConfig
	S3     S3Config
	// FSDataDir is the directory used by the fs driver.
	FSDataDir string
}

// GitHubConfig locates the repository holding the workbook.
type GitHubConfig struct {
	Owner         string
	Repository    string
	Branch        string
	DataPath      string
	TemplatesPath string
	Token         string
	APIBaseURL    string
	RawBaseURL    string
}

// S3Config locates the bucket holding the workbook.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
}

// LoadConfig loads configuration from environment variables and a .env file if present.
// envFile overrides the default .env lookup when not empty.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, err
		}
	} else {
		// Attempt to load .env file, ignore error if it doesn't exist
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:             v.GetString("PORT"),
		IsProduction:     v.GetBool("IS_PRODUCTION"),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTIssuer:        v.GetString("JWT_ISSUER"),
		RateLimit:        v.GetString("RATE_LIMIT"),
		CORSOrigins:      splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MetricsEnabled:   v.GetBool("METRICS_ENABLED"),
		PosthogAPIKey:    v.GetString("POSTHOG_API_KEY"),
		PosthogEndpoint:  v.GetString("POSTHOG_ENDPOINT"),
		WorkbookFilename: v.GetString("WORKBOOK_FILENAME"),
		RemoteDriver:     strings.ToLower(v.GetString("REMOTE_DRIVER")),
		FSDataDir:        v.GetString("FS_DATA_DIR"),
		GitHub: GitHubConfig{
			Owner:         v.GetString("GITHUB_OWNER"),
			Repository:    v.GetString("GITHUB_REPOSITORY"),
			Branch:        v.GetString("GITHUB_BRANCH"),
			DataPath:      strings.Trim(v.GetString("GITHUB_DATA_PATH"), "/"),
			TemplatesPath: strings.Trim(v.GetString("GITHUB_TEMPLATES_PATH"), "/"),
			Token:         v.GetString("GITHUB_TOKEN"),
			APIBaseURL:    strings.TrimRight(v.GetString("GITHUB_API_BASE_URL"), "/"),
			RawBaseURL:    strings.TrimRight(v.GetString("GITHUB_RAW_BASE_URL"), "/"),
		},
		S3: S3Config{
			Bucket:    v.GetString("S3_BUCKET"),
			Region:    v.GetString("S3_REGION"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			Prefix:    strings.Trim(v.GetString("S3_PREFIX"), "/"),
			PathStyle: v.GetBool("S3_PATH_STYLE"),
		},
	}

	cfg.JWTExpiryDuration = parseDuration(v, "JWT_EXPIRY_DURATION", time.Hour)
	cfg.RemoteTimeout = parseDuration(v, "REMOTE_TIMEOUT", 30*time.Second)

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	switch cfg.RemoteDriver {
	case "github":
		if cfg.GitHub.Owner == "" || cfg.GitHub.Repository == "" {
			log.Println("Warning: GITHUB_OWNER/GITHUB_REPOSITORY not set. Remote loads will fall back to default data.")
		}
		if cfg.GitHub.Token == "" {
			log.Println("Warning: GITHUB_TOKEN not set. Saving to GitHub will fail.")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			log.Println("Warning: S3_BUCKET not set. The s3 driver cannot start.")
		}
	case "fs", "memory":
	default:
		log.Printf("Warning: Unknown REMOTE_DRIVER ('%s'). Defaulting to github.\n", cfg.RemoteDriver)
		cfg.RemoteDriver = "github"
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "kiosc-finance-app")
	v.SetDefault("JWT_EXPIRY_DURATION", "1h")
	v.SetDefault("RATE_LIMIT", "100-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("POSTHOG_API_KEY", "")
	v.SetDefault("POSTHOG_ENDPOINT", "https://eu.i.posthog.com")
	v.SetDefault("WORKBOOK_FILENAME", "KIOSC_Finance_Data.xlsx")
	v.SetDefault("REMOTE_DRIVER", "github")
	v.SetDefault("REMOTE_TIMEOUT", "30s")
	v.SetDefault("GITHUB_OWNER", "")
	v.SetDefault("GITHUB_REPOSITORY", "")
	v.SetDefault("GITHUB_BRANCH", "main")
	v.SetDefault("GITHUB_DATA_PATH", "data")
	v.SetDefault("GITHUB_TEMPLATES_PATH", "templates")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_API_BASE_URL", "https://api.github.com")
	v.SetDefault("GITHUB_RAW_BASE_URL", "https://raw.githubusercontent.com")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_PREFIX", "data")
	v.SetDefault("S3_PATH_STYLE", false)
	v.SetDefault("FS_DATA_DIR", "./data")
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback.String())
		}
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
