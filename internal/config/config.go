package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and supporting
// services.
type Config struct {
	ListenAddr     string
	DataDir        string
	RequestTimeout time.Duration

	GenAPIKey  string
	GenBaseURL string
	GenModel   string

	InitialCredits int
	WatermarkText  string

	AdminUsername string
	AdminPassword string
	AdminToken    string

	StoreBackend string // "file" or "mysql"
	MySQLDSN     string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// S3Enabled reports whether the optional generated-image mirror is configured.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultGenBaseURL = "https://api.ephone.ai"

	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DataDir:         getEnv("DATA_DIR", "data"),
		RequestTimeout:  time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		GenBaseURL:      normalizeBaseURL(getEnv("GEN_BASE_URL", defaultGenBaseURL), defaultGenBaseURL),
		GenModel:        getEnv("GEN_MODEL", "gemini-2.5-flash-image-preview"),
		InitialCredits:  getInt("INITIAL_CREDITS", 10),
		WatermarkText:   getEnv("WATERMARK_TEXT", "Nano Banana Supermarket"),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "change-me"),
		AdminToken:      getEnv("ADMIN_TOKEN", "admin-secret-token"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", "file")),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:        getEnv("S3_PREFIX", "generated"),
	}

	cfg.GenAPIKey = os.Getenv("GEN_API_KEY")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")

	var missing []string
	if cfg.GenAPIKey == "" {
		missing = append(missing, "GEN_API_KEY")
	}
	if cfg.StoreBackend == "mysql" && cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.S3Enabled() {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.StoreBackend != "file" && cfg.StoreBackend != "mysql" {
		return Config{}, fmt.Errorf("unsupported STORE_BACKEND %q (want file or mysql)", cfg.StoreBackend)
	}
	if cfg.InitialCredits < 0 {
		return Config{}, fmt.Errorf("INITIAL_CREDITS must not be negative")
	}

	return cfg, nil
}

// normalizeBaseURL keeps the gateway base URL scheme-qualified. Relay
// providers document the bare host in places, which would otherwise produce
// relative request URLs.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// No env file is fine; everything can come from the process environment.
	return nil
}
