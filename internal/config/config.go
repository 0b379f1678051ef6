package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageAzure = "azure"
)

// Watermark detectors
const (
	WatermarkRandom = "random"
	WatermarkOCR    = "ocr"
	WatermarkNone   = "none"
)

// Vertical symmetry measures
const (
	SymmetryFixed      = "fixed"
	SymmetryStrided    = "strided"
	SymmetryPerceptual = "perceptual"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64
	MaxImagePixels     int

	// Persistence
	DatabasePath          string
	StorageBackend        string
	StorageDir            string
	AzureStorageAccount   string
	AzureStorageKey       string
	AzureStorageContainer string

	// Remote inference API
	RemoteAPIURL       string
	RemotePollAttempts int
	RemotePollInterval time.Duration

	// Engine
	WatermarkDetector     string
	SymmetryVertical      string
	ClassifierWeightsFile string
	ParallelExtractors    bool
	BatchWorkers          int

	PremiumUsers []string
	LogLevel     string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// RemoteTimeout bounds a whole remote analysis: every poll plus one
// request timeout for the upload.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemotePollAttempts)*c.RemotePollInterval + c.RequestTimeout
}

// LoadFromEnv reads configuration from the environment after merging any
// .env file found in the working directory. Variables already set win over
// the file.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxImagePixels:     int(parseIntOrDefault("MAX_IMAGE_PIXELS", 100_000_000)),

		DatabasePath:          getEnvOrDefault("DATABASE_PATH", "pixelcheck.db"),
		StorageBackend:        strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageLocal)),
		StorageDir:            getEnvOrDefault("STORAGE_DIR", "data/images"),
		AzureStorageAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureStorageContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "images"),

		RemoteAPIURL:       strings.TrimRight(getEnvOrDefault("PIXELCHECK_API_URL", "http://localhost:8000/api/v1"), "/"),
		RemotePollAttempts: int(parseIntOrDefault("REMOTE_POLL_ATTEMPTS", 60)),
		RemotePollInterval: parseDurationOrDefault("REMOTE_POLL_INTERVAL", 2*time.Second),

		WatermarkDetector:     strings.ToLower(getEnvOrDefault("WATERMARK_DETECTOR", WatermarkRandom)),
		SymmetryVertical:      strings.ToLower(getEnvOrDefault("SYMMETRY_VERTICAL", SymmetryFixed)),
		ClassifierWeightsFile: os.Getenv("CLASSIFIER_WEIGHTS_FILE"),
		ParallelExtractors:    parseBoolOrDefault("PARALLEL_EXTRACTORS", false),
		BatchWorkers:          int(parseIntOrDefault("BATCH_WORKERS", 0)),

		PremiumUsers: parseList(os.Getenv("PREMIUM_USERS")),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.RemotePollInterval <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, poll=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.RemotePollInterval)
	}
	if c.RemotePollAttempts <= 0 {
		return fmt.Errorf("REMOTE_POLL_ATTEMPTS must be > 0 (got %d)", c.RemotePollAttempts)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageAzure:
		if c.AzureStorageAccount == "" || c.AzureStorageKey == "" {
			return fmt.Errorf("STORAGE_BACKEND=azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.StorageBackend)
	}

	switch c.WatermarkDetector {
	case WatermarkRandom, WatermarkOCR, WatermarkNone:
	default:
		return fmt.Errorf("invalid WATERMARK_DETECTOR: %q", c.WatermarkDetector)
	}

	switch c.SymmetryVertical {
	case SymmetryFixed, SymmetryStrided, SymmetryPerceptual:
	default:
		return fmt.Errorf("invalid SYMMETRY_VERTICAL: %q", c.SymmetryVertical)
	}
	return nil
}

// IsPremiumUser reports whether userID is on the static allow-list.
func (c *Config) IsPremiumUser(userID string) bool {
	for _, u := range c.PremiumUsers {
		if u == userID {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
