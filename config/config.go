// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"line-comicbot/gemini"
	"line-comicbot/pkg/gallery"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
)

const (
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultGeminiTimeout     = 120 * time.Second
	defaultLoadingSeconds    = 60
	defaultMaxImageEdge      = 1536
	defaultWorkflowTimeout   = 5 * time.Minute
	defaultLocalStorage      = "./data"
	defaultWorkerConcurrency = 4
)

// Config is the full runtime configuration. The env tag names the variable
// each field is read from and is used in validation messages.
type Config struct {
	Port     string `env:"PORT" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	LineChannelSecret string `env:"LINE_CHANNEL_SECRET" validate:"required"`
	LineAccessToken   string `env:"LINE_CHANNEL_ACCESS_TOKEN" validate:"required_unless=MockLINE true"`
	MockLINE          bool   `env:"MOCK_LINE"`

	GeminiAPIKey         string        `env:"GEMINI_API_KEY" validate:"required"`
	GeminiBaseURL        string        `env:"GEMINI_BASE_URL" validate:"required,url"`
	GeminiTransformModel string        `env:"GEMINI_TRANSFORM_MODEL" validate:"required"`
	GeminiAnalysisModel  string        `env:"GEMINI_ANALYSIS_MODEL" validate:"required"`
	GeminiTimeout        time.Duration `env:"GEMINI_TIMEOUT" validate:"gt=0"`

	GateOnPoseDetection bool          `env:"GATE_ON_POSE_DETECTION"`
	EchoText            bool          `env:"ECHO_TEXT"`
	LoadingSeconds      int           `env:"LOADING_SECONDS"`
	MaxImageEdge        int           `env:"MAX_IMAGE_EDGE" validate:"gte=0"`
	WorkflowTimeout     time.Duration `env:"WORKFLOW_TIMEOUT" validate:"gte=0"`

	LIFFBaseURL string `env:"LIFF_BASE_URL" validate:"required,url"`
	LIFFID      string `env:"LIFF_ID" validate:"required"`

	StorageBucket         string `env:"STORAGE_BUCKET" validate:"required_with=S3Endpoint"`
	GoogleCredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	S3Endpoint            string `env:"S3_ENDPOINT"`
	S3AccessKey           string `env:"S3_ACCESS_KEY" validate:"required_with=S3Endpoint"`
	S3SecretKey           string `env:"S3_SECRET_KEY" validate:"required_with=S3Endpoint"`
	S3Region              string `env:"S3_REGION"`
	S3UseSSL              bool   `env:"S3_USE_SSL"`
	PublicBaseURL         string `env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	LocalStorage          string `env:"LOCAL_STORAGE"`

	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisDB           int    `env:"REDIS_DB" validate:"gte=0"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" validate:"gt=0"`
}

// Load reads .env (when present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     readEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(readEnv("LOG_LEVEL", defaultLogLevel)),

		LineChannelSecret: readEnv("LINE_CHANNEL_SECRET", ""),
		LineAccessToken:   readEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		MockLINE:          parseBool("MOCK_LINE", false),

		GeminiAPIKey:         readEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:        readEnv("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		GeminiTransformModel: readEnv("GEMINI_TRANSFORM_MODEL", gemini.DefaultTransformModel),
		GeminiAnalysisModel:  readEnv("GEMINI_ANALYSIS_MODEL", gemini.DefaultAnalysisModel),
		GeminiTimeout:        parseDuration("GEMINI_TIMEOUT", defaultGeminiTimeout),

		GateOnPoseDetection: parseBool("GATE_ON_POSE_DETECTION", false),
		EchoText:            parseBool("ECHO_TEXT", false),
		LoadingSeconds:      parseInt("LOADING_SECONDS", defaultLoadingSeconds),
		MaxImageEdge:        parseInt("MAX_IMAGE_EDGE", defaultMaxImageEdge),
		WorkflowTimeout:     parseDuration("WORKFLOW_TIMEOUT", defaultWorkflowTimeout),

		LIFFBaseURL: strings.TrimRight(readEnv("LIFF_BASE_URL", gallery.DefaultLIFFBaseURL), "/"),
		LIFFID:      readEnv("LIFF_ID", ""),

		StorageBucket:         readEnv("STORAGE_BUCKET", ""),
		GoogleCredentialsJSON: readEnv("GOOGLE_CREDENTIALS_JSON", ""),
		S3Endpoint:            readEnv("S3_ENDPOINT", ""),
		S3AccessKey:           readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           readEnv("S3_SECRET_KEY", ""),
		S3Region:              readEnv("S3_REGION", ""),
		S3UseSSL:              parseBool("S3_USE_SSL", true),
		PublicBaseURL:         strings.TrimRight(readEnv("PUBLIC_BASE_URL", ""), "/"),
		LocalStorage:          readEnv("LOCAL_STORAGE", defaultLocalStorage),

		RedisAddr:         readEnv("REDIS_ADDR", ""),
		RedisPassword:     readEnv("REDIS_PASSWORD", ""),
		RedisDB:           parseInt("REDIS_DB", 0),
		WorkerConcurrency: parseInt("WORKER_CONCURRENCY", defaultWorkerConcurrency),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and backend combinations.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_unless":
		return fe.Field() + " is required unless MOCK_LINE is set"
	case "required_with":
		return fe.Field() + " is required when S3_ENDPOINT is set"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " must be a URL"
	default:
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
}

// Backend reports which blob store the settings select.
func (c *Config) Backend() string {
	switch {
	case c.S3Endpoint != "":
		return BackendS3
	case c.StorageBucket != "":
		return BackendGCS
	default:
		return BackendLocal
	}
}

// UseQueue reports whether jobs go through Redis instead of running in-process.
func (c *Config) UseQueue() bool {
	return c.RedisAddr != ""
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadDotEnv exports variables from path without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
