package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// defaultModels is the primary model per provider when LLM_MODEL is unset.
var defaultModels = map[string]string{
	ProviderGemini:     "gemini-2.5-flash",
	ProviderOpenRouter: "google/gemini-2.5-flash",
}

type Config struct {
	HTTPAddr          string
	LogLevel          slog.Level
	LLMProvider       string
	LLMModel          string
	LLMFallbackModels []string
	GeminiAPIKey      string
	GeminiBaseURL     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	// LLMTimeout bounds each batch generation and the wait for stream headers.
	LLMTimeout     time.Duration
	LLMJSONRepairs int
	SpinDuration   time.Duration
}

// Load reads configuration from the environment, after loading envFiles
// (default ".env") when they exist. Every invalid variable is reported, not
// just the first.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var env envReader
	c := Config{
		HTTPAddr:          env.str("HTTP_ADDR", ":8080"),
		LogLevel:          env.level("LOG_LEVEL", slog.LevelInfo),
		LLMProvider:       strings.ToLower(env.str("LLM_PROVIDER", ProviderGemini)),
		LLMFallbackModels: env.list("LLM_FALLBACK_MODELS"),
		GeminiAPIKey:      env.str("GEMINI_API_KEY", ""),
		GeminiBaseURL:     env.str("GEMINI_BASE_URL", ""),
		OpenRouterAPIKey:  env.str("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: env.str("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMTimeout:        env.duration("LLM_TIMEOUT", 30*time.Second),
		LLMJSONRepairs:    env.count("LLM_JSON_REPAIRS", 1),
		SpinDuration:      env.duration("SPIN_DURATION", 4*time.Second),
	}

	model, ok := defaultModels[c.LLMProvider]
	if !ok {
		env.fail("LLM_PROVIDER", c.LLMProvider, errors.New("want gemini or openrouter"))
	}
	c.LLMModel = env.str("LLM_MODEL", model)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// APIKey returns the credential of the selected provider. It may be empty:
// the service still starts, and remote calls fail with a missing credential.
func (c Config) APIKey() string {
	if c.LLMProvider == ProviderOpenRouter {
		return c.OpenRouterAPIKey
	}
	return c.GeminiAPIKey
}

// envReader reads typed variables and collects parse failures. Unset and
// blank variables take the default.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) list(key string) []string {
	return strings.FieldsFunc(os.Getenv(key), func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t'
	})
}

func (r *envReader) level(key string, def slog.Level) slog.Level {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		r.fail(key, v, err)
		return def
	}
	return l
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) count(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}
