// Package config loads the service configuration from environment variables.
//
// Every key has a default. A key that is set but cannot be parsed is an
// error rather than a silent fallback, and Load reports every problem at
// once so a broken deployment is fixed in one pass.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the browser origins allowed to call the API. Empty
// means any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS and public caching of anonymous reads.
type SecurityConfig struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	PublicMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0,1]
}

// DBConfig selects the SQL driver and its connection string.
type DBConfig struct {
	Driver string // sqlite|postgres|mysql
	DSN    string // for sqlite defaults to DB_PATH
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration // lifetime of tokens minted by recipesctl
}

// ShoppingListConfig controls the downloadable shopping list.
type ShoppingListConfig struct {
	DefaultFormat string // txt|pdf
	FontPath      string // optional UTF-8 TTF font for PDFs
}

// Config is the full service configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	LogRedact      bool // scrub credentials and emails from access logs
	SwaggerEnabled bool
	APIBasePath    string

	DBPath string
	DB     DBConfig

	Auth         AuthConfig
	ShoppingList ShoppingListConfig

	RateRPS   float64
	RateBurst int
	// RateDownloadCost is the number of tokens a shopping list download
	// consumes (1..RateBurst).
	RateDownloadCost int

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL is how long a create request's Idempotency-Key replays.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

var (
	logLevels    = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	dbDrivers    = []string{"sqlite", "postgres", "mysql"}
	listFormats  = []string{"txt", "pdf"}
	ginModes     = []string{"debug", "release", "test"}
	driverAlias  = map[string]string{"postgresql": "postgres", "pg": "postgres", "sqlite3": "sqlite", "mariadb": "mysql"}
	formatAlias  = map[string]string{"text": "txt"}
	levelAliases = map[string]string{"warning": "warn"}
)

// MustLoad is Load that panics on error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the process environment.
func Load() (Config, error) { return LoadFrom(os.LookupEnv) }

// LoadFrom reads configuration through lookup, normalizes aliases and
// validates the result. The returned error joins every problem found.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	e := &env{lookup: lookup}
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           e.lower("GIN_MODE", "release"),

		LogLevel:       alias(levelAliases, e.lower("LOG_LEVEL", "info")),
		LogPretty:      e.boolean("LOG_PRETTY", false),
		LogRedact:      e.boolean("LOG_REDACT", true),
		SwaggerEnabled: e.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api")),

		DBPath: e.str("DB_PATH", "recipes.db"),
		DB: DBConfig{
			Driver: alias(driverAlias, e.lower("DB_DRIVER", "sqlite")),
			DSN:    e.str("DB_DSN", ""),
		},

		Auth: AuthConfig{
			Secret: e.str("JWT_SECRET", ""),
			Issuer: e.str("JWT_ISSUER", "go-recipes-backend"),
			TTL:    e.duration("JWT_TTL", 24*time.Hour),
		},
		ShoppingList: ShoppingListConfig{
			DefaultFormat: alias(formatAlias, e.lower("SHOPPING_LIST_FORMAT", "pdf")),
			FontPath:      e.str("PDF_FONT_PATH", ""),
		},

		RateRPS:          e.float("RATE_RPS", 5),
		RateBurst:        e.integer("RATE_BURST", 10),
		RateDownloadCost: e.integer("RATE_DOWNLOAD_COST", 5),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS:   e.boolean("ENABLE_HSTS", false),
			HSTSMaxAge:   e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
			PublicMaxAge: e.duration("PUBLIC_CACHE_MAX_AGE", 0),
		},

		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.boolean("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-recipes-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if !slices.Contains(ginModes, cfg.GinMode) {
		cfg.GinMode = "release"
	}
	if cfg.DB.DSN == "" && cfg.DB.Driver == "sqlite" {
		cfg.DB.DSN = cfg.DBPath
	}

	return cfg, errors.Join(append(e.errs, cfg.Validate()...)...)
}

// Validate reports every invalid setting in cfg.
func (cfg Config) Validate() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains(logLevels, cfg.LogLevel), "LOG_LEVEL must be one of: %s", strings.Join(logLevels, ", "))
	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(slices.Contains(dbDrivers, cfg.DB.Driver), "DB_DRIVER must be one of: %s", strings.Join(dbDrivers, ", "))
	check(strings.TrimSpace(cfg.DB.DSN) != "", "DB_DSN must not be empty")
	check(strings.TrimSpace(cfg.Auth.Secret) != "", "JWT_SECRET must not be empty")
	check(cfg.Auth.TTL > 0, "JWT_TTL must be > 0")
	check(slices.Contains(listFormats, cfg.ShoppingList.DefaultFormat), "SHOPPING_LIST_FORMAT must be txt or pdf")
	if cfg.ShoppingList.FontPath != "" {
		if err := checkReadableFile(cfg.ShoppingList.FontPath); err != nil {
			errs = append(errs, fmt.Errorf("PDF_FONT_PATH: %w", err))
		}
	}
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.RateDownloadCost >= 1 && cfg.RateDownloadCost <= cfg.RateBurst,
		"RATE_DOWNLOAD_COST must be between 1 and RATE_BURST (%d)", cfg.RateBurst)
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.Security.PublicMaxAge >= 0, "PUBLIC_CACHE_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// checkReadableFile fails unless path names a regular file this process can
// open.
func checkReadableFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

// env reads typed values and remembers the keys it could not parse.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

// raw returns the trimmed value of k; unset and blank are treated alike.
func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) invalid(k, v, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a valid %s", k, v, kind))
}

func (e *env) str(k, def string) string {
	if v, ok := e.lookup(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) lower(k, def string) string { return strings.ToLower(strings.TrimSpace(e.str(k, def))) }

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.invalid(k, v, "number")
		return def
	}
	return f
}

func (e *env) integer(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(k, v, "integer")
		return def
	}
	return i
}

func (e *env) boolean(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.invalid(k, v, "boolean")
	return def
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(k, v, "duration")
		return def
	}
	return d
}

// list splits a comma separated value, dropping blanks.
func (e *env) list(k string) []string {
	v, ok := e.raw(k)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func alias(m map[string]string, v string) string {
	if a, ok := m[v]; ok {
		return a
	}
	return v
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, keeping
// "/" for the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
