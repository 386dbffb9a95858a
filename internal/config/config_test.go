package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vars is a fake environment. JWT_SECRET is the only key without a usable
// default, so every fixture starts with it.
type vars map[string]string

func (v vars) lookup(k string) (string, bool) {
	s, ok := v[k]
	return s, ok
}

func base() vars { return vars{"JWT_SECRET": "test-secret"} }

func load(t *testing.T, v vars) (Config, error) {
	t.Helper()
	return LoadFrom(v.lookup)
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := load(t, base())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogRedact)
	assert.Equal(t, "/api", cfg.APIBasePath)

	assert.Equal(t, DBConfig{Driver: "sqlite", DSN: "recipes.db"}, cfg.DB)
	assert.Equal(t, AuthConfig{Secret: "test-secret", Issuer: "go-recipes-backend", TTL: 24 * time.Hour}, cfg.Auth)
	assert.Equal(t, "pdf", cfg.ShoppingList.DefaultFormat)

	assert.Equal(t, 5.0, cfg.RateRPS)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Equal(t, 5, cfg.RateDownloadCost)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, SecurityConfig{HSTSMaxAge: 180 * 24 * time.Hour}, cfg.Security)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.False(t, cfg.OTEL.Enabled)
	assert.Equal(t, 1.0, cfg.OTEL.SampleRatio)
}

func TestLoadFrom_OverridesAndAliases(t *testing.T) {
	font := writeFont(t)
	v := base()
	for k, val := range map[string]string{
		"PORT":                        "8088",
		"READ_TIMEOUT":                "2s",
		"GIN_MODE":                    "weird",
		"LOG_LEVEL":                   "Warning",
		"LOG_PRETTY":                  "yes",
		"LOG_REDACT":                  "off",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "api/v1/",
		"DB_DRIVER":                   "PostgreSQL",
		"DB_DSN":                      "host=db user=app dbname=recipes",
		"JWT_TTL":                     "2h",
		"SHOPPING_LIST_FORMAT":        "TEXT",
		"PDF_FONT_PATH":               font,
		"RATE_RPS":                    "2.5",
		"RATE_BURST":                  "20",
		"RATE_DOWNLOAD_COST":          "8",
		"CORS_ALLOWED_ORIGINS":        " https://a.com , , http://b ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"PUBLIC_CACHE_MAX_AGE":        "1m",
		"IDEMPOTENCY_TTL":             "48h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "svc",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	} {
		v[k] = val
	}

	cfg, err := load(t, v)
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "release", cfg.GinMode, "unknown modes fall back to release")
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.False(t, cfg.LogRedact)
	assert.True(t, cfg.SwaggerEnabled)
	assert.Equal(t, "/api/v1", cfg.APIBasePath)
	assert.Equal(t, DBConfig{Driver: "postgres", DSN: "host=db user=app dbname=recipes"}, cfg.DB)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TTL)
	assert.Equal(t, ShoppingListConfig{DefaultFormat: "txt", FontPath: font}, cfg.ShoppingList)
	assert.Equal(t, 2.5, cfg.RateRPS)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, 8, cfg.RateDownloadCost)
	assert.Equal(t, []string{"https://a.com", "http://b"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, SecurityConfig{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, PublicMaxAge: time.Minute}, cfg.Security)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, OTELConfig{Enabled: true, Endpoint: "otel:4317", ServiceName: "svc", SampleRatio: 0.75}, cfg.OTEL)
}

func TestLoadFrom_DriverAliases(t *testing.T) {
	for in, want := range map[string]string{"pg": "postgres", "sqlite3": "sqlite", "MariaDB": "mysql", "mysql": "mysql"} {
		v := base()
		v["DB_DRIVER"] = in
		v["DB_DSN"] = "dsn"
		cfg, err := load(t, v)
		require.NoError(t, err, in)
		assert.Equal(t, want, cfg.DB.Driver, in)
	}
}

func TestLoadFrom_MalformedValuesAreErrors(t *testing.T) {
	v := base()
	v["RATE_BURST"] = "nope"
	v["OTEL_ENABLED"] = "maybe"
	v["JWT_TTL"] = "soon"
	v["RATE_RPS"] = "fast"

	cfg, err := load(t, v)
	require.Error(t, err)
	for _, want := range []string{
		`RATE_BURST: "nope" is not a valid integer`,
		`OTEL_ENABLED: "maybe" is not a valid boolean`,
		`JWT_TTL: "soon" is not a valid duration`,
		`RATE_RPS: "fast" is not a valid number`,
	} {
		assert.ErrorContains(t, err, want)
	}
	assert.Equal(t, 10, cfg.RateBurst, "defaults still fill the struct")
}

func TestLoadFrom_Validation(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL must be one of"},
		{"PORT", "   ", "PORT must not be empty"},
		{"READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"DB_DRIVER", "oracle", "DB_DRIVER must be one of"},
		{"JWT_SECRET", "   ", "JWT_SECRET must not be empty"},
		{"JWT_TTL", "0s", "JWT_TTL"},
		{"SHOPPING_LIST_FORMAT", "docx", "SHOPPING_LIST_FORMAT"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST must be >= 1"},
		{"RATE_DOWNLOAD_COST", "11", "RATE_DOWNLOAD_COST must be between 1 and RATE_BURST (10)"},
		{"RATE_DOWNLOAD_COST", "0", "RATE_DOWNLOAD_COST"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"PUBLIC_CACHE_MAX_AGE", "-1s", "PUBLIC_CACHE_MAX_AGE"},
		{"IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			v := base()
			v[tc.key] = tc.val
			_, err := load(t, v)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func writeFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DejaVuSans.ttf")
	require.NoError(t, os.WriteFile(path, []byte("ttf"), 0o600))
	return path
}

func TestLoadFrom_FontPathMustBeReadableFile(t *testing.T) {
	for name, path := range map[string]string{
		"missing":   filepath.Join(t.TempDir(), "nope.ttf"),
		"directory": t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			v := base()
			v["PDF_FONT_PATH"] = path
			_, err := load(t, v)
			assert.ErrorContains(t, err, "PDF_FONT_PATH")
		})
	}

	v := base()
	v["PDF_FONT_PATH"] = writeFont(t)
	_, err := load(t, v)
	assert.NoError(t, err)
}

func TestLoadFrom_ReportsEveryProblem(t *testing.T) {
	v := vars{"LOG_LEVEL": "loud", "DB_DRIVER": "oracle"}
	_, err := load(t, v)
	require.Error(t, err)
	assert.ErrorContains(t, err, "LOG_LEVEL")
	assert.ErrorContains(t, err, "DB_DRIVER")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadFrom_PostgresNeedsDSN(t *testing.T) {
	v := base()
	v["DB_DRIVER"] = "postgres"
	_, err := load(t, v)
	assert.ErrorContains(t, err, "DB_DSN must not be empty")
}

func TestLoad_ReadsProcessEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9090")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "9090", cfg.Port)
}

func TestMustLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Panics(t, func() { MustLoad() })

	t.Setenv("JWT_SECRET", "s")
	assert.NotPanics(t, func() { MustLoad() })
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":         "/",
		" / ":      "/",
		"v1":       "/v1",
		"/v1/":     "/v1",
		"api/v1//": "/api/v1",
	} {
		assert.Equal(t, want, normalizeBasePath(in), in)
	}
}
