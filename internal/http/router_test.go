package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipes-backend/internal/auth"
	"github.com/tbourn/go-recipes-backend/internal/config"
	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/http/middleware"
	"github.com/tbourn/go-recipes-backend/internal/repo"
)

const testSecret = "router-test-secret"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api",
		RateRPS:        100,
		RateBurst:      50,
		LogRedact:      true,
		Auth:           config.AuthConfig{Secret: testSecret, Issuer: "test", TTL: time.Hour},
		ShoppingList:   config.ShoppingListConfig{DefaultFormat: "txt"},
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func bearer(t *testing.T, userID int64, admin bool) string {
	t.Helper()
	tok, err := auth.NewTokenService(testSecret, time.Hour, "test").Issue(userID, admin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func send(r http.Handler, method, path, authz string, body any, hdr ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	w := send(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	w = send(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w := send(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := send(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	cfg.LogRedact = false
	RegisterRoutes(r, newTestDB(t), cfg)

	w := send(r, http.MethodGet, "/health", "", nil, "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterRoutes_Authentication(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig())

	u := &domain.User{Email: "a@example.com", Username: "alice"}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// anonymous reads are allowed
	if w := send(r, http.MethodGet, "/api/recipes", "", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous catalog: %d", w.Code)
	}
	// garbage token is rejected even on public routes
	w := send(r, http.MethodGet, "/api/recipes", "Bearer not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("bad token: %d %q", w.Code, w.Header().Get("WWW-Authenticate"))
	}
	// /users/me needs a token; the legacy "Token" scheme works too
	if w := send(r, http.MethodGet, "/api/users/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me anonymous: %d", w.Code)
	}
	tok := bearer(t, u.ID, false)
	w = send(r, http.MethodGet, "/api/users/me", "Token "+tok[len("Bearer "):], nil)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "private, no-store" {
		t.Fatalf("me: %d cache=%q body=%s", w.Code, w.Header().Get("Cache-Control"), w.Body.String())
	}
}

// Full flow: create a recipe (with idempotent replay), toggle favorites and the
// cart, then download the aggregated shopping list.
func TestRegisterRoutes_RecipeFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig())
	ctx := context.Background()

	u := &domain.User{Email: "a@example.com", Username: "alice"}
	if err := repo.CreateUser(ctx, db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tag := &domain.Tag{Name: "Lunch", Color: "#49B64E", Slug: "lunch"}
	if err := repo.CreateTag(ctx, db, tag); err != nil {
		t.Fatalf("seed tag: %v", err)
	}
	if _, err := repo.InsertIngredients(ctx, db, []domain.Ingredient{
		{Name: "Flour", MeasurementUnit: "g"},
		{Name: "Egg", MeasurementUnit: "pcs"},
	}, 10); err != nil {
		t.Fatalf("seed ingredients: %v", err)
	}
	var flour, egg domain.Ingredient
	db.Where("name = ?", "Flour").First(&flour)
	db.Where("name = ?", "Egg").First(&egg)

	authz := bearer(t, u.ID, false)
	body := map[string]any{
		"ingredients":  []map[string]any{{"id": flour.ID, "amount": 200}, {"id": egg.ID, "amount": 2}},
		"tags":         []int64{tag.ID},
		"image":        "data:image/png;base64,AAAA",
		"name":         "Pancakes",
		"text":         "Mix and fry.",
		"cooking_time": 15,
	}

	w := send(r, http.MethodPost, "/api/recipes", authz, body, middleware.HeaderIdempotencyKey, "create-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// same key → same resource, no duplicate
	w = send(r, http.MethodPost, "/api/recipes", authz, body, middleware.HeaderIdempotencyKey, "create-1")
	var replayed struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &replayed)
	if w.Code != http.StatusCreated || replayed.ID != created.ID {
		t.Fatalf("replay: %d id=%d want %d", w.Code, replayed.ID, created.ID)
	}
	var n int64
	db.Model(&domain.Recipe{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 recipe after replay, got %d", n)
	}

	fav := fmt.Sprintf("/api/recipes/%d/favorite", created.ID)
	if w := send(r, http.MethodPost, fav, authz, nil); w.Code != http.StatusCreated {
		t.Fatalf("favorite: %d", w.Code)
	}
	if w := send(r, http.MethodPost, fav, authz, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("favorite twice: expected 400, got %d", w.Code)
	}

	w = send(r, http.MethodGet, "/api/recipes?is_favorited=1&tags=lunch", authz, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":1`)) {
		t.Fatalf("filtered catalog: %d %s", w.Code, w.Body.String())
	}

	cart := fmt.Sprintf("/api/recipes/%d/shopping_cart", created.ID)
	if w := send(r, http.MethodPost, cart, authz, nil); w.Code != http.StatusCreated {
		t.Fatalf("cart: %d", w.Code)
	}

	w = send(r, http.MethodGet, "/api/recipes/download_shopping_cart", authz, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download: %d %s", w.Code, w.Body.String())
	}
	want := "Shopping list\n1. Egg - 2, pcs\n2. Flour - 200, g\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("download body:\n%q\nwant\n%q", got, want)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="shopping_list.txt"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	w = send(r, http.MethodGet, "/api/recipes/download_shopping_cart?format=pdf", authz, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf download: %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	if w := send(r, http.MethodDelete, cart, authz, nil); w.Code != http.StatusNoContent {
		t.Fatalf("cart remove: %d", w.Code)
	}
	if w := send(r, http.MethodDelete, fmt.Sprintf("/api/recipes/%d", created.ID), authz, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotencyLookupErrorIsIgnored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig())

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Lookup fails; the request proceeds to the fallback instead of erroring.
	w := send(r, http.MethodPost, "/health", bearer(t, 1, false), nil, middleware.HeaderIdempotencyKey, "force-error")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	w := send(r, http.MethodGet, "/api/tags", "", nil, "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("tags: %d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}

	w = send(r, http.MethodGet, "/metrics", "", nil)
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("/metrics without Accept-Encoding: encoding=%q", enc)
	}

	// promhttp compresses on its own; one gunzip must yield the text format.
	w = send(r, http.MethodGet, "/metrics", "", nil, "Accept-Encoding", "gzip")
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("/metrics: expected promhttp compression, got %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gunzip /metrics: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read /metrics: %v", err)
	}
	if !strings.Contains(string(plain), "# HELP http_requests_total") {
		t.Fatalf("/metrics compressed twice or not exposition text: %.80q", plain)
	}
}

func TestRegisterRoutes_HealthPingsDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, db, testConfig())

	w := send(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"database":"ok"`) {
		t.Fatalf("healthy: %d %s", w.Code, w.Body.String())
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	w = send(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"database":"unavailable"`) {
		t.Fatalf("closed db: %d %s", w.Code, w.Body.String())
	}
}

func TestCORSHandlers_AllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsHandlers([]string{"https://recipes.example"})...)
	r.GET("/api/tags", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := send(r, http.MethodGet, "/api/tags", "", nil, "Origin", "https://recipes.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://recipes.example" {
		t.Fatalf("allowed origin: ACAO=%q", got)
	}
	w = send(r, http.MethodGet, "/api/tags", "", nil, "Origin", "https://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be echoed, got %q", got)
	}
}
