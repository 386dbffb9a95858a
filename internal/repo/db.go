// Package repo is the GORM persistence layer: one file per aggregate plus
// the helpers that open and migrate the database.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// SlowQueryThreshold is the duration above which a statement is logged at
// warn level.
const SlowQueryThreshold = 200 * time.Millisecond

// pool holds connection limits for one driver.
type pool struct {
	maxOpen, maxIdle int
	idleTime, life   time.Duration
}

var pools = map[string]pool{
	"sqlite":   {maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, life: 30 * time.Minute},
	"postgres": {maxOpen: 25, maxIdle: 10, idleTime: 5 * time.Minute, life: 30 * time.Minute},
	"mysql":    {maxOpen: 25, maxIdle: 10, idleTime: 3 * time.Minute, life: 15 * time.Minute},
}

// sqlitePragmas are applied by the driver to every connection it opens,
// so pooled connections all enforce foreign keys and share the same busy
// timeout.
var sqlitePragmas = []struct{ name, value string }{
	{"busy_timeout", "5000"},
	{"foreign_keys", "1"},
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
}

// sqliteDSN appends a _pragma parameter for each pragma dsn does not set
// itself.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name+"(") {
			continue
		}
		b.WriteString(sep + "_pragma=" + p.name + "(" + p.value + ")")
		sep = "&"
	}
	return b.String()
}

// Open connects to driver ("sqlite", "postgres" or "mysql") using dsn.
// Errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey where the dialect supports it.
func Open(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = "sqlite"
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if err := checkSQLiteDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("repo: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewQueryLogger(SlowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("repo: open %s: %w", driver, err)
	}
	if err := applyPool(db, pools[driver]); err != nil {
		return nil, err
	}
	return db, nil
}

// checkSQLiteDir fails early when the database file's directory is missing;
// the driver otherwise reports an unhelpful "out of memory" error.
func checkSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("repo: sqlite directory: %w", err)
	}
	return nil
}

func applyPool(db *gorm.DB, p pool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.life)
	return nil
}

// Models lists every persisted model, parents before children.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Ingredient{},
		&domain.Tag{},
		&domain.Recipe{},
		&domain.RecipeIngredient{},
		&domain.Favorite{},
		&domain.CartEntry{},
		&domain.Subscription{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// QueryLogger sends GORM's statement log to zerolog. It uses the logger
// stored in the query context (zerolog.Ctx) so lines carry the request id.
// Missing rows are not errors and statements slower than the threshold are
// logged at warn.
type QueryLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

// NewQueryLogger returns a QueryLogger at warn level.
func NewQueryLogger(slow time.Duration) *QueryLogger {
	return &QueryLogger{level: logger.Warn, slow: slow}
}

// LogMode implements logger.Interface.
func (l *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *QueryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		zerolog.Ctx(ctx).Info().Msgf(msg, args...)
	}
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		zerolog.Ctx(ctx).Warn().Msgf(msg, args...)
	}
}

func (l *QueryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		zerolog.Ctx(ctx).Error().Msgf(msg, args...)
	}
}

// Trace implements logger.Interface.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var ev *zerolog.Event
	lg := zerolog.Ctx(ctx)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		ev = lg.Error().Err(err)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		ev = lg.Warn().Dur("threshold", l.slow)
	case l.level >= logger.Info:
		ev = lg.Debug()
	default:
		return
	}
	sql, rows := fc()
	ev.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql")
}
