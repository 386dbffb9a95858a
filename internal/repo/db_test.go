package repo

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

func TestOpen_MissingSQLiteDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "recipes.db")
	db, err := Open("sqlite", bad)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "sqlite directory")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.ErrorContains(t, err, `unsupported driver "oracle"`)
}

func TestOpen_SQLiteDefaults(t *testing.T) {
	db, err := Open(" SQLite ", filepath.Join(t.TempDir(), "recipes.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var mode string
	var busy, fk int
	require.NoError(t, db.Raw("PRAGMA journal_mode").Row().Scan(&mode))
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Row().Scan(&busy))
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Row().Scan(&fk))
	assert.Equal(t, "wal", strings.ToLower(mode))
	assert.Equal(t, 5000, busy)
	assert.Equal(t, 1, fk)
	assert.Equal(t, pools["sqlite"].maxOpen, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, AutoMigrate(db))
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasTable("recipe_tags"))

	author := &domain.User{Email: "chef@example.com", Username: "chef"}
	require.NoError(t, db.Create(author).Error)
	recipe := &domain.Recipe{Name: "Soup", AuthorID: author.ID, Text: "boil", CookingTime: 30}
	require.NoError(t, db.Create(recipe).Error)
	var got domain.Recipe
	require.NoError(t, db.Preload("Author").First(&got, recipe.ID).Error)
	assert.Equal(t, "chef", got.Author.Username)
}

func TestOpen_SQLitePragmasOnEveryConnection(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "recipes.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	// Hold every connection so the pool has to open distinct ones.
	for i := range 3 {
		conn, err := sqlDB.Conn(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })

		var fk, busy, sync int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync))
		assert.Equal(t, 1, fk, "conn %d foreign_keys", i)
		assert.Equal(t, 5000, busy, "conn %d busy_timeout", i)
		assert.Equal(t, 1, sync, "conn %d synchronous=NORMAL", i)

		_, err = conn.ExecContext(ctx,
			"INSERT INTO recipes (name, author_id, text, cooking_time, image) VALUES ('Orphan', 999, 'x', 1, '')")
		assert.Error(t, err, "conn %d accepted a recipe without an author", i)
	}
}

func TestSQLiteDSN(t *testing.T) {
	const all = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	assert.Equal(t, "recipes.db?"+all, sqliteDSN("recipes.db"))
	assert.Equal(t, "file:t?mode=memory&cache=shared&"+all, sqliteDSN("file:t?mode=memory&cache=shared"))
	assert.Equal(t,
		"x.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		sqliteDSN("x.db?_pragma=busy_timeout(100)"), "explicit pragmas win")
}

func TestDriverPoolsAreBounded(t *testing.T) {
	for name, p := range pools {
		assert.Positive(t, p.maxOpen, name)
		assert.LessOrEqual(t, p.maxIdle, p.maxOpen, name)
		assert.Positive(t, p.life, name)
	}
}

func traceLine(t *testing.T, l logger.Interface, elapsed time.Duration, err error) string {
	t.Helper()
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	l.Trace(ctx, time.Now().Add(-elapsed), func() (string, int64) {
		return `SELECT * FROM "recipes" WHERE id = 3`, 1
	}, err)
	return buf.String()
}

func TestQueryLogger_Trace(t *testing.T) {
	ql := NewQueryLogger(50 * time.Millisecond)

	assert.Empty(t, traceLine(t, ql, time.Millisecond, nil), "fast statements are quiet at warn")
	assert.Empty(t, traceLine(t, ql, time.Millisecond, gorm.ErrRecordNotFound), "missing rows are not errors")

	out := traceLine(t, ql, time.Millisecond, errors.New("no such table: recipes"))
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, "no such table")
	assert.Contains(t, out, `"rows":1`)

	out = traceLine(t, ql, 80*time.Millisecond, nil)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `FROM \"recipes\"`)

	assert.Contains(t, traceLine(t, ql.LogMode(logger.Info), time.Millisecond, nil), `"level":"debug"`)
	assert.Empty(t, traceLine(t, ql.LogMode(logger.Silent), time.Second, errors.New("boom")))
}

func TestQueryLogger_LogModeCopies(t *testing.T) {
	ql := NewQueryLogger(time.Second)
	_ = ql.LogMode(logger.Silent)
	assert.Equal(t, logger.Warn, ql.level)

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	ql.Info(ctx, "migrating %s", "recipes")
	assert.Empty(t, buf.String())
	ql.Warn(ctx, "index %s exists", "idx_recipe_name")
	assert.Contains(t, buf.String(), "index idx_recipe_name exists")
}
