package repo

import (
	"errors"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is gorm.ErrRecordNotFound under the repo name.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate is returned by writes that hit a unique index.
	ErrDuplicate = errors.New("repo: duplicate")
)

// Unique-violation codes per driver. SQLite has no typed error through the
// pure-Go driver, so it is matched on message text.
const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

var sqliteUniqueMessages = []string{
	"unique constraint failed",
	"constraint failed: unique",
	"duplicate key",
}

// IsDuplicate reports whether err is a unique-constraint violation from any
// supported driver, translated or not.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sqliteUniqueMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
