package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"reportdesk/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var gooseMigrationsFS embed.FS

const gooseTable = "goose_db_version"

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

type dialect struct {
	name string
	dir  string
}

var (
	dialectPostgres = dialect{name: "postgres", dir: "migrations/postgres"}
	dialectSQLite   = dialect{name: "sqlite3", dir: "migrations/sqlite"}
)

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	d, err := detectDialect(ctx, db)
	if err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(d.name); err != nil {
		return err
	}
	goose.SetBaseFS(gooseMigrationsFS)
	goose.SetLogger(goose.NopLogger())
	logger.Printf("applying goose migrations (%s)", d.name)
	if err := goose.UpContext(ctx, db, d.dir); err != nil {
		return err
	}
	logger.Printf("goose migrations applied")
	return nil
}

func detectDialect(ctx context.Context, db *sql.DB) (dialect, error) {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return dialect{}, err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err == nil {
		return dialectSQLite, nil
	}
	return dialectPostgres, nil
}
