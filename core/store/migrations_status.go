package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"
)

type MigrationStatus struct {
	NowUTC         time.Time `json:"now_utc"`
	Dialect        string    `json:"dialect"`
	HasGooseTable  bool      `json:"has_goose_table"`
	CurrentVersion int64     `json:"current_version"`
	LatestVersion  int64     `json:"latest_version"`
	HasPending     bool      `json:"has_pending"`
}

func GetMigrationStatus(ctx context.Context, db *sql.DB) (MigrationStatus, error) {
	now := time.Now().UTC()
	if db == nil {
		return MigrationStatus{NowUTC: now}, fmt.Errorf("nil db")
	}
	d, err := detectDialect(ctx, db)
	if err != nil {
		return MigrationStatus{NowUTC: now}, err
	}
	latest, err := latestGooseMigrationVersion(d.dir)
	if err != nil {
		return MigrationStatus{NowUTC: now, Dialect: d.name}, err
	}
	hasGoose, err := tableExists(ctx, db, d, gooseTable)
	if err != nil {
		return MigrationStatus{NowUTC: now, Dialect: d.name, LatestVersion: latest}, err
	}
	current := int64(0)
	if hasGoose {
		if current, err = getGooseDBVersion(ctx, db); err != nil {
			return MigrationStatus{NowUTC: now, Dialect: d.name, LatestVersion: latest}, err
		}
	}
	return MigrationStatus{
		NowUTC:         now,
		Dialect:        d.name,
		HasGooseTable:  hasGoose,
		CurrentVersion: current,
		LatestVersion:  latest,
		HasPending:     latest > current,
	}, nil
}

func tableExists(ctx context.Context, db *sql.DB, d dialect, name string) (bool, error) {
	query := `SELECT COUNT(1) FROM information_schema.tables WHERE table_schema='public' AND table_name=?`
	if d == dialectSQLite {
		query = `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`
	}
	var n int
	if err := db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func getGooseDBVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_id), 0) FROM `+gooseTable).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func latestGooseMigrationVersion(dir string) (int64, error) {
	entries, err := fs.Glob(gooseMigrationsFS, dir+"/*.sql")
	if err != nil {
		return 0, err
	}
	var max int64
	for _, p := range entries {
		// filename: 00001_init.sql
		prefix, _, _ := strings.Cut(path.Base(p), "_")
		n, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
