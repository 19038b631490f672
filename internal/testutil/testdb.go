package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const templateDB = "wallet_template"

// One container per test binary. Each test gets its own database cloned
// from a migrated template, so tests never see each other's ledger rows.
// The container is reaped by testcontainers when the binary exits.
var (
	pgOnce  sync.Once
	pgAdmin *sql.DB
	pgURL   *url.URL
	pgErr   error
	dbSeq   atomic.Int64
)

func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	pgOnce.Do(func() { pgErr = startPostgres(context.Background()) })
	if pgErr != nil {
		t.Fatalf("start postgres: %v", pgErr)
	}

	name := fmt.Sprintf("wallet_test_%d", dbSeq.Add(1))
	if _, err := pgAdmin.Exec(fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", name, templateDB)); err != nil {
		t.Fatalf("create database %s: %v", name, err)
	}

	db, err := sql.Open("postgres", connString(name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if _, err := pgAdmin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name)); err != nil {
			t.Logf("drop database %s: %v", name, err)
		}
	})

	return db
}

func startPostgres(ctx context.Context) error {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase(templateDB),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("run container: %w", err)
	}

	raw, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}
	if pgURL, err = url.Parse(raw); err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}

	tmpl, err := sql.Open("postgres", connString(templateDB))
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	err = runMigrations(ctx, tmpl)
	// CREATE DATABASE ... TEMPLATE fails while the template has open sessions.
	tmpl.Close()
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if pgAdmin, err = sql.Open("postgres", connString("postgres")); err != nil {
		return fmt.Errorf("open admin: %w", err)
	}
	return nil
}

func connString(dbName string) string {
	u := *pgURL
	u.Path = "/" + dbName
	return u.String()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	migrationsDir := findMigrationsDir()

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, f := range upFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if err := applyMigration(ctx, db, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	return tx.Commit()
}

// go test runs with CWD set to the package dir; walk up to the module root.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for range 10 {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		dir = filepath.Dir(dir)
	}
	return "migrations"
}
