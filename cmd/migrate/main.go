package main

import (
	"bufio"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		logr.Fatal("failed to ensure schema_migrations", zap.Error(err))
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		logr.Fatal("failed to read migrations", zap.Error(err))
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			logr.Fatal("failed to read migration state", zap.Error(err))
		}
		if exists {
			continue
		}
		if err := applyFile(database, file); err != nil {
			logr.Fatal("failed to apply migration", zap.String("file", filename), zap.Error(err))
		}
		logr.Info("applied migration", zap.String("file", filename))
		applied++
	}
	logr.Info("migrations complete", zap.Int("applied", applied), zap.Int("total", len(files)))
}

// applyFile runs the up section of a migration and records it in one
// transaction.
func applyFile(database *sqlx.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	up := strings.SplitN(string(content), "-- +migrate Down", 2)[0]
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	if err := execAll(tx, splitSQL(up)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filepath.Base(path)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execAll(db execer, statements []string) error {
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitSQL cuts a script into statements on line-ending semicolons. Text
// between $$ markers, such as a function body, is never split.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	inBody := false
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inBody && strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Count(line, "$$")%2 == 1 {
			inBody = !inBody
		}
		if !inBody && strings.HasSuffix(trimmed, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
