// Package storage persists completed practice sessions and resume snapshots
// in a local SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for sessions and resumes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "prepflow.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Sessions ---

// SaveSession writes a finalized session record. Records are immutable:
// saving an existing ID is an error.
func (s *Store) SaveSession(rec SessionRecord) error {
	status := rec.Status
	if status == "" {
		status = "completed"
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, account_id, created_at, mode, thread_id, context_json, questions_json, answers_json, evaluation_json, overall_score, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.CreatedAt.UTC().Format(time.RFC3339), rec.Mode, rec.ThreadID,
		rec.ContextJSON, rec.QuestionsJSON, rec.AnswersJSON, rec.EvaluationJSON, rec.OverallScore, status,
	)
	return err
}

const sessionColumns = "id, account_id, created_at, mode, thread_id, context_json, questions_json, answers_json, evaluation_json, overall_score, status"

func scanSession(scan func(dest ...any) error) (SessionRecord, error) {
	var rec SessionRecord
	var createdAt string
	err := scan(&rec.ID, &rec.AccountID, &createdAt, &rec.Mode, &rec.ThreadID,
		&rec.ContextJSON, &rec.QuestionsJSON, &rec.AnswersJSON, &rec.EvaluationJSON, &rec.OverallScore, &rec.Status)
	if err != nil {
		return SessionRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func (s *Store) GetSession(id string) (SessionRecord, error) {
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	rec, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return SessionRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) ListSessions(accountID string, limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		"SELECT "+sessionColumns+" FROM sessions WHERE account_id = ? ORDER BY created_at DESC LIMIT ?",
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// --- Resumes ---

func (s *Store) SaveResume(rec ResumeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO resumes (id, account_id, name, content, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.Name, rec.Text, rec.Source,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetResume(id string) (ResumeRecord, error) {
	var rec ResumeRecord
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, account_id, name, content, source, created_at
		FROM resumes WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.AccountID, &rec.Name, &rec.Text, &rec.Source, &createdAt)
	if err == sql.ErrNoRows {
		return ResumeRecord{}, ErrNotFound
	}
	if err != nil {
		return ResumeRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ResumeRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func (s *Store) ListResumes(accountID string, limit int) ([]ResumeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, name, content, source, created_at
		FROM resumes WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ResumeRecord
	for rows.Next() {
		var rec ResumeRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Name, &rec.Text, &rec.Source, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		rec.CreatedAt = t
		results = append(results, rec)
	}
	return results, rows.Err()
}
