// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mcp-chew-check/internal/models"
)

// ErrNotFound is returned when a check id is unknown.
var ErrNotFound = errors.New("check not found")

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db *sql.DB
}

// connPragmas run on every new connection, not just the one that created the schema.
var connPragmas = []string{"busy_timeout(5000)", "foreign_keys(1)", "journal_mode(WAL)"}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection queues writers in the
	// pool instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dbPath)
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS checks (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        food_name TEXT NOT NULL,
        confidence REAL NOT NULL,
        verdict TEXT NOT NULL,
        reasons TEXT NOT NULL,
        source TEXT NOT NULL,
        photo_path TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS check_tags (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        check_id TEXT NOT NULL,
        tag TEXT NOT NULL,
        FOREIGN KEY (check_id) REFERENCES checks(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS check_alternatives (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        check_id TEXT NOT NULL,
        name TEXT NOT NULL,
        confidence REAL NOT NULL,
        verdict TEXT NOT NULL,
        tags TEXT NOT NULL,
        FOREIGN KEY (check_id) REFERENCES checks(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_checks_user_created ON checks(user_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_check_tags_check_id ON check_tags(check_id);
    CREATE INDEX IF NOT EXISTS idx_check_alternatives_check_id ON check_alternatives(check_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveCheck(check *models.CheckResult) error {
	reasons, err := json.Marshal(check.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	checkQuery := `
        INSERT INTO checks (id, user_id, food_name, confidence, verdict, reasons, source, photo_path, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.Exec(checkQuery,
		check.ID, check.UserID, check.FoodName, check.Confidence, string(check.Verdict),
		string(reasons), string(check.Source), check.PhotoPath, check.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert check: %w", err)
	}

	for _, tag := range check.Tags {
		if _, err = tx.Exec(`INSERT INTO check_tags (check_id, tag) VALUES (?, ?)`, check.ID, string(tag)); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}

	altQuery := `
        INSERT INTO check_alternatives (check_id, name, confidence, verdict, tags)
        VALUES (?, ?, ?, ?, ?)
    `
	for _, alt := range check.Alternatives {
		tags, err := json.Marshal(alt.Tags.Strings())
		if err != nil {
			return fmt.Errorf("failed to marshal alternative tags: %w", err)
		}
		if _, err = tx.Exec(altQuery, check.ID, alt.Name, alt.Confidence, string(alt.Verdict), string(tags)); err != nil {
			return fmt.Errorf("failed to insert alternative: %w", err)
		}
	}

	return tx.Commit()
}

const checkColumns = `id, user_id, food_name, confidence, verdict, reasons, source, photo_path, created_at`

func (s *SQLiteStorage) GetCheck(id string) (*models.CheckResult, error) {
	row := s.db.QueryRow(`SELECT `+checkColumns+` FROM checks WHERE id = ?`, id)
	check, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(check); err != nil {
		return nil, fmt.Errorf("failed to load details for check %s: %w", check.ID, err)
	}
	return check, nil
}

// GetChecks lists checks newest first. Empty userID, startDate or endDate
// leave that filter off; dates are YYYY-MM-DD in UTC.
func (s *SQLiteStorage) GetChecks(userID, startDate, endDate string, limit int) ([]*models.CheckResult, error) {
	query := `SELECT ` + checkColumns + ` FROM checks WHERE 1=1`
	args := []interface{}{}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if startDate != "" {
		query += " AND DATE(created_at) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND DATE(created_at) <= ?"
		args = append(args, endDate)
	}

	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checks: %w", err)
	}
	defer rows.Close()

	checks := []*models.CheckResult{}
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checks: %w", err)
	}
	rows.Close()

	for _, check := range checks {
		if err := s.loadDetails(check); err != nil {
			return nil, fmt.Errorf("failed to load details for check %s: %w", check.ID, err)
		}
	}

	return checks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*models.CheckResult, error) {
	check := &models.CheckResult{}
	var verdict, reasons, source, createdAt string

	err := row.Scan(&check.ID, &check.UserID, &check.FoodName, &check.Confidence,
		&verdict, &reasons, &source, &check.PhotoPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan check: %w", err)
	}

	check.Verdict = models.FoodVerdict(verdict)
	check.Source = models.ResultSource(source)
	if err := json.Unmarshal([]byte(reasons), &check.Reasons); err != nil {
		return nil, fmt.Errorf("failed to parse reasons: %w", err)
	}
	if check.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return check, nil
}

func (s *SQLiteStorage) loadDetails(check *models.CheckResult) error {
	rows, err := s.db.Query(`SELECT tag FROM check_tags WHERE check_id = ? ORDER BY id`, check.ID)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate tags: %w", err)
	}
	rows.Close()
	check.Tags = models.ParseTags(names)

	altQuery := `
        SELECT name, confidence, verdict, tags
        FROM check_alternatives
        WHERE check_id = ?
        ORDER BY id
    `
	rows, err = s.db.Query(altQuery, check.ID)
	if err != nil {
		return fmt.Errorf("failed to query alternatives: %w", err)
	}
	defer rows.Close()

	alternatives := []models.RankedAlternative{}
	for rows.Next() {
		alt := models.RankedAlternative{}
		var verdict, tags string
		if err := rows.Scan(&alt.Name, &alt.Confidence, &verdict, &tags); err != nil {
			return fmt.Errorf("failed to scan alternative: %w", err)
		}
		var tagNames []string
		if err := json.Unmarshal([]byte(tags), &tagNames); err != nil {
			return fmt.Errorf("failed to parse alternative tags: %w", err)
		}
		alt.Tags = models.ParseTags(tagNames)
		alt.Verdict = models.FoodVerdict(verdict)
		alternatives = append(alternatives, alt)
	}

	check.Alternatives = alternatives
	return rows.Err()
}
