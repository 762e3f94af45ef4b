package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-stream-extract/internal/model"
)

var db *sql.DB

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	// Create tables if not exists
	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			config TEXT,
			status TEXT,
			summary TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stream TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stream TEXT,
			level TEXT,
			message TEXT,
			details TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS stream_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stream TEXT,
			state TEXT,
			records INTEGER,
			errors INTEGER,
			started_at DATETIME,
			ended_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			stream TEXT PRIMARY KEY,
			bookmark TEXT,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS output_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			file_name TEXT,
			file_path TEXT,
			file_size INTEGER,
			created_at DATETIME
		);`,
	}
	for _, stmt := range tables {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ready reports whether InitDB has been called
func Ready() bool {
	return db != nil
}

// CloseDB closes the database handle
func CloseDB() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveRun stores a new sync run
func SaveRun(runID string, cfg *model.TapConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, config, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, cfgJSON, "pending", now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunSummary stores the final run summary
func SaveRunSummary(runID string, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`UPDATE runs SET summary = ?, updated_at = ? WHERE id = ?`, data, now, runID)
	return err
}

// SaveRunError records an error for a run
func SaveRunError(runID, stream string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, stream, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stream, err.Error(), now)
	return e
}

// GetRunErrors returns all errors recorded for a run
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stream, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var stream, msg string
		var createdAt time.Time
		if err := rows.Scan(&stream, &msg, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"stream":    stream,
			"error":     msg,
			"createdAt": createdAt,
		})
	}
	return out, rows.Err()
}

// SaveRunLog records a structured log line for a run
func SaveRunLog(runID, stream, level, message string, details map[string]interface{}) error {
	var detailJSON []byte
	if details != nil {
		detailJSON, _ = json.Marshal(details)
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_logs (run_id, stream, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stream, level, message, detailJSON, now)
	return err
}

// GetRunLogs returns recent log lines for a run
func GetRunLogs(runID string, limit int) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stream, level, message, details, created_at FROM run_logs WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var stream, level, message string
		var details sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&stream, &level, &message, &details, &createdAt); err != nil {
			return nil, err
		}
		entry := map[string]interface{}{
			"stream":    stream,
			"level":     level,
			"message":   message,
			"createdAt": createdAt,
		}
		if details.Valid && details.String != "" {
			var d map[string]interface{}
			if json.Unmarshal([]byte(details.String), &d) == nil {
				entry["details"] = d
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// SaveStreamProgress records a state transition for one stream of a run
func SaveStreamProgress(runID, stream, state string, records, errors int, startedAt *time.Time, endedAt *time.Time) error {
	_, err := db.Exec(`INSERT INTO stream_progress (run_id, stream, state, records, errors, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stream, state, records, errors, startedAt, endedAt)
	return err
}

// GetStreamProgress returns the progress rows for a run
func GetStreamProgress(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stream, state, records, errors, started_at, ended_at FROM stream_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var stream, state string
		var records, errCount int
		var startedAt, endedAt sql.NullTime
		if err := rows.Scan(&stream, &state, &records, &errCount, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		entry := map[string]interface{}{
			"stream":  stream,
			"state":   state,
			"records": records,
			"errors":  errCount,
		}
		if startedAt.Valid {
			entry["startedAt"] = startedAt.Time
		}
		if endedAt.Valid {
			entry["endedAt"] = endedAt.Time
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ListRuns returns all runs with basic info
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run config, status and summary
func GetRun(runID string) (map[string]interface{}, error) {
	var cfgJSON, status string
	var summary sql.NullString
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT config, status, summary, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&cfgJSON, &status, &summary, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var cfg model.TapConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"id":        runID,
		"config":    cfg,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}
	if summary.Valid && summary.String != "" {
		var s map[string]interface{}
		if json.Unmarshal([]byte(summary.String), &s) == nil {
			out["summary"] = s
		}
	}
	return out, nil
}

// GetBookmark loads the last-committed bookmark for a stream. A missing row
// means no prior state: a full initial sync.
func GetBookmark(stream string) (*model.Bookmark, error) {
	var data string
	err := db.QueryRow(`SELECT bookmark FROM bookmarks WHERE stream = ?`, stream).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bm model.Bookmark
	if err := json.Unmarshal([]byte(data), &bm); err != nil {
		return nil, err
	}
	return &bm, nil
}

// SaveBookmark persists a stream's bookmark at a checkpoint boundary
func SaveBookmark(stream string, bm model.Bookmark) error {
	data, err := json.Marshal(bm)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO bookmarks (stream, bookmark, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(stream) DO UPDATE SET bookmark = excluded.bookmark, updated_at = excluded.updated_at`,
		stream, data, now)
	return err
}

// AllBookmarks returns the persisted bookmark map, keyed by stream name
func AllBookmarks() (map[string]model.Bookmark, error) {
	rows, err := db.Query(`SELECT stream, bookmark FROM bookmarks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.Bookmark)
	for rows.Next() {
		var stream, data string
		if err := rows.Scan(&stream, &data); err != nil {
			return nil, err
		}
		var bm model.Bookmark
		if err := json.Unmarshal([]byte(data), &bm); err != nil {
			return nil, err
		}
		out[stream] = bm
	}
	return out, rows.Err()
}

// SaveOutputFile records an emitted message file for a run
func SaveOutputFile(runID, fileName, filePath string, fileSize int64) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO output_files (run_id, file_name, file_path, file_size, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, fileName, filePath, fileSize, now)
	return err
}

// GetOutputFiles returns the output files recorded for a run
func GetOutputFiles(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT file_name, file_path, file_size, created_at FROM output_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var name, path string
		var size int64
		var createdAt time.Time
		if err := rows.Scan(&name, &path, &size, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"file_name": name,
			"file_path": path,
			"file_size": size,
			"createdAt": createdAt,
		})
	}
	return out, rows.Err()
}
