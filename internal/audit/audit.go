package audit

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Status of a dispatched command.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// Entry is one dispatched device command and its outcome.
type Entry struct {
	CommandID string          `json:"command_id"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Command   string          `json:"command"`
	Params    json.RawMessage `json:"params"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository records every command the dispatcher sends to the device.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a Repository over the shared database pair.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// Record inserts an audit entry. Audit failures are logged, never propagated;
// a full disk must not fail a speaker command.
func (r *Repository) Record(requestID, command string, params any, cmdErr error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		paramsJSON = []byte("{}")
	}

	status := StatusOK
	errMsg := ""
	if cmdErr != nil {
		status = StatusFailed
		errMsg = cmdErr.Error()
	}

	_, err = r.writer.Exec(`
		INSERT INTO command_audit (command_id, timestamp, request_id, command, params, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), time.Now().UTC().Format(time.RFC3339), nullable(requestID),
		command, string(paramsJSON), status, nullable(errMsg))
	if err != nil {
		log.Printf("AUDIT: record failed: %v", err)
	}
}

// Recent returns the newest entries, most recent first.
func (r *Repository) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.reader.Query(`
		SELECT command_id, timestamp, request_id, command, params, status, error
		FROM command_audit
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var ts string
		var requestID, errMsg sql.NullString
		var params string
		if err := rows.Scan(&entry.CommandID, &ts, &requestID, &entry.Command, &params, &entry.Status, &errMsg); err != nil {
			return nil, err
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339, ts)
		entry.RequestID = requestID.String
		entry.Error = errMsg.String
		entry.Params = json.RawMessage(params)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
