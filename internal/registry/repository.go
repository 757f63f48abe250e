package registry

import (
	"database/sql"
	"errors"
	"time"

	"github.com/strefethen/victrola-bridge/internal/victrola"
)

// DBPair interface for dependency injection (matches db.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Repository persists speaker seeds and resolved records so the registry
// survives restarts without waiting for the first poll cycle.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository creates a Repository over the shared database pair.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// SaveSeeds upserts the seed table. Seeds are keyed by (backend, name) so
// reloading an edited seed file updates IDs in place.
func (r *Repository) SaveSeeds(table SeedTable) error {
	tx, err := r.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO speaker_seeds (backend, display_name, network_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (backend, display_name) DO UPDATE SET
			network_id = excluded.network_id,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowISO()
	for _, source := range victrola.Sources {
		for _, seed := range table.ForBackend(source) {
			if seed.DisplayName == "" || seed.NetworkID == "" {
				continue
			}
			if _, err := stmt.Exec(string(source), seed.DisplayName, seed.NetworkID, now); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadSeeds reads all persisted seeds back into a SeedTable.
func (r *Repository) LoadSeeds() (SeedTable, error) {
	rows, err := r.reader.Query(`
		SELECT backend, display_name, network_id
		FROM speaker_seeds
		ORDER BY backend, display_name
	`)
	if err != nil {
		return SeedTable{}, err
	}
	defer rows.Close()

	var table SeedTable
	for rows.Next() {
		var backend, name, id string
		if err := rows.Scan(&backend, &name, &id); err != nil {
			return SeedTable{}, err
		}
		seed := Seed{DisplayName: name, NetworkID: id}
		switch victrola.Source(backend) {
		case victrola.SourceRoon:
			table.Roon = append(table.Roon, seed)
		case victrola.SourceSonos:
			table.Sonos = append(table.Sonos, seed)
		case victrola.SourceUPnP:
			table.UPnP = append(table.UPnP, seed)
		case victrola.SourceBluetooth:
			table.Bluetooth = append(table.Bluetooth, seed)
		}
	}
	if err := rows.Err(); err != nil {
		return SeedTable{}, err
	}
	return table, nil
}

// ReplaceRecords swaps a backend's persisted records for the given set.
func (r *Repository) ReplaceRecords(backend victrola.Source, records []SpeakerRecord) error {
	tx, err := r.writer.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM speaker_records WHERE backend = ?", string(backend)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO speaker_records (backend, display_name, resolved_id, raw_path, sonos_group_id, preferred, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowISO()
	for _, rec := range records {
		preferred := 0
		if rec.Preferred {
			preferred = 1
		}
		if _, err := stmt.Exec(string(backend), rec.DisplayName, rec.ResolvedID,
			nullable(rec.RawPath), nullable(rec.SonosGroupID), preferred, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadRecords reads all persisted records.
func (r *Repository) LoadRecords() ([]SpeakerRecord, error) {
	rows, err := r.reader.Query(`
		SELECT backend, display_name, resolved_id, raw_path, sonos_group_id, preferred
		FROM speaker_records
		ORDER BY backend, display_name
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var records []SpeakerRecord
	for rows.Next() {
		var backend string
		var rec SpeakerRecord
		var rawPath, sonosGroupID sql.NullString
		var preferred int
		if err := rows.Scan(&backend, &rec.DisplayName, &rec.ResolvedID, &rawPath, &sonosGroupID, &preferred); err != nil {
			return nil, err
		}
		rec.Backend = victrola.Source(backend)
		rec.RawPath = rawPath.String
		rec.SonosGroupID = sonosGroupID.String
		rec.Preferred = preferred == 1
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
