package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	TimeNow func() time.Time

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/timetable.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS slot (
    name TEXT PRIMARY KEY,
    blob BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating slot table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		TimeNow: time.Now,
		db:      db,
	}, nil
}

func (s *SQLiteStorage) Save(slot string, blob []byte) error {
	_, err := s.db.Exec(`
INSERT INTO slot (name, blob, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    blob = excluded.blob,
    updated_at = excluded.updated_at
`, slot, blob, s.TimeNow().UTC())
	if err != nil {
		return fmt.Errorf("saving slot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStorage) Load(slot string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM slot WHERE name = ?`, slot).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading slot %s: %w", slot, err)
	}
	return blob, nil
}

func (s *SQLiteStorage) ListSlots() ([]SlotMetadata, error) {
	rows, err := s.db.Query(`SELECT name, length(blob), updated_at FROM slot ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	slots := []SlotMetadata{}
	for rows.Next() {
		var md SlotMetadata
		if err := rows.Scan(&md.Slot, &md.Size, &md.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}
	return slots, nil
}

func (s *SQLiteStorage) Delete(slot string) error {
	_, err := s.db.Exec(`DELETE FROM slot WHERE name = ?`, slot)
	if err != nil {
		return fmt.Errorf("deleting slot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
