package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type PSQLStorage struct {
	TimeNow func() time.Time

	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`DROP TABLE IF EXISTS slot;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS slot (
    name TEXT PRIMARY KEY,
    blob BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating slot table: %w", err)
	}

	return &PSQLStorage{
		TimeNow: time.Now,
		db:      db,
	}, nil
}

func (s *PSQLStorage) Save(slot string, blob []byte) error {
	_, err := s.db.Exec(`
INSERT INTO slot (name, blob, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET
    blob = EXCLUDED.blob,
    updated_at = EXCLUDED.updated_at
`, slot, blob, s.TimeNow().UTC())
	if err != nil {
		return fmt.Errorf("saving slot %s: %w", slot, err)
	}
	return nil
}

func (s *PSQLStorage) Load(slot string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM slot WHERE name = $1`, slot).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading slot %s: %w", slot, err)
	}
	return blob, nil
}

func (s *PSQLStorage) ListSlots() ([]SlotMetadata, error) {
	rows, err := s.db.Query(`SELECT name, octet_length(blob), updated_at FROM slot ORDER BY name`)
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

// Removes every slot whose name is in names, in one statement.
func (s *PSQLStorage) DeleteMany(names []string) error {
	_, err := s.db.Exec(`DELETE FROM slot WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return fmt.Errorf("deleting slots: %w", err)
	}
	return nil
}

func (s *PSQLStorage) Delete(slot string) error {
	return s.DeleteMany([]string{slot})
}

func (s *PSQLStorage) Close() error {
	return s.db.Close()
}
