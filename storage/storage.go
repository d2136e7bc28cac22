package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("slot not found")

// Named slots holding opaque blobs. Used to persist session state
// between runs; each Save replaces the slot's previous value.
type Storage interface {
	// Writes blob to slot, replacing any previous value.
	Save(slot string, blob []byte) error

	// Reads the latest value of slot. Returns ErrNotFound if the
	// slot was never written.
	Load(slot string) ([]byte, error)

	// Lists all slots, by name.
	ListSlots() ([]SlotMetadata, error)

	// Removes a slot. Deleting a missing slot is not an error.
	Delete(slot string) error

	Close() error
}

type SlotMetadata struct {
	Slot      string
	Size      int
	UpdatedAt time.Time
}
