package storage

import (
	"sort"
	"sync"
	"time"
)

// In memory implementation of Storage

type memorySlot struct {
	blob      []byte
	updatedAt time.Time
}

type MemoryStorage struct {
	TimeNow func() time.Time

	mutex sync.Mutex
	slots map[string]memorySlot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		TimeNow: time.Now,
		slots:   map[string]memorySlot{},
	}
}

func (s *MemoryStorage) Save(slot string, blob []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.slots[slot] = memorySlot{
		blob:      append([]byte{}, blob...),
		updatedAt: s.TimeNow().UTC(),
	}
	return nil
}

func (s *MemoryStorage) Load(slot string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, found := s.slots[slot]
	if !found {
		return nil, ErrNotFound
	}
	return append([]byte{}, rec.blob...), nil
}

func (s *MemoryStorage) ListSlots() ([]SlotMetadata, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	slots := []SlotMetadata{}
	for name, rec := range s.slots {
		slots = append(slots, SlotMetadata{
			Slot:      name,
			Size:      len(rec.blob),
			UpdatedAt: rec.updatedAt,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	return slots, nil
}

func (s *MemoryStorage) Delete(slot string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.slots, slot)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
