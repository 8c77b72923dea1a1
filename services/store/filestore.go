package store

import (
	"encoding/json"
	"os"

	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/pkg/errors"
)

// FileStore persists price records as a JSON object keyed by item name.
// Amounts serialize as decimal strings, so values round-trip exactly.
// Every Put rewrites the file through a temp file + rename, committing the
// record before the caller moves on to notification.
type FileStore struct {
	path    string
	records map[string]watch.PriceRecord
}

// NewFileStore opens (or initializes) the store at path. A missing file is an
// empty store; an unreadable or corrupt file is a fatal store error, since a
// silently reset history would re-notify every item as INIT.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]watch.PriceRecord),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.NewStore("", "failed to read state file "+path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, errors.NewStore("", "corrupt state file "+path, err)
	}
	for name, record := range s.records {
		record.ItemName = name
		s.records[name] = record
	}

	return s, nil
}

// Get retrieves the record for an item
func (s *FileStore) Get(itemName string) (watch.PriceRecord, bool, error) {
	record, ok := s.records[itemName]
	return record, ok, nil
}

// Put upserts a record, fully overwriting any prior one, and commits the
// whole store to disk before returning
func (s *FileStore) Put(record watch.PriceRecord) error {
	if record.ItemName == "" {
		return errors.NewStore("", "record has no item name", nil)
	}
	s.records[record.ItemName] = record
	return s.commit()
}

// Len returns the number of stored records
func (s *FileStore) Len() int {
	return len(s.records)
}

// commit writes the store atomically: marshal, temp file, rename
func (s *FileStore) commit() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return errors.NewStore("", "failed to marshal state", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.NewStore("", "failed to write state file "+tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.NewStore("", "failed to replace state file "+s.path, err)
	}
	return nil
}
