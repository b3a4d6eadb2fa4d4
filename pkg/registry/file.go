package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/povmint/povmint-core/pkg/badge"
)

// File is a Registry persisted to a local JSON file. Reads are served
// from memory; every append rewrites the file. The file is a convenience
// copy for the admin device, not shared state.
type File struct {
	mem  *Memory
	path string

	mu sync.Mutex // serializes writes to the file
}

// NewFile opens (or creates) a file-backed registry at path.
func NewFile(path string) (*File, error) {
	f := &File{mem: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var awards map[string][]badge.Award
	if err := json.Unmarshal(data, &awards); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	f.mem.restore(awards)
	return f, nil
}

// Contains reports whether pubkey already holds an award for the badge.
func (f *File) Contains(addressRef, pubkey string) bool {
	return f.mem.Contains(addressRef, pubkey)
}

// Append records the award in memory and rewrites the backing file.
func (f *File) Append(award badge.Award) error {
	if err := f.mem.Append(award); err != nil {
		return err
	}
	return f.save()
}

// List returns the awards recorded for the badge, in append order.
func (f *File) List(addressRef string) []badge.Award {
	return f.mem.List(addressRef)
}

func (f *File) save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(f.mem.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
