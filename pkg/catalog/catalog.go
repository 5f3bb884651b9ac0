// Package catalog keeps a JSON index of the clips saved to disk.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clip not found")

// Entry describes one saved clip.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	Path          string    `json:"path"`
	Source        string    `json:"source"` // "http", "schedule", "trigger" or "cli"
	Frames        int       `json:"frames"`
	Bytes         int64     `json:"bytes"`
	ElapsedMicros uint32    `json:"elapsedMicros"`
	Created       time.Time `json:"created"`
}

// Catalog stores entries in index.json inside its directory. Clip files
// usually live next to it.
type Catalog struct {
	mu   sync.Mutex
	dir  string
	path string
	now  func() time.Time
}

func New(dir string) *Catalog {
	return &Catalog{dir: dir, path: filepath.Join(dir, "index.json"), now: time.Now}
}

// Dir is the directory of the catalog.
func (c *Catalog) Dir() string { return c.dir }

// NewEntry prepares an entry with a fresh ID and a clip path in the
// catalog directory. It is not stored until Add is called.
func (c *Catalog) NewEntry(source string) Entry {
	id := uuid.New()
	return Entry{
		ID:      id,
		Path:    filepath.Join(c.dir, id.String()+".kclip"),
		Source:  source,
		Created: c.now(),
	}
}

func (c *Catalog) read() ([]Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted index is rebuilt on the next write.
		return []Entry{}, nil
	}
	return entries, nil
}

func (c *Catalog) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Add stores e in the index.
func (c *Catalog) Add(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	entries = append(entries, e)
	return c.write(entries)
}

// List returns all entries, newest first.
func (c *Catalog) List() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})
	return entries, nil
}

// Get looks up an entry by ID.
func (c *Catalog) Get(id uuid.UUID) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Remove deletes an entry and its clip file.
func (c *Catalog) Remove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.ID != id {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return c.write(append(entries[:i], entries[i+1:]...))
	}
	return ErrNotFound
}

// Prune drops entries older than retention and deletes their files. It
// returns the number of entries removed.
func (c *Catalog) Prune(retention time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return 0, err
	}

	var recent []Entry
	var errs []error
	cutoff := c.now().Add(-retention)
	for _, e := range entries {
		if e.Created.After(cutoff) {
			recent = append(recent, e)
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			recent = append(recent, e)
		}
	}
	removed := len(entries) - len(recent)
	if removed == 0 {
		return 0, errors.Join(errs...)
	}
	if recent == nil {
		recent = []Entry{}
	}
	if err := c.write(recent); err != nil {
		return 0, err
	}
	return removed, errors.Join(errs...)
}
