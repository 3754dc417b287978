package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// indexEntry is the lightweight record kept in the index document, separate
// from the full Metadata persisted alongside each blob (spec §3: "Artifact
// Store Index").
type indexEntry struct {
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	StoragePath  string    `json:"storage_path"`
	MetadataPath string    `json:"metadata_path"`
}

// indexDocument is the on-disk shape of artifact_index.json.
type indexDocument struct {
	Version     int                     `json:"version"`
	Artifacts   map[string]indexEntry   `json:"artifacts"`
	Categories  map[Category][]string   `json:"categories"`
	LastCleanup time.Time               `json:"last_cleanup"`
}

const indexSchemaVersion = 1

// index is an in-memory mirror of indexDocument, guarded by mu and rewritten
// atomically to disk on every mutation.
type index struct {
	mu   sync.RWMutex
	path string
	doc  indexDocument
}

func loadIndex(path string) (*index, error) {
	idx := &index{
		path: path,
		doc: indexDocument{
			Version:    indexSchemaVersion,
			Artifacts:  map[string]indexEntry{},
			Categories: map[Category][]string{},
		},
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact index: %w", err)
	}
	if err := json.Unmarshal(data, &idx.doc); err != nil {
		return nil, fmt.Errorf("parsing artifact index: %w", err)
	}
	if idx.doc.Artifacts == nil {
		idx.doc.Artifacts = map[string]indexEntry{}
	}
	if idx.doc.Categories == nil {
		idx.doc.Categories = map[Category][]string{}
	}
	return idx, nil
}

// put inserts or replaces an entry and rewrites the index atomically.
func (idx *index) put(id string, entry indexEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.doc.Artifacts[id]; ok {
		idx.removeFromCategory(old.Category, id)
	}
	idx.doc.Artifacts[id] = entry
	idx.doc.Categories[entry.Category] = append(idx.doc.Categories[entry.Category], id)
	return idx.persistLocked()
}

func (idx *index) remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.doc.Artifacts[id]
	if !ok {
		return nil
	}
	delete(idx.doc.Artifacts, id)
	idx.removeFromCategory(entry.Category, id)
	return idx.persistLocked()
}

func (idx *index) removeFromCategory(cat Category, id string) {
	ids := idx.doc.Categories[cat]
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if len(out) == 0 {
		delete(idx.doc.Categories, cat)
	} else {
		idx.doc.Categories[cat] = out
	}
}

func (idx *index) get(id string) (indexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.doc.Artifacts[id]
	return e, ok
}

func (idx *index) all() map[string]indexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]indexEntry, len(idx.doc.Artifacts))
	for k, v := range idx.doc.Artifacts {
		out[k] = v
	}
	return out
}

func (idx *index) setLastCleanup(t time.Time) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.doc.LastCleanup = t
	return idx.persistLocked()
}

func (idx *index) lastCleanup() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.doc.LastCleanup
}

// persistLocked rewrites the index document to a temp file in the same
// directory, then renames over the original — the rename is atomic on the
// same filesystem, so a crash mid-write never leaves a truncated index.
func (idx *index) persistLocked() error {
	data, err := json.MarshalIndent(idx.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact index: %w", err)
	}
	dir := filepath.Dir(idx.path)
	tmp, err := os.CreateTemp(dir, ".artifact_index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp index file: %w", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp index file: %w", err)
	}
	return nil
}
