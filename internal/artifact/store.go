package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the content-addressed blob + metadata store described in
// spec §4.3, grounded on the write-then-verify flow of
// original_source/src/sandbox/core/artifact_manager.py's store_artifact.
type Store struct {
	storageDir  string
	metadataDir string
	idx         *index
	log         zerolog.Logger
}

// NewStore opens (or creates) a store rooted at dir, with storage/, metadata/
// subdirectories and an artifact_index.json sibling.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	storageDir := filepath.Join(dir, "storage")
	metadataDir := filepath.Join(dir, "metadata")
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata dir: %w", err)
	}
	idx, err := loadIndex(filepath.Join(dir, "artifact_index.json"))
	if err != nil {
		return nil, err
	}
	return &Store{storageDir: storageDir, metadataDir: metadataDir, idx: idx, log: log}, nil
}

// StoreOptions carries the caller-supplied fields of Metadata that are not
// recomputed server-side.
type StoreOptions struct {
	Name         string
	OriginalPath string
	Tags         []string
	WorkspaceID  string
	UserID       string
	Description  string
	ParentID     string
}

// StoreBlob writes data to storage/<id>_<name>, a metadata JSON document to
// metadata/<id>.json, and updates the index atomically. size_bytes and
// hash_sha256 are always recomputed from the bytes actually written, never
// trusted from the caller (spec §4.3).
func (s *Store) StoreBlob(data []byte, opts StoreOptions) (Metadata, error) {
	id := uuid.NewString()
	name := opts.Name
	if name == "" {
		name = id
	}
	storagePath := filepath.Join(s.storageDir, fmt.Sprintf("%s_%s", id, name))

	if err := os.WriteFile(storagePath, data, 0o644); err != nil {
		return Metadata{}, fmt.Errorf("internal: writing blob: %w", err)
	}

	info, err := os.Stat(storagePath)
	if err != nil {
		os.Remove(storagePath)
		return Metadata{}, fmt.Errorf("internal: stating written blob: %w", err)
	}

	hash := "unknown"
	if h, herr := hashFile(storagePath); herr == nil {
		hash = h
	} else {
		s.log.Warn().Err(herr).Str("artifact_id", id).Msg("hash recomputation failed, recording unknown")
	}

	now := time.Now()
	version := 1
	if opts.ParentID != "" {
		version = versionFromMetadataFile(s.metadataDir, opts.ParentID) + 1
	}

	meta := Metadata{
		ArtifactID:   id,
		Name:         name,
		OriginalPath: opts.OriginalPath,
		SizeBytes:    info.Size(),
		CreatedAt:    now,
		ModifiedAt:   now,
		ContentType:  strings.ToLower(filepath.Ext(name)),
		MimeType:     mimeType(name),
		HashSHA256:   hash,
		Category:     Categorize(opts.OriginalPath + name),
		Tags:         opts.Tags,
		Version:      version,
		ParentID:     opts.ParentID,
		WorkspaceID:  opts.WorkspaceID,
		UserID:       opts.UserID,
		Description:  opts.Description,
		StoragePath:  storagePath,
	}

	metadataPath := filepath.Join(s.metadataDir, id+".json")
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.Remove(storagePath)
		return Metadata{}, fmt.Errorf("internal: marshaling metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, metaBytes, 0o644); err != nil {
		os.Remove(storagePath)
		return Metadata{}, fmt.Errorf("internal: writing metadata: %w", err)
	}

	if err := s.idx.put(id, indexEntry{
		Name:         name,
		Category:     meta.Category,
		SizeBytes:    meta.SizeBytes,
		CreatedAt:    meta.CreatedAt,
		StoragePath:  storagePath,
		MetadataPath: metadataPath,
	}); err != nil {
		os.Remove(storagePath)
		os.Remove(metadataPath)
		return Metadata{}, fmt.Errorf("internal: updating index: %w", err)
	}

	return meta, nil
}

// StoreFile reads path and delegates to StoreBlob, inferring category from
// the source path (spec §4.3: "thin wrapper that reads the file...").
func (s *Store) StoreFile(path string, opts StoreOptions) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading source file: %w", err)
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	if opts.OriginalPath == "" {
		opts.OriginalPath = path
	}
	return s.StoreBlob(data, opts)
}

// ErrNotFound is returned by Retrieve/GetContent when artifact_id is unknown.
var ErrNotFound = fmt.Errorf("artifact not found")

// Retrieve loads an artifact's full Metadata, verifying the blob is present.
func (s *Store) Retrieve(artifactID string) (Metadata, error) {
	entry, ok := s.idx.get(artifactID)
	if !ok {
		return Metadata{}, ErrNotFound
	}
	meta, err := s.readMetadata(entry.MetadataPath)
	if err != nil {
		return Metadata{}, err
	}
	if _, err := os.Stat(meta.StoragePath); err != nil {
		return Metadata{}, fmt.Errorf("%w: blob missing on disk", ErrNotFound)
	}
	return meta, nil
}

// List returns ArtifactInfo (here, full Metadata) matching filter, newest
// first (spec §4.3).
func (s *Store) List(filter Filter) ([]Metadata, error) {
	all := s.idx.all()
	out := make([]Metadata, 0, len(all))
	for id, entry := range all {
		meta, err := s.readMetadata(entry.MetadataPath)
		if err != nil {
			s.log.Warn().Err(err).Str("artifact_id", id).Msg("skipping artifact with unreadable metadata")
			continue
		}
		if !matchesFilter(meta, filter) {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func matchesFilter(m Metadata, f Filter) bool {
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.WorkspaceID != "" && m.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.UserID != "" && m.UserID != f.UserID {
		return false
	}
	if len(f.Tags) > 0 && !tagsIntersect(m.Tags, f.Tags) {
		return false
	}
	if !f.CreatedAfter.IsZero() && m.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && m.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

func tagsIntersect(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if set[t] {
			return true
		}
	}
	return false
}

// GetContent returns the blob's bytes, or (if asText) attempts a UTF-8
// decode and falls back to hex encoding with a flag (spec §4.3).
func (s *Store) GetContent(artifactID string, asText bool) (content string, binaryHex bool, err error) {
	meta, err := s.Retrieve(artifactID)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(meta.StoragePath)
	if err != nil {
		return "", false, fmt.Errorf("internal: reading blob: %w", err)
	}
	if !asText {
		return string(data), false, nil
	}
	if isValidUTF8(data) {
		return string(data), false, nil
	}
	return hex.EncodeToString(data), true, nil
}

// Cleanup evaluates policy against the current artifact set and deletes the
// resulting candidates, per spec §4.3.
func (s *Store) Cleanup(policy RetentionPolicy) (CleanupResult, error) {
	all, err := s.List(Filter{})
	if err != nil {
		return CleanupResult{}, err
	}

	candidates := evaluateRetention(all, policy, time.Now())

	result := CleanupResult{
		Total:             len(all),
		DeletedByCategory: map[Category]int{},
	}
	for _, m := range candidates {
		if err := s.delete(m.ArtifactID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ArtifactID, err))
			continue
		}
		result.Deleted++
		result.FreedBytes += m.SizeBytes
		result.DeletedByCategory[m.Category]++
	}
	if err := s.idx.setLastCleanup(time.Now()); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist last_cleanup timestamp")
	}
	return result, nil
}

func (s *Store) delete(artifactID string) error {
	entry, ok := s.idx.get(artifactID)
	if !ok {
		return nil
	}
	if err := s.idx.remove(artifactID); err != nil {
		return err
	}
	os.Remove(entry.StoragePath)
	os.Remove(entry.MetadataPath)
	return nil
}

// StorageStats aggregates per-category counts/sizes and the last cleanup
// timestamp (spec §4.3).
func (s *Store) StorageStats() (StorageStats, error) {
	all, err := s.List(Filter{})
	if err != nil {
		return StorageStats{}, err
	}
	stats := StorageStats{ByCategory: map[Category]CategoryStats{}, LastCleanup: s.idx.lastCleanup()}
	for _, m := range all {
		stats.Total++
		stats.TotalSize += m.SizeBytes
		cs := stats.ByCategory[m.Category]
		cs.Count++
		cs.Size += m.SizeBytes
		stats.ByCategory[m.Category] = cs
	}
	return stats, nil
}

// CheckConsistency reports artifacts whose index entry has no backing blob
// or metadata file (an orphan-detection sweep, see SPEC_FULL.md §3).
func (s *Store) CheckConsistency() (orphanedIndexEntries []string, orphanedBlobs []string, err error) {
	all := s.idx.all()
	for id, entry := range all {
		if _, err := os.Stat(entry.StoragePath); err != nil {
			orphanedIndexEntries = append(orphanedIndexEntries, id)
			continue
		}
		if _, err := os.Stat(entry.MetadataPath); err != nil {
			orphanedIndexEntries = append(orphanedIndexEntries, id)
		}
	}

	indexed := make(map[string]bool, len(all))
	for _, entry := range all {
		indexed[filepath.Base(entry.StoragePath)] = true
	}
	entries, readErr := os.ReadDir(s.storageDir)
	if readErr != nil {
		return orphanedIndexEntries, nil, fmt.Errorf("reading storage dir: %w", readErr)
	}
	for _, e := range entries {
		if !indexed[e.Name()] {
			orphanedBlobs = append(orphanedBlobs, e.Name())
		}
	}
	return orphanedIndexEntries, orphanedBlobs, nil
}

func (s *Store) readMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing metadata: %w", err)
	}
	return meta, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func versionFromMetadataFile(metadataDir, artifactID string) int {
	data, err := os.ReadFile(filepath.Join(metadataDir, artifactID+".json"))
	if err != nil {
		return 0
	}
	var meta Metadata
	if json.Unmarshal(data, &meta) != nil {
		return 0
	}
	return meta.Version
}

func isValidUTF8(data []byte) bool {
	return utf8.Valid(data)
}
