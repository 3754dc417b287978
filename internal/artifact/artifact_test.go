package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStoreBlobRecomputesHashAndSize(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.StoreBlob([]byte("hello world"), StoreOptions{Name: "greeting.txt"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	if meta.SizeBytes != int64(len("hello world")) {
		t.Fatalf("expected recomputed size 11, got %d", meta.SizeBytes)
	}
	if meta.HashSHA256 == "" || meta.HashSHA256 == "unknown" {
		t.Fatalf("expected a recomputed hash, got %q", meta.HashSHA256)
	}
	if meta.Version != 1 {
		t.Fatalf("expected version 1 for a fresh artifact, got %d", meta.Version)
	}
}

func TestRetrieveRoundTrips(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.StoreBlob([]byte("data"), StoreOptions{Name: "x.txt"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	got, err := s.Retrieve(meta.ArtifactID)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.ArtifactID != meta.ArtifactID || got.Name != "x.txt" {
		t.Fatalf("retrieved metadata mismatch: %+v", got)
	}
}

func TestRetrieveMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Retrieve("does-not-exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategorizeOrderOfPrecedence(t *testing.T) {
	cases := []struct {
		path string
		want Category
	}{
		{"manim/media/videos/out.mp4", CategoryManim},
		{"/tmp/scratch.tmp", CategoryTemporary},
		{"cache/data.json", CategoryTemporary},
		{"clip.mp4", CategoryVideo},
		{"photo.png", CategoryImage},
		{"page.html", CategoryWeb},
		{"report.pdf", CategoryDocument},
		{"main.go", CategoryCode},
		{"records.csv", CategoryData},
		{"bundle.zip", CategoryArchive},
		{"unknown.xyz", CategoryOther},
	}
	for _, c := range cases {
		if got := Categorize(c.path); got != c.want {
			t.Fatalf("Categorize(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestGetContentFallsBackToHexForBinary(t *testing.T) {
	s := newTestStore(t)
	binary := []byte{0xff, 0xfe, 0x00, 0x01, 0x80}
	meta, err := s.StoreBlob(binary, StoreOptions{Name: "blob.bin"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	content, isHex, err := s.GetContent(meta.ArtifactID, true)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if !isHex {
		t.Fatalf("expected binary_hex fallback for invalid UTF-8 content")
	}
	if content != "fffe000180" {
		t.Fatalf("unexpected hex content: %s", content)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	first, err := s.StoreBlob([]byte("a"), StoreOptions{Name: "a.txt"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := s.StoreBlob([]byte("b"), StoreOptions{Name: "b.txt"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	list, err := s.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ArtifactID != second.ArtifactID || list[1].ArtifactID != first.ArtifactID {
		t.Fatalf("expected newest-first ordering, got %+v", list)
	}
}

func TestCleanupRespectsPreserveTags(t *testing.T) {
	s := newTestStore(t)
	kept, err := s.StoreBlob([]byte("keep me"), StoreOptions{Name: "keep.tmp", Tags: []string{"important"}})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	_, err = s.StoreBlob([]byte("delete me"), StoreOptions{Name: "gone.tmp"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}

	result, err := s.Cleanup(RetentionPolicy{
		CategoriesToClean: []Category{CategoryTemporary},
		PreserveTags:      []string{"important"},
	})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected exactly 1 deletion, got %d", result.Deleted)
	}
	if _, err := s.Retrieve(kept.ArtifactID); err != nil {
		t.Fatalf("expected preserved artifact to survive cleanup: %v", err)
	}
}

func TestCleanupByMaxAgeDays(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.StoreBlob([]byte("old"), StoreOptions{Name: "old.txt"})
	if err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}

	entry, _ := s.idx.get(meta.ArtifactID)
	backdated := time.Now().Add(-48 * time.Hour)
	entry.CreatedAt = backdated
	if err := s.idx.put(meta.ArtifactID, entry); err != nil {
		t.Fatalf("idx.put: %v", err)
	}

	oldMeta, err := s.readMetadata(entry.MetadataPath)
	if err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	oldMeta.CreatedAt = backdated
	out, err := json.MarshalIndent(oldMeta, "", "  ")
	if err != nil {
		t.Fatalf("marshaling metadata: %v", err)
	}
	if err := os.WriteFile(entry.MetadataPath, out, 0o644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}

	result, err := s.Cleanup(RetentionPolicy{MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deletion by age, got %d", result.Deleted)
	}
}

func TestCleanupEnforcesMaxArtifactsPerCategory(t *testing.T) {
	s := newTestStore(t)
	var metas []Metadata
	for i := 0; i < 3; i++ {
		m, err := s.StoreBlob([]byte{byte(i)}, StoreOptions{Name: "a.txt"})
		if err != nil {
			t.Fatalf("StoreBlob: %v", err)
		}
		metas = append(metas, m)

		entry, _ := s.idx.get(m.ArtifactID)
		entry.CreatedAt = time.Now().Add(time.Duration(i) * time.Hour)
		if err := s.idx.put(m.ArtifactID, entry); err != nil {
			t.Fatalf("idx.put: %v", err)
		}
		oldMeta, err := s.readMetadata(entry.MetadataPath)
		if err != nil {
			t.Fatalf("readMetadata: %v", err)
		}
		oldMeta.CreatedAt = entry.CreatedAt
		out, err := json.MarshalIndent(oldMeta, "", "  ")
		if err != nil {
			t.Fatalf("marshaling metadata: %v", err)
		}
		if err := os.WriteFile(entry.MetadataPath, out, 0o644); err != nil {
			t.Fatalf("writing metadata: %v", err)
		}
	}

	result, err := s.Cleanup(RetentionPolicy{MaxArtifactsPerCategory: 1})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Deleted != 2 {
		t.Fatalf("expected the 2 oldest artifacts in the category trimmed to the cap, got %d", result.Deleted)
	}
	if _, err := s.Retrieve(metas[2].ArtifactID); err != nil {
		t.Fatalf("expected the newest artifact to survive the per-category cap: %v", err)
	}
}

func TestCheckConsistencyDetectsOrphanedBlob(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.StoreBlob([]byte("tracked"), StoreOptions{Name: "tracked.txt"}); err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	orphanPath := filepath.Join(s.storageDir, "orphan_file.txt")
	if err := os.WriteFile(orphanPath, []byte("untracked"), 0o644); err != nil {
		t.Fatalf("writing orphan blob: %v", err)
	}

	_, orphanedBlobs, err := s.CheckConsistency()
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	if len(orphanedBlobs) != 1 || orphanedBlobs[0] != "orphan_file.txt" {
		t.Fatalf("expected orphan_file.txt to be flagged, got %+v", orphanedBlobs)
	}
}
