// Package artifact implements the content-addressed Artifact Store (spec §4.3):
// blob + metadata storage with a JSON index and a retention policy engine.
package artifact

import "time"

// Category classifies an artifact for retention and listing purposes.
type Category string

const (
	CategoryManim     Category = "manim"
	CategoryTemporary Category = "temporary"
	CategoryVideo     Category = "video"
	CategoryImage     Category = "image"
	CategoryWeb       Category = "web"
	CategoryDocument  Category = "document"
	CategoryCode      Category = "code"
	CategoryData      Category = "data"
	CategoryArchive   Category = "archive"
	CategoryOther     Category = "other"
)

// Metadata is the record described in spec §3. hash_sha256 is always
// recomputed server-side from the stored blob, never trusted from a caller.
type Metadata struct {
	ArtifactID   string    `json:"artifact_id"`
	Name         string    `json:"name"`
	OriginalPath string    `json:"original_path,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
	ContentType  string    `json:"content_type"`
	MimeType     string    `json:"mime_type"`
	HashSHA256   string    `json:"hash_sha256"`
	Category     Category  `json:"category"`
	Tags         []string  `json:"tags,omitempty"`
	Version      int       `json:"version"`
	ParentID     string    `json:"parent_id,omitempty"`
	WorkspaceID  string    `json:"workspace_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Description  string    `json:"description,omitempty"`

	StoragePath string `json:"storage_path"`
}

// Filter narrows a List call. Zero-value fields mean "no constraint".
type Filter struct {
	Category      Category
	WorkspaceID   string
	UserID        string
	Tags          []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// RetentionPolicy drives Cleanup (spec §4.3). All fields optional; absence
// means no constraint on that axis.
type RetentionPolicy struct {
	MaxAgeDays              int
	MaxTotalSizeMiB         int64
	MaxArtifactsPerCategory int
	CategoriesToClean       []Category
	PreserveTags            []string
}

// CleanupResult is returned from Cleanup.
type CleanupResult struct {
	Total             int
	Deleted           int
	FreedBytes        int64
	DeletedByCategory map[Category]int
	Errors            []string
}

// StorageStats is returned from StorageStats.
type StorageStats struct {
	Total       int
	TotalSize   int64
	ByCategory  map[Category]CategoryStats
	LastCleanup time.Time
}

type CategoryStats struct {
	Count int
	Size  int64
}
