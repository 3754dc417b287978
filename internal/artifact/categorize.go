package artifact

import (
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".gif": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".svg": true, ".tiff": true, ".webp": true,
}

var webExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".txt": true, ".md": true, ".rtf": true, ".odt": true,
}

var codeExtensions = map[string]bool{
	".py": true, ".go": true, ".c": true, ".cpp": true, ".h": true, ".java": true,
	".rs": true, ".sh": true, ".rb": true, ".ts": true,
}

var dataExtensions = map[string]bool{
	".json": true, ".csv": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true, ".parquet": true,
}

var archiveExtensions = map[string]bool{
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
}

// Categorize classifies an artifact by its path, applying the first-match-wins
// rule from spec §4.3: manim/media path first, then temporary markers, then
// extension-based buckets, falling back to CategoryOther.
func Categorize(path string) Category {
	lower := strings.ToLower(path)
	ext := strings.ToLower(filepath.Ext(path))

	if strings.Contains(lower, "manim") || strings.Contains(lower, "media") {
		return CategoryManim
	}

	if ext == ".tmp" || ext == ".cache" || hasPathComponent(lower, "temp", "cache", "tmp") {
		return CategoryTemporary
	}

	switch {
	case videoExtensions[ext]:
		return CategoryVideo
	case imageExtensions[ext]:
		return CategoryImage
	case webExtensions[ext]:
		return CategoryWeb
	case documentExtensions[ext]:
		return CategoryDocument
	case codeExtensions[ext]:
		return CategoryCode
	case dataExtensions[ext]:
		return CategoryData
	case archiveExtensions[ext]:
		return CategoryArchive
	}
	return CategoryOther
}

// hasPathComponent reports whether any '/'-separated component of path starts
// with one of the given markers (matching the original's "temp"/"cache"/"tmp"
// directory-name heuristic, not just a bare substring of the whole path).
func hasPathComponent(path string, markers ...string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, m := range markers {
			if strings.HasPrefix(part, m) {
				return true
			}
		}
	}
	return false
}

// mimeTypes maps extension to a conservative MIME type for the subset of
// extensions the store cares about; anything else falls back to
// application/octet-stream.
var mimeTypes = map[string]string{
	".mp4": "video/mp4", ".mov": "video/quicktime", ".avi": "video/x-msvideo",
	".mkv": "video/x-matroska", ".webm": "video/webm", ".gif": "image/gif",
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".bmp": "image/bmp", ".svg": "image/svg+xml", ".tiff": "image/tiff", ".webp": "image/webp",
	".html": "text/html", ".css": "text/css", ".js": "application/javascript",
	".pdf": "application/pdf", ".txt": "text/plain", ".md": "text/markdown",
	".json": "application/json", ".csv": "text/csv", ".yaml": "application/yaml",
	".yml": "application/yaml", ".xml": "application/xml",
	".zip": "application/zip", ".tar": "application/x-tar", ".gz": "application/gzip",
}

func mimeType(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}
