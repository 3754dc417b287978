package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
)

// harvestDir walks dir for regular files and stores each into store,
// returning dir-relative paths for the Execution Result's artifacts list
// (spec §4.4). Matches execution_engine.py's `artifacts_dir.rglob('*')`
// harvesting pattern used by all three execute_* paths.
func harvestDir(dir, workspaceID string, store *artifact.Store, log zerolog.Logger) []string {
	var relPaths []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if _, storeErr := store.StoreFile(path, artifact.StoreOptions{
			Name:         filepath.Base(path),
			OriginalPath: rel,
			WorkspaceID:  workspaceID,
		}); storeErr != nil {
			log.Warn().Err(storeErr).Str("path", path).Msg("failed to store harvested artifact")
			return nil
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	return relPaths
}

// harvestByExtension is like harvestDir but only harvests files whose
// extension is in allowed — used by the animation path, which only wants
// manim's rendered media (.mp4/.png/.gif/.mov), not every scratch file the
// renderer leaves behind.
func harvestByExtension(dir, workspaceID string, allowed map[string]bool, store *artifact.Store, log zerolog.Logger) []string {
	var relPaths []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !allowed[filepath.Ext(path)] {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if _, storeErr := store.StoreFile(path, artifact.StoreOptions{
			Name:         filepath.Base(path),
			OriginalPath: rel,
			WorkspaceID:  workspaceID,
		}); storeErr != nil {
			log.Warn().Err(storeErr).Str("path", path).Msg("failed to store harvested artifact")
			return nil
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	return relPaths
}
