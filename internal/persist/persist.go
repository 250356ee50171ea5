// Package persist decides whether and where a completed episode is
// written, enforcing the per-scene episode quota.
//
// The quota source of truth is the scene directory itself: the number of
// episode subdirectories already on disk. A restarted run resumes against
// prior progress without separate state.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stexplore/strec/internal/episode"
	"github.com/stexplore/strec/internal/mapstore"
)

// ErrDatasetComplete signals that the per-scene quota has been met. It is
// a terminal-stop condition for the whole run, not a per-episode failure;
// the top-level driver decides how to exit.
var ErrDatasetComplete = errors.New("persist: episode quota reached for scene")

// Persister writes completed episode buffers under the output directory.
type Persister struct {
	outputDir string
	quota     int
	encoder   episode.Encoder
	logger    *slog.Logger
}

// New creates a Persister writing below outputDir with the given per-scene
// episode quota.
func New(outputDir string, quota int, enc episode.Encoder, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{outputDir: outputDir, quota: quota, encoder: enc, logger: logger}
}

// SceneDir returns the directory episodes of a scene are stored under.
func (p *Persister) SceneDir(sceneID string) string {
	return filepath.Join(p.outputDir, sceneID)
}

// CountEpisodes counts the episode subdirectories directly under sceneDir.
// The map store directory is not an episode and is excluded. A missing
// scene directory counts as zero.
func CountEpisodes(sceneDir string) (int, error) {
	entries, err := os.ReadDir(sceneDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading scene directory %s: %w", sceneDir, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && e.Name() != mapstore.MapsDirName {
			n++
		}
	}
	return n, nil
}

// Persist flushes the buffer into {outputDir}/{sceneID}/{episodeID}. When
// the scene already holds at least the quota of episodes it returns
// ErrDatasetComplete without writing anything. Buffer contract violations
// and flush I/O failures propagate unchanged.
func (p *Persister) Persist(ctx context.Context, buf *episode.Buffer, sceneID, episodeID string) error {
	sceneDir := p.SceneDir(sceneID)
	done, err := CountEpisodes(sceneDir)
	if err != nil {
		return err
	}
	if done >= p.quota {
		p.logger.Info("episode quota reached",
			"scene", sceneID, "saved", done, "quota", p.quota)
		return ErrDatasetComplete
	}

	p.logger.Info("saving episode",
		"scene", sceneID, "episode", episodeID, "saved", done, "quota", p.quota)

	episodeDir := filepath.Join(sceneDir, episodeID)
	if err := buf.Flush(ctx, episodeDir, p.encoder); err != nil {
		return err
	}

	p.logger.Info("episode saved", "scene", sceneID, "episode", episodeID, "dir", episodeDir)
	return nil
}
