// Package mapstore deduplicates top-down occupancy maps on disk.
//
// Map identity is content plus shape: the storage filename is derived from
// a SHA-256 digest of the raw cell bytes with the grid dimensions appended,
// so bit-identical maps from different episodes resolve to the same file.
package mapstore

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"

	"github.com/stexplore/strec/internal/grid"
)

// MapsDirName is the subdirectory of a scene directory holding stored maps.
const MapsDirName = "topdown_maps"

// Digest returns the storage key for a grid: the hex SHA-256 of its cell
// bytes followed by its dimensions ("{hex}_{rows}_{cols}"). The shape
// suffix keeps different-shaped grids distinct even on a byte-level hash
// coincidence.
func Digest(g *grid.Grid) string {
	sum := sha256.Sum256(g.Cells)
	return fmt.Sprintf("%x_%d_%d", sum, g.Rows, g.Cols)
}

// Path returns the file path a grid would be stored at under sceneDir.
func Path(g *grid.Grid, sceneDir string) string {
	return filepath.Join(sceneDir, MapsDirName, Digest(g)+".npy")
}

// Put stores the grid under its digest path inside sceneDir unless a file
// with that digest already exists. The stored file is the bit-packed cells
// as a 1-D uint8 .npy array. An existing file is trusted on the digest's
// collision resistance and never re-verified or rewritten, so the write
// goes through a temp file renamed into place; an interrupted write never
// leaves a partial file at the digest path. Returns the path and whether a
// new file was written.
func Put(g *grid.Grid, sceneDir string) (string, bool, error) {
	path := Path(g, sceneDir)

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("checking map file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("creating maps directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.npy")
	if err != nil {
		return "", false, fmt.Errorf("creating map temp file: %w", err)
	}
	tmp := f.Name()

	if err := npyio.Write(f, g.Pack()); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", false, fmt.Errorf("writing map file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("closing map file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("moving map file into place: %w", err)
	}
	return path, true, nil
}

// Load reads a stored map back into a grid of the given shape.
func Load(path string, rows, cols int) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map file: %w", err)
	}
	defer f.Close()

	var packed []uint8
	if err := npyio.Read(f, &packed); err != nil {
		return nil, fmt.Errorf("reading map file %s: %w", path, err)
	}
	return grid.Unpack(packed, rows, cols)
}
