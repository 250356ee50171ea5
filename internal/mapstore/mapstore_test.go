package mapstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stexplore/strec/internal/grid"
)

func testGrid(rows, cols int, seed int) *grid.Grid {
	g := grid.New(rows, cols)
	for i := range g.Cells {
		if (i+seed)%4 == 0 {
			g.Cells[i] = 1
		}
	}
	return g
}

func TestDigestDeterministic(t *testing.T) {
	a := testGrid(6, 9, 1)
	b := testGrid(6, 9, 1)
	if Digest(a) != Digest(b) {
		t.Error("identical grids produced different digests")
	}
}

func TestDigestIncludesShape(t *testing.T) {
	a := testGrid(6, 9, 1)
	if !strings.HasSuffix(Digest(a), "_6_9") {
		t.Errorf("digest %q missing shape suffix", Digest(a))
	}
}

func TestDigestDiffers(t *testing.T) {
	tests := []struct {
		name string
		a, b *grid.Grid
	}{
		{"different content", testGrid(6, 9, 1), testGrid(6, 9, 2)},
		{"different shape same cells", testGrid(6, 9, 1), testGrid(9, 6, 1)},
		{"transposed shape", testGrid(2, 8, 0), testGrid(8, 2, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Digest(tt.a) == Digest(tt.b) {
				t.Error("digests collide")
			}
		})
	}
}

func TestPutCreatesOnce(t *testing.T) {
	sceneDir := t.TempDir()
	g := testGrid(5, 7, 3)

	path1, created, err := Put(g, sceneDir)
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if !created {
		t.Error("first Put did not create the file")
	}
	if filepath.Dir(path1) != filepath.Join(sceneDir, MapsDirName) {
		t.Errorf("map stored at %s, want under %s", path1, MapsDirName)
	}

	info1, err := os.Stat(path1)
	if err != nil {
		t.Fatalf("stat after first Put: %v", err)
	}

	// Second call with bit-identical content must hit the existing file.
	path2, created, err := Put(testGrid(5, 7, 3), sceneDir)
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if created {
		t.Error("second Put rewrote an existing map")
	}
	if path1 != path2 {
		t.Errorf("paths differ: %s vs %s", path1, path2)
	}

	info2, err := os.Stat(path2)
	if err != nil {
		t.Fatalf("stat after second Put: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) || info1.Size() != info2.Size() {
		t.Error("existing map file was modified on second Put")
	}
}

func TestPutDistinctMaps(t *testing.T) {
	sceneDir := t.TempDir()
	path1, _, err := Put(testGrid(5, 7, 3), sceneDir)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	path2, created, err := Put(testGrid(5, 7, 4), sceneDir)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !created {
		t.Error("distinct map not written")
	}
	if path1 == path2 {
		t.Error("distinct maps resolved to the same path")
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	sceneDir := t.TempDir()
	g := testGrid(5, 7, 3)

	path, _, err := Put(g, sceneDir)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(sceneDir, MapsDirName))
	if err != nil {
		t.Fatalf("reading maps dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("maps dir holds %d entries, want only the stored map", len(entries))
	}
	if got := filepath.Join(sceneDir, MapsDirName, entries[0].Name()); got != path {
		t.Errorf("maps dir holds %s, want %s", got, path)
	}

	// The renamed-into-place file must be complete and readable.
	got, err := Load(path, 5, 7)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.Equal(g) {
		t.Error("stored grid differs from input")
	}
}

func TestPutLoadRoundTrip(t *testing.T) {
	sceneDir := t.TempDir()
	g := testGrid(11, 5, 2) // 55 cells, not a multiple of 8

	path, _, err := Put(g, sceneDir)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := Load(path, 11, 5)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.Equal(g) {
		t.Error("loaded grid differs from stored grid")
	}
}
