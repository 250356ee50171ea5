// Package sim provides a self-contained grid-world exploration
// environment so episode generation can run without an external
// simulator. The world is a walled occupancy grid; the agent performs a
// frontier-biased random walk and yields an RGB rendering of its
// surroundings each step.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/spf13/cast"

	"github.com/stexplore/strec/internal/episode"
	"github.com/stexplore/strec/internal/grid"
	"github.com/stexplore/strec/internal/lifecycle"
)

func init() {
	lifecycle.Register("gridworld", NewFromSettings)
}

// Defaults for the grid-world when the config omits them.
const (
	defaultRows     = 48
	defaultCols     = 64
	defaultMaxSteps = 120
	defaultCellSize = 0.25 // meters per cell
	frameSize       = 64   // rendered frame is frameSize x frameSize
)

// GridWorld is a deterministic exploration environment over a binary
// occupancy map. One GridWorld instance is one scene.
type GridWorld struct {
	sceneID  string
	world    *grid.Grid
	cellSize float64
	maxSteps int

	x, y    float64
	heading float64
	rng     *rand.Rand

	step       int
	episodeNum int
}

// Config holds grid-world construction parameters.
type Config struct {
	SceneID  string
	Rows     int
	Cols     int
	MaxSteps int
	Seed     int64
	CellSize float64
}

// New creates a grid-world scene from the config. The occupancy map is
// generated deterministically from the seed.
func New(cfg Config) (*GridWorld, error) {
	if cfg.SceneID == "" {
		return nil, fmt.Errorf("sim: scene id is required")
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}
	if cfg.Cols <= 0 {
		cfg.Cols = defaultCols
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = defaultCellSize
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	g := &GridWorld{
		sceneID:  cfg.SceneID,
		world:    generateWorld(cfg.Rows, cfg.Cols, rng),
		cellSize: cfg.CellSize,
		maxSteps: cfg.MaxSteps,
		rng:      rng,
	}
	g.placeAgent()
	return g, nil
}

// NewFromSettings builds a grid-world from a configuration subtree; this
// is the factory registered under the "gridworld" name.
func NewFromSettings(opts map[string]any) (lifecycle.Explorer, error) {
	cfg := Config{
		SceneID:  cast.ToString(opts["sceneid"]),
		Rows:     cast.ToInt(opts["rows"]),
		Cols:     cast.ToInt(opts["cols"]),
		MaxSteps: cast.ToInt(opts["maxsteps"]),
		Seed:     cast.ToInt64(opts["seed"]),
		CellSize: cast.ToFloat64(opts["cellsize"]),
	}
	return New(cfg)
}

// generateWorld builds a walled map with scattered rectangular obstacles.
func generateWorld(rows, cols int, rng *rand.Rand) *grid.Grid {
	g := grid.New(rows, cols)
	for r := 0; r < rows; r++ {
		g.Set(r, 0, true)
		g.Set(r, cols-1, true)
	}
	for c := 0; c < cols; c++ {
		g.Set(0, c, true)
		g.Set(rows-1, c, true)
	}

	blocks := (rows * cols) / 200
	for i := 0; i < blocks; i++ {
		br := 1 + rng.Intn(rows-4)
		bc := 1 + rng.Intn(cols-4)
		h := 1 + rng.Intn(3)
		w := 1 + rng.Intn(3)
		for r := br; r < br+h && r < rows-1; r++ {
			for c := bc; c < bc+w && c < cols-1; c++ {
				g.Set(r, c, true)
			}
		}
	}
	return g
}

// placeAgent drops the agent on a random free cell facing a random
// heading.
func (g *GridWorld) placeAgent() {
	for {
		r := g.rng.Intn(g.world.Rows)
		c := g.rng.Intn(g.world.Cols)
		if !g.world.At(r, c) {
			g.x = (float64(c) + 0.5) * g.cellSize
			g.y = (float64(r) + 0.5) * g.cellSize
			g.heading = float64(g.rng.Intn(4)) * (math.Pi / 2)
			return
		}
	}
}

// Observe advances the walk one step and returns the observation for it.
func (g *GridWorld) Observe(_ context.Context) (lifecycle.Observation, error) {
	g.advance()
	g.step++

	obs := lifecycle.Observation{
		Frame:     g.render(),
		Pose:      episode.Pose{g.x, g.y, g.heading},
		PixelPose: g.pixelCoords(),
		EpisodeID: fmt.Sprintf("%d", g.episodeNum),
		SceneID:   g.sceneID,
		Done:      g.step >= g.maxSteps,
	}
	return obs, nil
}

// TopDownMap returns the scene occupancy grid.
func (g *GridWorld) TopDownMap() *grid.Grid {
	return g.world
}

// Reset starts the next episode from a fresh agent placement.
func (g *GridWorld) Reset(_ context.Context) error {
	g.step = 0
	g.episodeNum++
	g.placeAgent()
	return nil
}

// advance tries a forward move along the current heading, turning toward
// a random side when the target cell is blocked.
func (g *GridWorld) advance() {
	for attempt := 0; attempt < 4; attempt++ {
		nx := g.x + math.Cos(g.heading)*g.cellSize
		ny := g.y + math.Sin(g.heading)*g.cellSize
		r, c := g.cellAt(nx, ny)
		if !g.world.At(r, c) {
			g.x, g.y = nx, ny
			// Occasional random turn keeps the walk exploring.
			if g.rng.Float64() < 0.2 {
				g.turn()
			}
			return
		}
		g.turn()
	}
}

func (g *GridWorld) turn() {
	if g.rng.Intn(2) == 0 {
		g.heading += math.Pi / 2
	} else {
		g.heading -= math.Pi / 2
	}
	if g.heading < 0 {
		g.heading += 2 * math.Pi
	}
	if g.heading >= 2*math.Pi {
		g.heading -= 2 * math.Pi
	}
}

// cellAt maps world coordinates onto the occupancy grid, clamped to the
// map bounds.
func (g *GridWorld) cellAt(x, y float64) (row, col int) {
	col = int(x / g.cellSize)
	row = int(y / g.cellSize)
	if col < 0 {
		col = 0
	}
	if col >= g.world.Cols {
		col = g.world.Cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.world.Rows {
		row = g.world.Rows - 1
	}
	return row, col
}

// pixelCoords projects the agent pose onto the top-down map.
func (g *GridWorld) pixelCoords() episode.PixelPose {
	r, c := g.cellAt(g.x, g.y)
	return episode.PixelPose{r, c}
}

// render draws an agent-centered view of the map: occupied cells dark,
// free cells light, the agent cell red.
func (g *GridWorld) render() episode.Frame {
	pix := make([]uint8, frameSize*frameSize*3)
	ar, ac := g.cellAt(g.x, g.y)
	half := frameSize / 2

	for py := 0; py < frameSize; py++ {
		for px := 0; px < frameSize; px++ {
			r := ar + py - half
			c := ac + px - half

			var red, green, blue uint8
			switch {
			case py == half && px == half:
				red, green, blue = 220, 40, 40
			case r < 0 || r >= g.world.Rows || c < 0 || c >= g.world.Cols:
				red, green, blue = 16, 16, 16
			case g.world.At(r, c):
				red, green, blue = 64, 64, 64
			default:
				red, green, blue = 236, 236, 228
			}

			i := (py*frameSize + px) * 3
			pix[i] = red
			pix[i+1] = green
			pix[i+2] = blue
		}
	}
	return episode.Frame{Width: frameSize, Height: frameSize, Pix: pix}
}
