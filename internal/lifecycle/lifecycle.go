// Package lifecycle orchestrates per-step recording and the end-of-episode
// transition from accumulating buffer to persisted episode.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stexplore/strec/internal/episode"
	"github.com/stexplore/strec/internal/grid"
	"github.com/stexplore/strec/internal/mapstore"
	"github.com/stexplore/strec/internal/persist"
)

// MinEpisodeSteps is the validity threshold: an episode is eligible for
// persistence only when strictly more steps than this were recorded.
const MinEpisodeSteps = 10

// Observation is what the exploration collaborator produces each step: the
// captured frame, the agent's world pose, its projection onto the active
// top-down map, the episode/scene identity, and whether this step ended
// the episode.
type Observation struct {
	Frame     episode.Frame
	Pose      episode.Pose
	PixelPose episode.PixelPose
	EpisodeID string
	SceneID   string
	Done      bool
}

// Explorer produces actions and observations for the simulated agent. The
// controller composes with this interface rather than inheriting from a
// policy: it forwards each observation into the active buffer and calls
// Reset after handling an episode boundary.
type Explorer interface {
	// Observe advances the exploration policy by one step and returns the
	// resulting observation.
	Observe(ctx context.Context) (Observation, error)

	// TopDownMap returns the occupancy map accumulated for the current
	// episode's scene.
	TopDownMap() *grid.Grid

	// Reset prepares the explorer for the next episode.
	Reset(ctx context.Context) error
}

// SavedEpisode describes a persisted episode for downstream reporters.
type SavedEpisode struct {
	EpisodeID  string
	SceneID    string
	Steps      int
	MapPath    string
	EpisodeDir string
	PathLength float64
	Trajectory []episode.Pose
}

// Reporter receives a notification after an episode has been durably
// persisted. Reporter failures are logged, never fatal: the on-disk
// dataset is already complete at that point.
type Reporter interface {
	EpisodeSaved(ctx context.Context, ep SavedEpisode) error
}

// Controller drives the record loop: one buffer per episode, evaluated and
// either persisted or discarded at each boundary.
type Controller struct {
	explorer  Explorer
	persister *persist.Persister
	reporters []Reporter
	logger    *slog.Logger

	buf *episode.Buffer

	steps     metric.Int64Counter
	saved     metric.Int64Counter
	discarded metric.Int64Counter
}

// NewController wires an explorer to a persister. Counters register on the
// global OTel meter (no-op unless a meter provider is configured).
func NewController(exp Explorer, p *persist.Persister, logger *slog.Logger, reporters ...Reporter) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		explorer:  exp,
		persister: p,
		reporters: reporters,
		logger:    logger,
		buf:       episode.NewBuffer(),
	}

	m := meter()
	var err error
	c.steps, err = m.Int64Counter(
		"recorder.steps.recorded",
		metric.WithDescription("Steps appended to episode buffers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}
	c.saved, err = m.Int64Counter(
		"recorder.episodes.saved",
		metric.WithDescription("Episodes persisted to disk"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating saved counter: %w", err)
	}
	c.discarded, err = m.Int64Counter(
		"recorder.episodes.discarded",
		metric.WithDescription("Episodes dropped for being too short"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}
	return c, nil
}

// BufferLen returns the current episode buffer length.
func (c *Controller) BufferLen() int {
	return c.buf.Len()
}

// Step advances the explorer once and records the observation. When the
// observation closes the episode, the boundary transition runs before the
// explorer's own reset. Returns persist.ErrDatasetComplete once the scene
// quota is met; contract and I/O failures propagate and are fatal for the
// run.
func (c *Controller) Step(ctx context.Context) error {
	obs, err := c.explorer.Observe(ctx)
	if err != nil {
		return fmt.Errorf("explorer step: %w", err)
	}

	c.buf.Append(obs.Frame, obs.Pose, obs.PixelPose)
	c.steps.Add(ctx, 1, metric.WithAttributes(attribute.String("scene", obs.SceneID)))

	if !obs.Done {
		return nil
	}

	if err := c.finishEpisode(ctx, obs); err != nil {
		return err
	}
	if err := c.explorer.Reset(ctx); err != nil {
		return fmt.Errorf("explorer reset: %w", err)
	}
	c.buf = episode.NewBuffer()
	return nil
}

// finishEpisode evaluates the closed episode and either persists or
// discards it.
func (c *Controller) finishEpisode(ctx context.Context, obs Observation) error {
	sceneAttr := metric.WithAttributes(attribute.String("scene", obs.SceneID))

	if c.buf.Len() <= MinEpisodeSteps {
		c.logger.Info("episode too short, not saving it",
			"scene", obs.SceneID, "episode", obs.EpisodeID,
			"steps", c.buf.Len(), "min", MinEpisodeSteps)
		c.discarded.Add(ctx, 1, sceneAttr)
		return nil
	}

	sceneDir := c.persister.SceneDir(obs.SceneID)
	mapPath, created, err := mapstore.Put(c.explorer.TopDownMap(), sceneDir)
	if err != nil {
		return fmt.Errorf("storing top-down map: %w", err)
	}
	if created {
		c.logger.Debug("stored new top-down map", "path", mapPath)
	}

	if err := c.buf.SetIdentity(obs.EpisodeID, obs.SceneID, mapPath); err != nil {
		return err
	}

	steps := c.buf.Len()
	length := episode.PathLength(c.buf.Trajectory())
	trajectory := c.buf.Trajectory()

	if err := c.persister.Persist(ctx, c.buf, obs.SceneID, obs.EpisodeID); err != nil {
		return err
	}
	c.saved.Add(ctx, 1, sceneAttr)

	saved := SavedEpisode{
		EpisodeID:  obs.EpisodeID,
		SceneID:    obs.SceneID,
		Steps:      steps,
		MapPath:    mapPath,
		EpisodeDir: filepath.Join(sceneDir, obs.EpisodeID),
		PathLength: length,
		Trajectory: trajectory,
	}
	for _, r := range c.reporters {
		if err := r.EpisodeSaved(ctx, saved); err != nil {
			c.logger.Warn("episode reporter failed",
				"scene", obs.SceneID, "episode", obs.EpisodeID, "error", err)
		}
	}
	return nil
}

// Run steps until the dataset is complete or an error occurs. A quota stop
// returns nil; everything else is returned to the caller.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Step(ctx); err != nil {
			if errors.Is(err, persist.ErrDatasetComplete) {
				c.logger.Info("dataset complete, stopping")
				return nil
			}
			return err
		}
	}
}
