// Package episode accumulates one episode's worth of step data and writes
// the durable episode record at flush time.
package episode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// VideoFileName is the name of the encoded frame sequence inside an
// episode directory.
const VideoFileName = "video.mp4"

// Contract errors. These signal a logic defect in the lifecycle wiring and
// must be treated as fatal by callers, never retried.
var (
	ErrLengthMismatch = errors.New("episode: frame/trajectory/pixel sequence lengths differ")
	ErrIdentityUnset  = errors.New("episode: identity fields not set before flush")
	ErrIdentitySet    = errors.New("episode: identity fields already set")
)

// Frame is one RGB image captured at a simulation step, row-major RGB24.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// Pose is the agent's world-frame coordinates for one step.
type Pose []float64

// PixelPose is the agent's position on the top-down map for one step.
type PixelPose []int

// Encoder turns a frame sequence into a video file at outputPath. Encoding
// is blocking; failures are returned and propagate uncaught through flush.
type Encoder interface {
	Encode(ctx context.Context, frames []Frame, outputPath string) error
}

// Record is the JSON document persisted per episode.
type Record struct {
	EpID             string      `json:"ep_id"`
	EpSceneID        string      `json:"ep_scene_id"`
	Trajectory       []Pose      `json:"trajectory"`
	TrajectoryPixels []PixelPose `json:"trajectory_pixels"`
	MapFilename      string      `json:"map_filename"`
}

// Buffer holds the accumulating state for the current episode. It is
// created empty at episode start, appended to once per step, consumed
// exactly once at the episode boundary and then replaced by a fresh
// instance. Appends are O(1) and unvalidated; consistency is checked once
// at flush.
type Buffer struct {
	frames     []Frame
	trajectory []Pose
	pixels     []PixelPose

	epID    string
	sceneID string
	mapPath string
	idsSet  bool
}

// NewBuffer returns an empty buffer for the next episode.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append records one step. No per-call validation on the hot path.
func (b *Buffer) Append(frame Frame, pose Pose, pixel PixelPose) {
	b.frames = append(b.frames, frame)
	b.trajectory = append(b.trajectory, pose)
	b.pixels = append(b.pixels, pixel)
}

// Len returns the number of steps recorded so far.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// SetIdentity attaches the episode/scene identifiers and resolved map
// path. Must be called exactly once before Flush.
func (b *Buffer) SetIdentity(epID, sceneID, mapPath string) error {
	if b.idsSet {
		return ErrIdentitySet
	}
	b.epID = epID
	b.sceneID = sceneID
	b.mapPath = mapPath
	b.idsSet = true
	return nil
}

// Trajectory returns the world-frame poses recorded so far.
func (b *Buffer) Trajectory() []Pose {
	return b.trajectory
}

// Flush writes the episode record into episodeDir: the JSON trajectory
// document and the encoded video. The buffer does not retain frames after
// a successful flush. Contract violations (length mismatch, unset
// identity) and I/O or encoding failures are returned to the caller; none
// of them are recoverable here.
func (b *Buffer) Flush(ctx context.Context, episodeDir string, enc Encoder) error {
	if len(b.frames) != len(b.trajectory) || len(b.frames) != len(b.pixels) {
		return fmt.Errorf("%w: frames=%d trajectory=%d pixels=%d",
			ErrLengthMismatch, len(b.frames), len(b.trajectory), len(b.pixels))
	}
	if !b.idsSet || b.epID == "" || b.sceneID == "" || b.mapPath == "" {
		return ErrIdentityUnset
	}

	if err := os.MkdirAll(episodeDir, 0o755); err != nil {
		return fmt.Errorf("creating episode directory: %w", err)
	}

	rec := Record{
		EpID:             b.epID,
		EpSceneID:        b.sceneID,
		Trajectory:       b.trajectory,
		TrajectoryPixels: b.pixels,
		MapFilename:      b.mapPath,
	}
	jsonPath := filepath.Join(episodeDir, fmt.Sprintf("%s_%s.json", b.sceneID, b.epID))
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling episode record: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("writing episode record %s: %w", jsonPath, err)
	}

	videoPath := filepath.Join(episodeDir, VideoFileName)
	if err := enc.Encode(ctx, b.frames, videoPath); err != nil {
		return fmt.Errorf("encoding episode video: %w", err)
	}

	// Ownership of the frames has passed to the encoder.
	b.frames = nil
	return nil
}
