package episode

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// fakeEncoder stands in for the external video encoder; it writes the raw
// frame bytes so tests can assert a non-empty output file.
type fakeEncoder struct {
	calls int
	fail  error
}

func (e *fakeEncoder) Encode(_ context.Context, frames []Frame, outputPath string) error {
	e.calls++
	if e.fail != nil {
		return e.fail
	}
	var data []byte
	for _, f := range frames {
		data = append(data, f.Pix...)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func testFrame(seed uint8) Frame {
	pix := make([]uint8, 2*2*3)
	for i := range pix {
		pix[i] = seed + uint8(i)
	}
	return Frame{Width: 2, Height: 2, Pix: pix}
}

func fillBuffer(n int) *Buffer {
	b := NewBuffer()
	for i := 0; i < n; i++ {
		b.Append(testFrame(uint8(i)), Pose{float64(i), float64(i) * 2, 0.5}, PixelPose{i, i + 1})
	}
	return b
}

func TestAppendAndLen(t *testing.T) {
	b := fillBuffer(4)
	if b.Len() != 4 {
		t.Errorf("Len = %d, want 4", b.Len())
	}
}

func TestSetIdentityOnce(t *testing.T) {
	b := NewBuffer()
	if err := b.SetIdentity("7", "scene_a", "/maps/abc.npy"); err != nil {
		t.Fatalf("first SetIdentity failed: %v", err)
	}
	if err := b.SetIdentity("8", "scene_a", "/maps/def.npy"); !errors.Is(err, ErrIdentitySet) {
		t.Errorf("second SetIdentity = %v, want ErrIdentitySet", err)
	}
}

func TestFlushWritesRecordAndVideo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ep7")
	b := fillBuffer(3)
	if err := b.SetIdentity("7", "scene_a", "/maps/abc_5_7.npy"); err != nil {
		t.Fatal(err)
	}

	enc := &fakeEncoder{}
	if err := b.Flush(context.Background(), dir, enc); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if enc.calls != 1 {
		t.Errorf("encoder called %d times, want 1", enc.calls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "scene_a_7.json"))
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshaling record: %v", err)
	}
	if rec.EpID != "7" || rec.EpSceneID != "scene_a" {
		t.Errorf("record ids = %q/%q, want 7/scene_a", rec.EpID, rec.EpSceneID)
	}
	if rec.MapFilename != "/maps/abc_5_7.npy" {
		t.Errorf("map filename = %q", rec.MapFilename)
	}
	if len(rec.Trajectory) != 3 || len(rec.TrajectoryPixels) != 3 {
		t.Errorf("trajectory lengths = %d/%d, want 3/3", len(rec.Trajectory), len(rec.TrajectoryPixels))
	}

	info, err := os.Stat(filepath.Join(dir, VideoFileName))
	if err != nil {
		t.Fatalf("stat video: %v", err)
	}
	if info.Size() == 0 {
		t.Error("video file is empty")
	}
}

func TestFlushReleasesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ep1")
	b := fillBuffer(2)
	if err := b.SetIdentity("1", "s", "m.npy"); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(context.Background(), dir, &fakeEncoder{}); err != nil {
		t.Fatal(err)
	}
	if b.frames != nil {
		t.Error("frames retained after successful flush")
	}
}

func TestFlushContractViolations(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		b := fillBuffer(2)
		b.trajectory = b.trajectory[:1]
		if err := b.SetIdentity("1", "s", "m.npy"); err != nil {
			t.Fatal(err)
		}
		err := b.Flush(context.Background(), t.TempDir(), &fakeEncoder{})
		if !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("Flush = %v, want ErrLengthMismatch", err)
		}
	})

	t.Run("identity unset", func(t *testing.T) {
		b := fillBuffer(2)
		err := b.Flush(context.Background(), t.TempDir(), &fakeEncoder{})
		if !errors.Is(err, ErrIdentityUnset) {
			t.Errorf("Flush = %v, want ErrIdentityUnset", err)
		}
	})

	t.Run("empty identity field", func(t *testing.T) {
		b := fillBuffer(2)
		if err := b.SetIdentity("1", "", "m.npy"); err != nil {
			t.Fatal(err)
		}
		err := b.Flush(context.Background(), t.TempDir(), &fakeEncoder{})
		if !errors.Is(err, ErrIdentityUnset) {
			t.Errorf("Flush = %v, want ErrIdentityUnset", err)
		}
	})
}

func TestFlushPropagatesEncoderFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ep2")
	b := fillBuffer(2)
	if err := b.SetIdentity("2", "s", "m.npy"); err != nil {
		t.Fatal(err)
	}
	encErr := errors.New("encoder exploded")
	err := b.Flush(context.Background(), dir, &fakeEncoder{fail: encErr})
	if !errors.Is(err, encErr) {
		t.Errorf("Flush = %v, want wrapped encoder error", err)
	}
}

func TestPathLength(t *testing.T) {
	tests := []struct {
		name string
		traj []Pose
		want float64
	}{
		{"empty", nil, 0},
		{"single pose", []Pose{{0, 0}}, 0},
		{"straight line", []Pose{{0, 0, 0}, {3, 4, 1.5}}, 5},
		{"two segments", []Pose{{0, 0}, {1, 0}, {1, 2}}, 3},
		{"short poses skipped", []Pose{{0}, {0, 0}, {0, 3}}, 3},
		{"stationary agent", []Pose{{2, 2, 0}, {2, 2, 1}, {2, 2, 2}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathLength(tt.traj)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PathLength = %v, want %v", got, tt.want)
			}
		})
	}
}
