package episode

import (
	geom "github.com/peterstace/simplefeatures/geom"
)

// PathLength returns the world-frame length of the trajectory, using the
// first two coordinates of each pose as XY. Trajectories with fewer than
// two usable poses have zero length.
func PathLength(trajectory []Pose) float64 {
	coords := make([]float64, 0, 2*len(trajectory))
	for _, p := range trajectory {
		if len(p) < 2 {
			continue
		}
		coords = append(coords, p[0], p[1])
	}
	if len(coords) < 4 {
		return 0
	}
	seq := geom.NewSequence(coords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return 0
	}
	return ls.Length()
}
