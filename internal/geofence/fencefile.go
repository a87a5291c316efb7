package geofence

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	geo "github.com/kellydunn/golang-geo"
)

// LoadFenceFile parses a plain-text polygon fence file: one "lat lon" vertex
// per line, '#' starting a comment, blank lines ignored. A valid fence needs
// at least three vertices.
func LoadFenceFile(path string) (*Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fence file %s: %w", path, err)
	}

	var vertices []*geo.Point
	for i, line := range strings.Split(string(data), "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d of %s", ErrMalformedFenceVertex, i+1, path)
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d of %s: %v", ErrMalformedFenceVertex, i+1, path, err)
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d of %s: %v", ErrMalformedFenceVertex, i+1, path, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("%w: line %d of %s", ErrFenceVertexOutOfRange, i+1, path)
		}
		vertices = append(vertices, geo.NewPoint(lat, lon))
	}

	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: %s has %d", ErrFenceTooFewVertices, path, len(vertices))
	}
	return &Polygon{Vertices: vertices}, nil
}
