package featureql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hugr-lab/featureql/catalog"
)

// ResolveBBox parses a bbox parameter: 4 or 6 comma-separated numbers
// (minX,minY[,minZ],maxX,maxY[,maxZ]) with an optional trailing CRS
// identifier. Resolution is pure: the same input always yields the same
// box or the same error.
//
// Axis violations name the axis ("bbox.x", "bbox.y", "bbox.z"); the CRS
// suffix must be in the registry's supported list.
func ResolveBBox(raw string, reg *catalog.CRSRegistry) (*BoundingBox, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	tokens := strings.Split(raw, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	// A non-numeric trailing token is the source CRS.
	crs := catalog.CRS{}
	if n := len(tokens); n == 5 || n == 7 {
		parsed, err := catalog.ParseCRS(tokens[n-1])
		if err != nil {
			return nil, &ParseError{Parameter: "bbox", Detail: fmt.Sprintf("trailing CRS %q: %v", tokens[n-1], err)}
		}
		if !reg.Contains(parsed) {
			return nil, &ValidationError{
				Field:  "bbox",
				Detail: fmt.Sprintf("unsupported CRS %s; supported: %s", parsed, strings.Join(reg.Supported(), ", ")),
			}
		}
		crs = parsed
		tokens = tokens[:n-1]
	}

	if len(tokens) != 4 && len(tokens) != 6 {
		return nil, &ParseError{Parameter: "bbox", Detail: fmt.Sprintf("expected 4 or 6 coordinates, got %d", len(tokens))}
	}

	coords := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &ParseError{Parameter: "bbox", Detail: fmt.Sprintf("non-numeric coordinate %q", tok)}
		}
		coords[i] = v
	}

	box := &BoundingBox{CRS: crs}
	if len(coords) == 4 {
		box.MinX, box.MinY, box.MaxX, box.MaxY = coords[0], coords[1], coords[2], coords[3]
	} else {
		box.Has3D = true
		box.MinX, box.MinY, box.MinZ = coords[0], coords[1], coords[2]
		box.MaxX, box.MaxY, box.MaxZ = coords[3], coords[4], coords[5]
	}

	if box.MinX > box.MaxX {
		return nil, &ValidationError{Field: "bbox.x", Detail: fmt.Sprintf("min %v exceeds max %v", box.MinX, box.MaxX)}
	}
	if box.MinY > box.MaxY {
		return nil, &ValidationError{Field: "bbox.y", Detail: fmt.Sprintf("min %v exceeds max %v", box.MinY, box.MaxY)}
	}
	if box.Has3D && box.MinZ > box.MaxZ {
		return nil, &ValidationError{Field: "bbox.z", Detail: fmt.Sprintf("min %v exceeds max %v", box.MinZ, box.MaxZ)}
	}

	return box, nil
}
