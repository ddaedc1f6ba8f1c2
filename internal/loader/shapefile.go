package loader

import (
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ReadShapefileCentroids reads a boundary shapefile and returns one
// centroid per region, keyed by the attribute named nameField. Geoportal
// boundary products carry the region label in a "name" style attribute.
//
// Polygon records get a proper area centroid; degenerate or non-polygon
// geometries fall back to the bounding-box midpoint.
func ReadShapefileCentroids(shpPath, nameField string) (map[string]geom.Coord, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	nameIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("loader: shapefile has no %q attribute", nameField)
	}

	centroids := make(map[string]geom.Coord)
	for reader.Next() {
		_, shape := reader.Shape()
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			continue
		}
		if _, dup := centroids[name]; dup {
			return nil, eris.Errorf("loader: duplicate region %q in shapefile", name)
		}
		c, err := shapeCentroid(shape)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: region %q", name)
		}
		centroids[name] = c
	}
	if len(centroids) == 0 {
		return nil, eris.New("loader: shapefile has no named records")
	}
	return centroids, nil
}

func shapeCentroid(shape shp.Shape) (geom.Coord, error) {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.Coord{s.X, s.Y}, nil
	case *shp.Polygon:
		c, err := xy.Centroid(polygonGeom((*shp.PolyLine)(s)))
		if err == nil && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
			return c, nil
		}
		return boxMidpoint(s.Box), nil
	case *shp.PolyLine:
		return boxMidpoint(s.Box), nil
	case nil:
		return nil, eris.New("loader: record has no geometry")
	default:
		return nil, eris.Errorf("loader: unsupported shape type %T", shape)
	}
}

func polygonGeom(p *shp.PolyLine) *geom.Polygon {
	flat := make([]float64, 0, 2*len(p.Points))
	for _, pt := range p.Points {
		flat = append(flat, pt.X, pt.Y)
	}
	ends := make([]int, 0, len(p.Parts))
	for i := range p.Parts {
		end := int(p.NumPoints)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		ends = append(ends, end*2)
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func boxMidpoint(b shp.Box) geom.Coord {
	return geom.Coord{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}
