package convert

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"go.mongodb.org/mongo-driver/bson"
)

// geoJSON renders a geometry operand as its GeoJSON wire document.
func geoJSON(g geom.T) (bson.D, error) {
	switch t := g.(type) {
	case *geom.Point:
		return geoDoc("Point", coords(t.Coords())), nil
	case *geom.MultiPoint:
		return geoDoc("MultiPoint", coordSlice(t.Coords())), nil
	case *geom.LineString:
		return geoDoc("LineString", coordSlice(t.Coords())), nil
	case *geom.MultiLineString:
		return geoDoc("MultiLineString", coordGrid(t.Coords())), nil
	case *geom.Polygon:
		return geoDoc("Polygon", coordGrid(t.Coords())), nil
	case *geom.MultiPolygon:
		return geoDoc("MultiPolygon", coordCube(t.Coords())), nil
	}
	return nil, fmt.Errorf("unsupported geometry %T", g)
}

func geoDoc(typ string, coordinates bson.A) bson.D {
	return bson.D{{Key: "type", Value: typ}, {Key: "coordinates", Value: coordinates}}
}

func coords(c geom.Coord) bson.A {
	out := make(bson.A, len(c))
	for i, f := range c {
		out[i] = f
	}
	return out
}

func coordSlice(cs []geom.Coord) bson.A {
	out := make(bson.A, len(cs))
	for i, c := range cs {
		out[i] = coords(c)
	}
	return out
}

func coordGrid(css [][]geom.Coord) bson.A {
	out := make(bson.A, len(css))
	for i, cs := range css {
		out[i] = coordSlice(cs)
	}
	return out
}

func coordCube(csss [][][]geom.Coord) bson.A {
	out := make(bson.A, len(csss))
	for i, css := range csss {
		out[i] = coordGrid(css)
	}
	return out
}
