package datastore

// Geometry types for alert area filters. Coordinates are WGS84 lon/lat pairs.
// A polygon's first ring is the exterior boundary, any further rings are
// holes. The whole multipolygon is persisted as a JSON column.

// Coordinate is a single lon/lat pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ring is a closed sequence of coordinates. The closing duplicate vertex is
// optional, containment works either way.
type Ring []Coordinate

// Polygon is an exterior ring plus optional holes.
type Polygon []Ring

// MultiPolygon is a set of polygons.
type MultiPolygon []Polygon

// ContainsPoint reports whether the point lies inside the area.
func (a *Area) ContainsPoint(lat, lon float64) bool {
	for _, polygon := range a.Polygon {
		if polygonContains(polygon, lat, lon) {
			return true
		}
	}
	return false
}

func polygonContains(polygon Polygon, lat, lon float64) bool {
	if len(polygon) == 0 {
		return false
	}
	if !ringContains(polygon[0], lat, lon) {
		return false
	}
	// Inside the exterior ring: any hole containing the point excludes it.
	for _, hole := range polygon[1:] {
		if ringContains(hole, lat, lon) {
			return false
		}
	}
	return true
}

// ringContains is a standard ray casting point-in-polygon test.
func ringContains(ring Ring, lat, lon float64) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		yi, xi := ring[i].Lat, ring[i].Lon
		yj, xj := ring[j].Lat, ring[j].Lon
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
