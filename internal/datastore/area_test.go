package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func squareRing(minLon, minLat, maxLon, maxLat float64) Ring {
	return Ring{
		{Lon: minLon, Lat: minLat},
		{Lon: maxLon, Lat: minLat},
		{Lon: maxLon, Lat: maxLat},
		{Lon: minLon, Lat: maxLat},
	}
}

func TestContainsPointSimplePolygon(t *testing.T) {
	area := Area{Polygon: MultiPolygon{{squareRing(4.0, 50.0, 5.0, 51.0)}}}

	assert.True(t, area.ContainsPoint(50.5, 4.5))
	assert.False(t, area.ContainsPoint(51.5, 4.5))
	assert.False(t, area.ContainsPoint(50.5, 5.5))
}

func TestContainsPointWithHole(t *testing.T) {
	area := Area{Polygon: MultiPolygon{{
		squareRing(0, 0, 10, 10),
		squareRing(4, 4, 6, 6),
	}}}

	assert.True(t, area.ContainsPoint(2, 2))
	// Inside the hole is outside the area.
	assert.False(t, area.ContainsPoint(5, 5))
}

func TestContainsPointMultiplePolygons(t *testing.T) {
	area := Area{Polygon: MultiPolygon{
		{squareRing(0, 0, 1, 1)},
		{squareRing(5, 5, 6, 6)},
	}}

	assert.True(t, area.ContainsPoint(0.5, 0.5))
	assert.True(t, area.ContainsPoint(5.5, 5.5))
	assert.False(t, area.ContainsPoint(3, 3))
}

func TestContainsPointClosedRing(t *testing.T) {
	ring := squareRing(0, 0, 1, 1)
	ring = append(ring, ring[0])
	area := Area{Polygon: MultiPolygon{{ring}}}

	assert.True(t, area.ContainsPoint(0.5, 0.5))
	assert.False(t, area.ContainsPoint(1.5, 0.5))
}

func TestContainsPointDegenerateRing(t *testing.T) {
	area := Area{Polygon: MultiPolygon{{Ring{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}}}}
	assert.False(t, area.ContainsPoint(0.5, 0.5))
}
