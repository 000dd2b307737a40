package geo

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/sporewatch/sightingmap/pkg/core"
)

// DefaultCenter frames the very first render when there are no sightings yet
// (Melbourne, Australia).
var DefaultCenter = core.LatLng{Lat: -37.8136, Lng: 144.9631}

const (
	// tileSize is the pixel width of one web-mercator tile at zoom 0
	tileSize = 256
	// mercatorExtent is the full width of EPSG:3857 in metres
	mercatorExtent = 2 * 20037508.342789244
)

// CalculateCenter returns the unweighted mean of all latitudes and all
// longitudes. This is not a geodesic centre: it is fine at city or regional
// scale and drifts near the antimeridian.
func CalculateCenter(sightings []core.Sighting) core.LatLng {
	if len(sightings) == 0 {
		return DefaultCenter
	}

	var sumLat, sumLng float64
	for _, s := range sightings {
		sumLat += s.Lat
		sumLng += s.Lng
	}

	n := float64(len(sightings))
	return core.LatLng{Lat: sumLat / n, Lng: sumLng / n}
}

// BoundsOf returns the smallest box covering every sighting. Non-finite
// coordinates are left out.
func BoundsOf(sightings []core.Sighting) core.Bounds {
	var env geom.Envelope
	for _, s := range sightings {
		ext, err := env.ExtendToIncludeXY(geom.XY{X: s.Lng, Y: s.Lat})
		if err != nil {
			continue
		}
		env = ext
	}
	return boundsFromEnvelope(env)
}

func boundsFromEnvelope(env geom.Envelope) core.Bounds {
	lo, hi, ok := env.MinMaxXYs()
	if !ok {
		return core.Bounds{}
	}
	return core.Bounds{
		SouthWest: core.LatLng{Lat: lo.Y, Lng: lo.X},
		NorthEast: core.LatLng{Lat: hi.Y, Lng: hi.X},
		Valid:     true,
	}
}

// ToWebMercator projects a WGS84 coordinate (EPSG:4326) to EPSG:3857 metres.
func ToWebMercator(p core.LatLng) geom.XY {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(p.Lng, p.Lat, 0)
	return geom.XY{X: x, Y: y}
}

// FitZoom returns the largest integer zoom at which bounds fit inside a
// viewport of widthPx x heightPx, clamped to [0, maxZoom]. A degenerate box
// (one point) gets maxZoom.
func FitZoom(bounds core.Bounds, widthPx, heightPx, maxZoom int) int {
	if bounds.IsEmpty() || widthPx <= 0 || heightPx <= 0 {
		return 0
	}

	sw := ToWebMercator(bounds.SouthWest)
	ne := ToWebMercator(bounds.NorthEast)
	dx := math.Abs(ne.X - sw.X)
	dy := math.Abs(ne.Y - sw.Y)

	zoom := maxZoom
	if dx > 0 {
		zoom = min(zoom, zoomForSpan(dx, widthPx))
	}
	if dy > 0 {
		zoom = min(zoom, zoomForSpan(dy, heightPx))
	}
	return max(zoom, 0)
}

// zoomForSpan is the largest z with span/extent * tileSize * 2^z <= px.
func zoomForSpan(span float64, px int) int {
	z := math.Log2(float64(px) * mercatorExtent / (tileSize * span))
	return int(math.Floor(z))
}
