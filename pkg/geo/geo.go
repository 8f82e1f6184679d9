// Package geo anchors local mission coordinates to the globe. Scripts use
// meters east/north of the launch point; MAVLink wants WGS84 degrees.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"

	"github.com/skygateai/skygate/pkg/domain"
)

// ErrInvalidOrigin is returned when an origin string cannot be parsed.
var ErrInvalidOrigin = errors.New("invalid origin coordinates")

// Origin is the launch point in WGS84 decimal degrees.
type Origin struct {
	Lon float64
	Lat float64
}

// ParseOrigin parses a "lon,lat" string into an Origin.
func ParseOrigin(coords string) (Origin, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return Origin{}, ErrInvalidOrigin
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Origin{}, ErrInvalidOrigin
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Origin{}, ErrInvalidOrigin
	}
	if math.Abs(lon) > 180 || math.Abs(lat) > 90 {
		return Origin{}, ErrInvalidOrigin
	}
	return Origin{Lon: lon, Lat: lat}, nil
}

// IsZero reports whether no origin was configured. The null island origin is
// indistinguishable from unset, which is acceptable for a launch point.
func (o Origin) IsZero() bool { return o.Lon == 0 && o.Lat == 0 }

// Offset converts a local east/north offset in meters to WGS84 degrees by
// going through Web Mercator. Mercator meters stretch by 1/cos(lat), so the
// offsets are scaled to keep a 100m leg 100m on the ground.
func (o Origin) Offset(x, y float64) (lon, lat float64) {
	epsg := wgs84.EPSG()
	toMercator := epsg.Transform(4326, 3857)
	toDegrees := epsg.Transform(3857, 4326)

	scale := 1 / math.Cos(o.Lat*math.Pi/180)
	mx, my, _ := toMercator(o.Lon, o.Lat, 0)
	lon, lat, _ = toDegrees(mx+x*scale, my+y*scale, 0)
	return lon, lat
}

// Localize returns a copy of the mission where GOTO steps carrying local x/y
// coordinates gain lat/lon parameters relative to the origin. Existing
// lat/lon values are authoritative and left alone, as are the x/y values the
// validator simulates with. The input mission is not modified.
func Localize(m domain.Mission, origin Origin) domain.Mission {
	localized := m
	localized.Steps = make([]domain.Step, len(m.Steps))
	copy(localized.Steps, m.Steps)

	for i, step := range localized.Steps {
		if step.Action != domain.ActionGoto {
			continue
		}
		if step.Params.Has("lat") || step.Params.Has("lon") {
			continue
		}
		if !step.Params.Has("x") && !step.Params.Has("y") {
			continue
		}

		x := step.Params.FloatOr(0, "x")
		y := step.Params.FloatOr(0, "y")
		lon, lat := origin.Offset(x, y)

		params := make(domain.Params, len(step.Params)+2)
		for k, v := range step.Params {
			params[k] = v
		}
		params["lat"] = lat
		params["lon"] = lon
		localized.Steps[i].Params = params
	}

	return localized
}
