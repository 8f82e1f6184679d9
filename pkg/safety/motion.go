package safety

import (
	"strings"

	"github.com/skygateai/skygate/pkg/domain"
)

// defaultTakeoffAltitude is assumed when a TAKEOFF step carries no altitude,
// matching the composer's fallback so prediction and execution agree.
const defaultTakeoffAltitude = 10

// Advance predicts the position a drone occupies after executing one step
// from pos. Only four actions move the vehicle in the local frame: TAKEOFF
// sets the height, GOTO overwrites whichever axes it names, MOVE translates
// along a compass or vertical direction, and LAND returns to the ground.
// Every other action holds position.
func Advance(pos domain.Position, step domain.Step) domain.Position {
	next := pos
	switch step.Action {
	case domain.ActionTakeoff:
		next.Z = step.Params.FloatOr(defaultTakeoffAltitude, "altitude", "alt")
	case domain.ActionGoto:
		if x, ok := step.Params.Float("x"); ok {
			next.X = x
		}
		if y, ok := step.Params.Float("y"); ok {
			next.Y = y
		}
		if z, ok := step.Params.Float("z"); ok {
			next.Z = z
		}
	case domain.ActionMove:
		distance := step.Params.FloatOr(0, "distance")
		direction, _ := step.Params.Text("direction")
		next = translate(next, strings.ToUpper(direction), distance)
	case domain.ActionLand:
		next.Z = 0
	}
	return next
}

// translate shifts pos by distance along the first direction keyword found.
// Matching is by substring, so "northwest" moves north: the axes are checked
// north, south, east, west, up, down and the first hit wins. An unrecognized
// direction leaves the position unchanged.
func translate(pos domain.Position, direction string, distance float64) domain.Position {
	switch {
	case strings.Contains(direction, "NORTH"):
		pos.Y += distance
	case strings.Contains(direction, "SOUTH"):
		pos.Y -= distance
	case strings.Contains(direction, "EAST"):
		pos.X += distance
	case strings.Contains(direction, "WEST"):
		pos.X -= distance
	case strings.Contains(direction, "UP"):
		pos.Z += distance
	case strings.Contains(direction, "DOWN"):
		pos.Z -= distance
	}
	return pos
}
