// Package trajectory expands missions into sampled flight paths for preview
// and plotting. It shares the validator's motion model, so a path that stays
// inside limits here stays inside limits there.
package trajectory

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/safety"
)

// Frames per segment kind. Tuned for a 30ms animation interval; a GOTO leg
// reads as a longer glide than a takeoff climb.
const (
	takeoffFrames = 30
	landFrames    = 30
	gotoFrames    = 40
	moveFrames    = 30
	returnFrames  = 50
	yawFrames     = 15
	roiFrames     = 20
	roiClearHold  = 5
	payloadFrames = 10
	waitFrames    = 20
	circleFrames  = 60
	approachSteps = 10
)

// Sample is one frame of a drone's predicted flight.
type Sample struct {
	Position domain.Position `json:"position"`
	Status   string          `json:"status"`
}

// Event marks a payload action at a fixed position.
type Event struct {
	Position domain.Position `json:"position"`
	Kind     string          `json:"kind"`
}

// Event kinds.
const (
	EventPhoto = "PHOTO"
	EventDrop  = "DROP"
	EventLook  = "LOOK"
)

// Path is the expanded flight of a single drone.
type Path struct {
	Drone   string   `json:"drone"`
	Samples []Sample `json:"samples"`
	Events  []Event  `json:"events,omitempty"`
}

// Final returns the last sampled position.
func (p Path) Final() domain.Position {
	if len(p.Samples) == 0 {
		return domain.Position{}
	}
	return p.Samples[len(p.Samples)-1].Position
}

// Interpolate returns steps points along the straight line from start to end.
// The start point is excluded and the end point included, so consecutive
// segments chain without duplicate frames.
func Interpolate(start, end domain.Position, steps int) []domain.Position {
	if steps <= 0 {
		return nil
	}
	points := make([]domain.Position, 0, steps)
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		points = append(points, domain.Position{
			X: start.X + (end.X-start.X)*f,
			Y: start.Y + (end.Y-start.Y)*f,
			Z: start.Z + (end.Z-start.Z)*f,
		})
	}
	return points
}

// CirclePath flies from the center to the eastern edge, once around, and
// back to the center, all at the center's altitude.
func CirclePath(center domain.Position, radius float64, steps int) []domain.Position {
	if steps <= 0 {
		steps = circleFrames
	}
	edge := domain.Position{X: center.X + radius, Y: center.Y, Z: center.Z}

	points := Interpolate(center, edge, approachSteps)
	for i := 0; i <= steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		points = append(points, domain.Position{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
			Z: center.Z,
		})
	}
	return append(points, Interpolate(edge, center, approachSteps)...)
}

// Expand samples one drone's steps from the origin. Steps that produce no
// motion or hold (ARM, SPEED, HOLD and friends) contribute no frames, same
// as the validator treats them as position-neutral.
func Expand(drone string, steps []domain.Step) Path {
	pos := domain.Position{}
	path := Path{
		Drone:   drone,
		Samples: []Sample{{Position: pos, Status: "IDLE"}},
	}

	appendSegment := func(points []domain.Position, status string) {
		for _, point := range points {
			path.Samples = append(path.Samples, Sample{Position: point, Status: status})
		}
	}
	hold := func(frames int, status string) {
		for i := 0; i < frames; i++ {
			path.Samples = append(path.Samples, Sample{Position: pos, Status: status})
		}
	}

	for _, step := range steps {
		switch step.Action {
		case domain.ActionTakeoff:
			end := safety.Advance(pos, step)
			appendSegment(Interpolate(pos, end, takeoffFrames), fmt.Sprintf("TAKEOFF %.1fm", end.Z))
			pos = end

		case domain.ActionLand:
			end := safety.Advance(pos, step)
			appendSegment(Interpolate(pos, end, landFrames), "LANDING")
			pos = end

		case domain.ActionGoto:
			end := safety.Advance(pos, step)
			appendSegment(Interpolate(pos, end, gotoFrames), "NAVIGATING")
			pos = end

		case domain.ActionMove:
			end := safety.Advance(pos, step)
			direction, _ := step.Params.Text("direction")
			appendSegment(Interpolate(pos, end, moveFrames), "MOVING "+strings.ToUpper(direction))
			pos = end

		case domain.ActionReturn:
			end := domain.Position{Z: pos.Z}
			appendSegment(Interpolate(pos, end, returnFrames), "RTL")
			pos = end

		case domain.ActionCircle:
			radius := step.Params.FloatOr(5, "radius")
			appendSegment(CirclePath(pos, radius, circleFrames), fmt.Sprintf("CIRCLING r=%.1fm", radius))
			// The circle ends where it started.

		case domain.ActionYaw:
			angle := step.Params.FloatOr(0, "angle")
			hold(yawFrames, fmt.Sprintf("YAW %.0f", angle))

		case domain.ActionROI:
			x, okX := step.Params.Float("x")
			y, okY := step.Params.Float("y")
			if okX && okY {
				hold(roiFrames, fmt.Sprintf("TRACKING %.0f,%.0f", x, y))
				path.Events = append(path.Events, Event{
					Position: domain.Position{X: x, Y: y},
					Kind:     EventLook,
				})
			} else {
				hold(roiClearHold, "ROI CLEAR")
			}

		case domain.ActionTrigger:
			path.Events = append(path.Events, Event{Position: pos, Kind: EventPhoto})
			hold(payloadFrames, "CAPTURING IMG")

		case domain.ActionServo:
			path.Events = append(path.Events, Event{Position: pos, Kind: EventDrop})
			hold(payloadFrames, "PAYLOAD RELEASE")

		case domain.ActionWait:
			hold(waitFrames, "WAITING...")
		}
	}

	return path
}

// ExpandMission expands every drone in the mission, ordered by drone id.
func ExpandMission(m domain.Mission) []Path {
	drones := make([]string, len(m.Drones))
	copy(drones, m.Drones)
	sort.Strings(drones)

	paths := make([]Path, 0, len(drones))
	for _, drone := range drones {
		paths = append(paths, Expand(drone, m.StepsFor(drone)))
	}
	return paths
}
