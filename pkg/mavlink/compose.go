package mavlink

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/domain"
)

// Composer maps mission steps onto protocol descriptors.
type Composer struct {
	logger zerolog.Logger
}

// NewComposer returns a composer logging to the supplied logger.
func NewComposer(logger zerolog.Logger) *Composer {
	return &Composer{logger: logger.With().Str("component", "mavlink").Logger()}
}

// Request carries one composition job.
type Request struct {
	Mission domain.Mission
	Routing Routing
	// Transports maps drone ids to their links. Only consulted when Send
	// is set; drones without a transport are composed but not dispatched.
	Transports map[string]Transport
	Send       bool
}

// Compose walks the mission steps in order and produces one descriptor per
// step. Sequence numbers count mission items per drone; a GOTO that cannot
// be expressed still consumes its number so uploaded plans stay aligned with
// the script.
//
// A drone missing from the routing table aborts composition with a
// RoutingError; descriptors produced before the offending step are returned
// alongside the error. When Send is set, each sendable descriptor is
// dispatched synchronously on the drone's transport as it is produced, and
// the first transport failure aborts the same way.
func (c *Composer) Compose(ctx context.Context, req Request) ([]Descriptor, error) {
	var generated []Descriptor
	seq := make(map[string]uint16, len(req.Mission.Drones))

	for _, step := range req.Mission.Steps {
		addr, ok := req.Routing[step.Drone]
		if !ok {
			return generated, &RoutingError{Drone: step.Drone, StateID: step.StateID}
		}

		d, dispatch := c.composeStep(step, seq)

		d.Drone = step.Drone
		d.StateID = step.StateID
		d.Action = step.Action
		d.SysID = addr.SystemID
		d.CompID = addr.ComponentID
		d.Control = step.Control
		if len(step.Params) > 0 {
			d.HumanParams = step.Params
		}
		generated = append(generated, d)

		if !req.Send || !dispatch {
			continue
		}
		transport, ok := req.Transports[step.Drone]
		if !ok || transport == nil {
			continue
		}
		if err := c.dispatch(ctx, transport, d); err != nil {
			return generated, fmt.Errorf("dispatch %s for drone %s: %w", step.Action, step.Drone, err)
		}
	}

	c.logger.Debug().
		Str("mission_id", req.Mission.MissionID).
		Int("descriptors", len(generated)).
		Bool("send", req.Send).
		Msg("mission composed")

	return generated, nil
}

// composeStep applies the action table to one step. The returned flag says
// whether the descriptor goes on the wire when dispatch is requested; WAIT,
// FOLLOW, and unsupported descriptors never do.
func (c *Composer) composeStep(step domain.Step, seq map[string]uint16) (Descriptor, bool) {
	params := step.Params

	switch step.Action {
	case domain.ActionArm:
		return newCommandLong(CmdComponentArmDisarm, 1), true

	case domain.ActionDisarm:
		return newCommandLong(CmdComponentArmDisarm, 0), true

	case domain.ActionTakeoff:
		altitude := params.FloatOr(10, "altitude", "alt", "z")
		d := newMissionItem(seq[step.Drone], CmdNavTakeoff, FrameGlobalRelativeAlt,
			[7]float64{0, 0, 0, 0, scaledCoordinate(params, "lat"), scaledCoordinate(params, "lon"), altitude})
		seq[step.Drone]++
		return d, true

	case domain.ActionLand:
		altitude := params.FloatOr(0, "altitude", "alt")
		d := newMissionItem(seq[step.Drone], CmdNavLand, FrameGlobalRelativeAlt,
			[7]float64{0, 0, 0, 0, scaledCoordinate(params, "lat"), scaledCoordinate(params, "lon"), altitude})
		seq[step.Drone]++
		return d, true

	case domain.ActionGoto:
		lat, okLat := params.Float("lat")
		lon, okLon := params.Float("lon")
		if !okLat || !okLon {
			// The number is consumed even though nothing is uploaded, so
			// the remaining items keep the positions the script gave them.
			seq[step.Drone]++
			return Descriptor{Kind: KindUnsupported, Reason: "missing lat/lon"}, false
		}
		altitude := params.FloatOr(0, "altitude", "alt", "z")
		d := newMissionItem(seq[step.Drone], CmdNavWaypoint, FrameGlobalRelativeAlt,
			[7]float64{0, 0, 0, 0, math.Trunc(lat * coordinateScale), math.Trunc(lon * coordinateScale), altitude})
		seq[step.Drone]++
		return d, true

	case domain.ActionSpeed:
		speedType := params.FloatOr(1, "type") // 0 airspeed, 1 ground speed
		speed := params.FloatOr(0, "speed", "v")
		throttle := params.FloatOr(0, "throttle")
		return newCommandLong(CmdDoChangeSpeed, speedType, speed, throttle), true

	case domain.ActionYaw:
		yaw := params.FloatOr(0, "yaw", "heading")
		speed := params.FloatOr(0, "speed")
		direction := params.FloatOr(0, "direction") // 1 clockwise, -1 counter-clockwise
		relative := 1.0
		if v, ok := params["relative"]; ok && !truthy(v) {
			relative = 0
		}
		return newCommandLong(CmdConditionYaw, yaw, speed, direction, relative), true

	case domain.ActionHold:
		timeout := params.FloatOr(0, "time")
		d := newMissionItem(seq[step.Drone], CmdNavLoiterTime, FrameGlobalRelativeAlt,
			[7]float64{timeout, 0, 0, 0, 0, 0, 0})
		seq[step.Drone]++
		return d, true

	case domain.ActionReturn:
		return newCommandLong(CmdNavReturnToLaunch), true

	case domain.ActionCircle:
		turns := params.FloatOr(1, "turns")
		d := newMissionItem(seq[step.Drone], CmdNavLoiterTurns, FrameGlobal,
			[7]float64{turns, 0, 0, 0, 0, 0, params.FloatOr(0, "alt")})
		seq[step.Drone]++
		return d, true

	case domain.ActionFollow:
		// DO_FOLLOW is not portable across autopilot stacks, so the
		// descriptor is composed for the plan but never dispatched here.
		if !params.Has("target") {
			return Descriptor{Kind: KindUnsupported, Reason: "no target provided"}, false
		}
		return newCommandLong(CmdDoFollow), false

	case domain.ActionWait:
		return Descriptor{Kind: KindWait, Seconds: params.FloatOr(1, "time", "t")}, false

	default:
		return Descriptor{Kind: KindUnsupported, Reason: fmt.Sprintf("action %s has no protocol mapping", step.Action)}, false
	}
}

func (c *Composer) dispatch(ctx context.Context, transport Transport, d Descriptor) error {
	switch d.Kind {
	case KindCommandLong:
		c.logger.Debug().
			Str("drone", d.Drone).
			Str("action", string(d.Action)).
			Uint8("sysid", d.SysID).
			Msg("sending command")
		return transport.SendCommandLong(ctx, d.SysID, d.CompID, d.Command, d.Confirmation, d.Params)
	case KindMissionItem:
		c.logger.Debug().
			Str("drone", d.Drone).
			Str("action", string(d.Action)).
			Uint16("seq", d.Seq).
			Msg("uploading mission item")
		return transport.SendMissionItem(ctx, d.SysID, d.CompID, d.Seq, d.Frame, d.Current, d.Autocontinue, d.Command, d.Params)
	}
	return nil
}

// scaledCoordinate reads a latitude or longitude parameter and converts it
// to fixed-point encoding. Absent or zero coordinates stay zero: the vehicle
// takes off or lands in place.
func scaledCoordinate(params domain.Params, key string) float64 {
	v, ok := params.Float(key)
	if !ok || v == 0 {
		return 0
	}
	return math.Trunc(v * coordinateScale)
}

// truthy mirrors script-level truthiness for flag-like parameters: zero
// numbers and empty strings are false, everything else true.
func truthy(v any) bool {
	switch n := v.(type) {
	case int64:
		return n != 0
	case float64:
		return n != 0
	case string:
		return n != ""
	}
	return v != nil
}
