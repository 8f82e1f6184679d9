package mavlink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/skygateai/skygate/pkg/domain"
)

type sentFrame struct {
	kind    Kind
	sysID   uint8
	compID  uint8
	seq     uint16
	command uint16
	params  [7]float64
	frame   uint8
}

// fakeTransport records frames in dispatch order and can fail on demand.
type fakeTransport struct {
	frames  []sentFrame
	failOn  int // 1-based call number that errors, 0 disables
	calls   int
	lastCtx context.Context
}

func (f *fakeTransport) SendCommandLong(ctx context.Context, sysID, compID uint8, command uint16, confirmation uint8, params [7]float64) error {
	f.calls++
	f.lastCtx = ctx
	if f.failOn > 0 && f.calls == f.failOn {
		return errors.New("link down")
	}
	f.frames = append(f.frames, sentFrame{kind: KindCommandLong, sysID: sysID, compID: compID, command: command, params: params})
	return nil
}

func (f *fakeTransport) SendMissionItem(ctx context.Context, sysID, compID uint8, seq uint16, frame, current, autocontinue uint8, command uint16, params [7]float64) error {
	f.calls++
	f.lastCtx = ctx
	if f.failOn > 0 && f.calls == f.failOn {
		return errors.New("link down")
	}
	f.frames = append(f.frames, sentFrame{kind: KindMissionItem, sysID: sysID, compID: compID, seq: seq, command: command, params: params, frame: frame})
	return nil
}

var testRouting = Routing{
	"d1": {SystemID: 1, ComponentID: 1},
	"d2": {SystemID: 2, ComponentID: 1},
}

func mission(steps ...domain.Step) domain.Mission {
	drones := map[string]struct{}{}
	for i := range steps {
		steps[i].StateID = fmt.Sprintf("s%d", i+1)
		drones[steps[i].Drone] = struct{}{}
	}
	ids := make([]string, 0, len(drones))
	for id := range drones {
		ids = append(ids, id)
	}
	return domain.Mission{MissionID: "mission_auto", Steps: steps, Drones: ids}
}

func compose(t *testing.T, m domain.Mission) []Descriptor {
	t.Helper()
	out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{Mission: m, Routing: testRouting})
	require.NoError(t, err)
	return out
}

func TestComposeArmDisarm(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "d1", Action: domain.ActionDisarm},
	))
	require.Len(t, out, 2)

	arm := out[0]
	assert.Equal(t, KindCommandLong, arm.Kind)
	assert.Equal(t, CmdComponentArmDisarm, arm.Command)
	assert.Equal(t, 1.0, arm.Params[0])
	assert.Equal(t, uint8(1), arm.SysID)
	assert.Equal(t, uint8(1), arm.CompID)
	assert.Equal(t, "s1", arm.StateID)
	assert.Zero(t, arm.Seq, "immediate commands do not consume sequence numbers")

	disarm := out[1]
	assert.Equal(t, CmdComponentArmDisarm, disarm.Command)
	assert.Equal(t, 0.0, disarm.Params[0])
}

func TestComposeTakeoff(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(15), "lat": 28.6139, "lon": 77.2090}},
	))
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, KindMissionItem, d.Kind)
	assert.Equal(t, CmdNavTakeoff, d.Command)
	assert.Equal(t, uint16(0), d.Seq)
	assert.Equal(t, FrameGlobalRelativeAlt, d.Frame)
	assert.Equal(t, uint8(1), d.Autocontinue)
	assert.Equal(t, uint8(0), d.Current)
	assert.Equal(t, float64(286139000), d.Params[4], "latitude in 1e7 fixed point")
	assert.Equal(t, float64(772090000), d.Params[5], "longitude in 1e7 fixed point")
	assert.Equal(t, 15.0, d.Params[6])
	assert.Equal(t, domain.Params{"alt": int64(15), "lat": 28.6139, "lon": 77.2090}, d.HumanParams)
}

func TestComposeTakeoffAltitudeFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		params domain.Params
		want   float64
	}{
		{"altitude", domain.Params{"altitude": int64(30)}, 30},
		{"alt", domain.Params{"alt": int64(20)}, 20},
		{"z", domain.Params{"z": 12.5}, 12.5},
		{"default", domain.Params{}, 10},
		{"altitude wins", domain.Params{"altitude": int64(30), "z": int64(5)}, 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: tc.params}))
			require.Len(t, out, 1)
			assert.Equal(t, tc.want, out[0].Params[6])
			assert.Zero(t, out[0].Params[4], "no latitude given, vehicle climbs in place")
			assert.Zero(t, out[0].Params[5])
		})
	}
}

func TestComposeLandDefaultsToGround(t *testing.T) {
	out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionLand}))
	require.Len(t, out, 1)
	assert.Equal(t, CmdNavLand, out[0].Command)
	assert.Equal(t, 0.0, out[0].Params[6])
	assert.Equal(t, FrameGlobalRelativeAlt, out[0].Frame)
}

func TestComposeGotoWithCoordinates(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionGoto, Params: domain.Params{"lat": 28.6139, "lon": 77.2090, "alt": int64(25)}},
	))
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, KindMissionItem, d.Kind)
	assert.Equal(t, CmdNavWaypoint, d.Command)
	assert.Equal(t, float64(286139000), d.Params[4])
	assert.Equal(t, float64(772090000), d.Params[5])
	assert.Equal(t, 25.0, d.Params[6])
}

func TestComposeGotoWithoutCoordinatesIsUnsupported(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionGoto, Params: domain.Params{"x": int64(100), "y": int64(50)}},
		domain.Step{Drone: "d1", Action: domain.ActionGoto, Params: domain.Params{"lat": 28.0, "lon": 77.0}},
	))
	require.Len(t, out, 2)

	assert.Equal(t, KindUnsupported, out[0].Kind)
	assert.Equal(t, "missing lat/lon", out[0].Reason)
	assert.Equal(t, domain.ActionGoto, out[0].Action)

	// The failed waypoint still consumed sequence number zero.
	assert.Equal(t, KindMissionItem, out[1].Kind)
	assert.Equal(t, uint16(1), out[1].Seq)
}

func TestComposeGotoLatWithoutLonIsUnsupported(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionGoto, Params: domain.Params{"lat": 28.0}},
	))
	require.Len(t, out, 1)
	assert.Equal(t, KindUnsupported, out[0].Kind)
}

func TestComposeSpeed(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionSpeed, Params: domain.Params{"speed": int64(12), "throttle": int64(80)}},
	))
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, KindCommandLong, d.Kind)
	assert.Equal(t, CmdDoChangeSpeed, d.Command)
	assert.Equal(t, [7]float64{1, 12, 80, 0, 0, 0, 0}, d.Params, "speed type defaults to ground speed")
}

func TestComposeSpeedVelocityAlias(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionSpeed, Params: domain.Params{"type": int64(0), "v": 7.5}},
	))
	require.Len(t, out, 1)
	assert.Equal(t, [7]float64{0, 7.5, 0, 0, 0, 0, 0}, out[0].Params)
}

func TestComposeYaw(t *testing.T) {
	tests := []struct {
		name   string
		params domain.Params
		want   [7]float64
	}{
		{"defaults to relative", domain.Params{"yaw": int64(90)}, [7]float64{90, 0, 0, 1, 0, 0, 0}},
		{"heading alias", domain.Params{"heading": int64(180), "speed": int64(10)}, [7]float64{180, 10, 0, 1, 0, 0, 0}},
		{"relative zero disables", domain.Params{"yaw": int64(45), "relative": int64(0)}, [7]float64{45, 0, 0, 0, 0, 0, 0}},
		{"relative one keeps", domain.Params{"yaw": int64(45), "relative": int64(1)}, [7]float64{45, 0, 0, 1, 0, 0, 0}},
		{"direction passthrough", domain.Params{"yaw": int64(45), "direction": int64(-1)}, [7]float64{45, 0, -1, 1, 0, 0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionYaw, Params: tc.params}))
			require.Len(t, out, 1)
			assert.Equal(t, CmdConditionYaw, out[0].Command)
			assert.Equal(t, tc.want, out[0].Params)
		})
	}
}

func TestComposeHold(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionHold, Params: domain.Params{"time": int64(30)}},
	))
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, KindMissionItem, d.Kind)
	assert.Equal(t, CmdNavLoiterTime, d.Command)
	assert.Equal(t, 30.0, d.Params[0])
	assert.Equal(t, uint16(0), d.Seq)
}

func TestComposeReturn(t *testing.T) {
	out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionReturn}))
	require.Len(t, out, 1)
	assert.Equal(t, KindCommandLong, out[0].Kind)
	assert.Equal(t, CmdNavReturnToLaunch, out[0].Command)
	assert.Equal(t, [7]float64{}, out[0].Params)
}

func TestComposeCircle(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionCircle, Params: domain.Params{"turns": int64(3), "alt": int64(40)}},
	))
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, CmdNavLoiterTurns, d.Command)
	assert.Equal(t, 3.0, d.Params[0])
	assert.Equal(t, 40.0, d.Params[6])
	assert.Equal(t, FrameGlobal, d.Frame)
}

func TestComposeCircleDefaultsToOneTurn(t *testing.T) {
	out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionCircle}))
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].Params[0])
}

func TestComposeFollow(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionFollow, Params: domain.Params{"target": "d2"}},
		domain.Step{Drone: "d1", Action: domain.ActionFollow},
	))
	require.Len(t, out, 2)

	assert.Equal(t, KindCommandLong, out[0].Kind)
	assert.Equal(t, CmdDoFollow, out[0].Command)
	assert.Equal(t, domain.Params{"target": "d2"}, out[0].HumanParams)

	assert.Equal(t, KindUnsupported, out[1].Kind)
	assert.Equal(t, "no target provided", out[1].Reason)
}

func TestComposeWait(t *testing.T) {
	tests := []struct {
		name   string
		params domain.Params
		want   float64
	}{
		{"time key", domain.Params{"time": int64(5)}, 5},
		{"t alias", domain.Params{"t": 2.5}, 2.5},
		{"default one second", domain.Params{}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := compose(t, mission(domain.Step{Drone: "d1", Action: domain.ActionWait, Params: tc.params}))
			require.Len(t, out, 1)
			assert.Equal(t, KindWait, out[0].Kind)
			assert.Equal(t, tc.want, out[0].Seconds)
			assert.Zero(t, out[0].Command, "waits carry no protocol command")
		})
	}
}

func TestComposeUnmappedActionsAreUnsupported(t *testing.T) {
	for _, action := range []domain.Action{domain.ActionRotate, domain.ActionROI, domain.ActionTrigger, domain.ActionGimbal, domain.ActionServo} {
		t.Run(string(action), func(t *testing.T) {
			out := compose(t, mission(domain.Step{Drone: "d1", Action: action}))
			require.Len(t, out, 1)
			assert.Equal(t, KindUnsupported, out[0].Kind)
			assert.Equal(t, fmt.Sprintf("action %s has no protocol mapping", action), out[0].Reason)
		})
	}
}

func TestComposePerDroneSequenceCounters(t *testing.T) {
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(10)}},
		domain.Step{Drone: "d2", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(10)}},
		domain.Step{Drone: "d1", Action: domain.ActionYaw, Params: domain.Params{"yaw": int64(90)}}, // immediate, no seq
		domain.Step{Drone: "d1", Action: domain.ActionLand},
		domain.Step{Drone: "d2", Action: domain.ActionLand},
	))
	require.Len(t, out, 5)

	assert.Equal(t, uint16(0), out[0].Seq) // d1 takeoff
	assert.Equal(t, uint16(0), out[1].Seq) // d2 takeoff
	assert.Equal(t, uint16(1), out[3].Seq) // d1 land, yaw consumed nothing
	assert.Equal(t, uint16(1), out[4].Seq) // d2 land
}

func TestComposeRoutingErrorReturnsPartialResult(t *testing.T) {
	routed := &fakeTransport{}
	ghost := &fakeTransport{}
	m := mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "ghost", Action: domain.ActionArm},
		domain.Step{Drone: "d1", Action: domain.ActionLand},
	)
	out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{
		Mission:    m,
		Routing:    testRouting,
		Transports: map[string]Transport{"d1": routed, "ghost": ghost},
		Send:       true,
	})

	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrDroneNotRouted)

	var routingErr *RoutingError
	require.ErrorAs(t, err, &routingErr)
	assert.Equal(t, "ghost", routingErr.Drone)
	assert.Equal(t, "s2", routingErr.StateID)

	// Steps before the unroutable drone survive; nothing at or after it is
	// composed or dispatched.
	require.Len(t, out, 1)
	assert.Equal(t, domain.ActionArm, out[0].Action)
	assert.Len(t, routed.frames, 1)
	assert.Empty(t, ghost.frames)
}

func TestComposeCarriesControlVerbatim(t *testing.T) {
	ctrl := domain.Control{AfterState: "s1"}
	out := compose(t, mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(10)}, Control: ctrl},
		domain.Step{Drone: "d1", Action: domain.ActionGoto, Control: domain.Control{Until: "battery_low"}},
	))
	require.Len(t, out, 3)
	assert.True(t, out[0].Control.IsZero())
	assert.Equal(t, ctrl, out[1].Control)
	assert.Equal(t, "battery_low", out[2].Control.Until, "even unsupported descriptors keep their clause")
}

func TestComposeDispatchesOverTransport(t *testing.T) {
	ft := &fakeTransport{}
	m := mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(15)}},
		domain.Step{Drone: "d1", Action: domain.ActionWait, Params: domain.Params{"time": int64(2)}},
		domain.Step{Drone: "d1", Action: domain.ActionFollow, Params: domain.Params{"target": "d2"}},
		domain.Step{Drone: "d1", Action: domain.ActionRotate},
		domain.Step{Drone: "d1", Action: domain.ActionLand},
	)
	out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{
		Mission:    m,
		Routing:    testRouting,
		Transports: map[string]Transport{"d1": ft},
		Send:       true,
	})
	require.NoError(t, err)
	require.Len(t, out, 6, "every step composes even when it is not sent")

	// Only ARM, TAKEOFF, and LAND reach the link.
	require.Len(t, ft.frames, 3)
	assert.Equal(t, KindCommandLong, ft.frames[0].kind)
	assert.Equal(t, CmdComponentArmDisarm, ft.frames[0].command)
	assert.Equal(t, KindMissionItem, ft.frames[1].kind)
	assert.Equal(t, CmdNavTakeoff, ft.frames[1].command)
	assert.Equal(t, FrameGlobalRelativeAlt, ft.frames[1].frame)
	assert.Equal(t, CmdNavLand, ft.frames[2].command)
	assert.Equal(t, uint16(1), ft.frames[2].seq)
}

func TestComposeSkipsDronesWithoutTransport(t *testing.T) {
	ft := &fakeTransport{}
	m := mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "d2", Action: domain.ActionArm},
	)
	out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{
		Mission:    m,
		Routing:    testRouting,
		Transports: map[string]Transport{"d1": ft},
		Send:       true,
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, ft.frames, 1, "d2 has no link, composition still succeeds")
}

func TestComposeTransportFailureAbortsWithPartialResult(t *testing.T) {
	ft := &fakeTransport{failOn: 2}
	m := mission(
		domain.Step{Drone: "d1", Action: domain.ActionArm},
		domain.Step{Drone: "d1", Action: domain.ActionTakeoff, Params: domain.Params{"alt": int64(15)}},
		domain.Step{Drone: "d1", Action: domain.ActionLand},
	)
	out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{
		Mission:    m,
		Routing:    testRouting,
		Transports: map[string]Transport{"d1": ft},
		Send:       true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch TAKEOFF for drone d1")
	assert.Len(t, out, 2, "the failing descriptor was already composed")
}

// Property: sequence numbers per drone count mission items (including
// unsupported waypoints) from zero without gaps, in step order.
func TestSequenceNumberProperty(t *testing.T) {
	sequenced := map[domain.Action]bool{
		domain.ActionTakeoff: true,
		domain.ActionLand:    true,
		domain.ActionGoto:    true,
		domain.ActionHold:    true,
		domain.ActionCircle:  true,
	}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "steps")
		steps := make([]domain.Step, n)
		for i := range steps {
			steps[i] = domain.Step{
				Drone: rapid.SampledFrom([]string{"d1", "d2"}).Draw(t, "drone"),
				Action: rapid.SampledFrom([]domain.Action{
					domain.ActionArm, domain.ActionTakeoff, domain.ActionLand,
					domain.ActionGoto, domain.ActionHold, domain.ActionCircle,
					domain.ActionYaw, domain.ActionWait, domain.ActionReturn,
				}).Draw(t, "action"),
				Params: domain.Params{},
			}
		}

		out, err := NewComposer(zerolog.Nop()).Compose(context.Background(), Request{Mission: mission(steps...), Routing: testRouting})
		require.NoError(t, err)
		require.Len(t, out, n)

		next := map[string]uint16{}
		for i, d := range out {
			if !sequenced[steps[i].Action] {
				continue
			}
			if d.Kind == KindMissionItem {
				require.Equal(t, next[d.Drone], d.Seq, "descriptor %d", i)
			}
			next[d.Drone]++
		}
	})
}
