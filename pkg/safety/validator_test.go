package safety

import (
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/dsl"
)

func parseScript(t testing.TB, script string) domain.Mission {
	t.Helper()
	mission, diags := dsl.NewParser(zerolog.Nop()).Parse(script)
	require.Empty(t, diags)
	return mission
}

func newTestValidator(opts ...Option) *Validator {
	return NewValidator(zerolog.Nop(), opts...)
}

func TestValidatePassingMission(t *testing.T) {
	mission := parseScript(t, `
		DRONE d1 TAKEOFF altitude=20;
		DRONE d1 GOTO x=100 y=100 z=50;
		DRONE d1 LAND;
	`)
	report := newTestValidator().Validate(mission)

	assert.True(t, report.Passed())
	assert.Empty(t, report.Issues)
	assert.Equal(t, mission.MissionID, report.MissionID)
	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, 3, report.Steps)
	assert.Equal(t, domain.Position{X: 100, Y: 100, Z: 0}, report.Final["d1"])
}

func TestValidateAltitudeCeiling(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF altitude=150;")
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 1, "only the ceiling check fails")
	v := report.Issues[0]
	assert.Equal(t, CheckMaxAltitude, v.Check)
	assert.Equal(t, 1, v.Step)
	assert.Equal(t, "d1", v.Drone)
	assert.Equal(t, "Step 1 WARNING: Altitude 150.0m exceeds legal limit.", v.Message)
	assert.False(t, report.Passed())
}

func TestValidateBelowGround(t *testing.T) {
	mission := parseScript(t, "DRONE d1 MOVE direction=down distance=5;")
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 1)
	v := report.Issues[0]
	assert.Equal(t, CheckMinAltitude, v.Check)
	assert.Equal(t, "Step 1 CRITICAL: Drone commanded to crash/fly underground (z=-5.0m).", v.Message)
}

func TestValidateGeofence(t *testing.T) {
	mission := parseScript(t, `
		DRONE d1 TAKEOFF altitude=30;
		DRONE d1 GOTO x=400 y=400;
	`)
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 1)
	v := report.Issues[0]
	assert.Equal(t, CheckGeofence, v.Check)
	assert.Equal(t, 2, v.Step)
	assert.Equal(t, "Step 2 SAFETY: Drone leaving operational area (565.7m > 500.0m).", v.Message)
}

func TestValidateMissingTakeoffAltitude(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF;")
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 1, "prediction falls back to the default altitude, so only the parameter check fails")
	v := report.Issues[0]
	assert.Equal(t, CheckRequiredParam, v.Check)
	assert.Equal(t, "Step 1 (TAKEOFF): Missing 'altitude' parameter.", v.Message)
	assert.Equal(t, domain.Position{Z: 10}, report.Final["d1"])
}

func TestValidateAltAliasSatisfiesRequiredParam(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF alt=25;")
	report := newTestValidator().Validate(mission)
	assert.True(t, report.Passed())
	assert.Equal(t, domain.Position{Z: 25}, report.Final["d1"])
}

func TestValidateOrderOfChecksWithinStep(t *testing.T) {
	// A single step that fails the parameter check and then, via the default
	// altitude, passes the rest: the issue order must follow the check order.
	mission := parseScript(t, `
		DRONE d1 TAKEOFF;
		DRONE d1 GOTO x=600 z=-2;
	`)
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 3)
	assert.Equal(t, CheckRequiredParam, report.Issues[0].Check)
	assert.Equal(t, 1, report.Issues[0].Step)
	assert.Equal(t, CheckMinAltitude, report.Issues[1].Check)
	assert.Equal(t, 2, report.Issues[1].Step)
	assert.Equal(t, CheckGeofence, report.Issues[2].Check)
	assert.Equal(t, 2, report.Issues[2].Step)
}

func TestValidateContinuesPastViolations(t *testing.T) {
	mission := parseScript(t, `
		DRONE d1 TAKEOFF altitude=200;
		DRONE d1 GOTO x=700;
		DRONE d1 LAND;
	`)
	report := newTestValidator().Validate(mission)

	// Step 1 breaches the ceiling, step 2 the geofence (still at 200 m, so
	// the ceiling fires again), step 3 lands outside the fence.
	require.Len(t, report.Issues, 4)
	assert.Equal(t, 3, report.Steps)
	assert.Equal(t, domain.Position{X: 700, Y: 0, Z: 0}, report.Final["d1"])
}

func TestValidatePerDroneTracks(t *testing.T) {
	// d2 climbs from its own ground position, not from d1's 80 m.
	mission := parseScript(t, `
		DRONE d1 TAKEOFF altitude=80;
		DRONE d2 MOVE direction=up distance=80;
	`)
	report := newTestValidator().Validate(mission)

	assert.True(t, report.Passed(), "per-drone simulation keeps d2 at 80m")
	assert.Equal(t, domain.Position{Z: 80}, report.Final["d1"])
	assert.Equal(t, domain.Position{Z: 80}, report.Final["d2"])
}

func TestValidateSharedPositionTrack(t *testing.T) {
	// Same script as the per-drone test: on the shared track d2's climb
	// starts from d1's 80 m and breaches the ceiling at 160 m.
	mission := parseScript(t, `
		DRONE d1 TAKEOFF altitude=80;
		DRONE d2 MOVE direction=up distance=80;
	`)
	report := newTestValidator(WithSharedPosition()).Validate(mission)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, CheckMaxAltitude, report.Issues[0].Check)
	assert.Equal(t, 2, report.Issues[0].Step)
	assert.Equal(t, report.Final["d1"], report.Final["d2"])
	assert.Equal(t, domain.Position{Z: 160}, report.Final["d1"])
}

func TestValidateCustomLimits(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF altitude=80;")
	report := newTestValidator(WithLimits(Limits{MinAltitude: 0, MaxAltitude: 60, GeofenceRadius: 100})).Validate(mission)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, CheckMaxAltitude, report.Issues[0].Check)
}

func TestValidateEmptyMission(t *testing.T) {
	report := newTestValidator().Validate(domain.Mission{MissionID: "mission_auto"})
	assert.True(t, report.Passed())
	assert.Empty(t, report.Audit)
	assert.Empty(t, report.Final)
}

func TestAuditTrailShape(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF altitude=15;")
	report := newTestValidator().Validate(mission)

	// Header, syntax verdict, predicted state, and one line per safety check.
	require.Len(t, report.Audit, 6)
	assert.Contains(t, report.Audit[0], "[step 1]")
	assert.Contains(t, report.Audit[0], "action=TAKEOFF")
	assert.Contains(t, report.Audit[1], "required param 'altitude' present")
	assert.Contains(t, report.Audit[2], "predicted position (x=0.0, y=0.0, z=15.0)")
	assert.Contains(t, report.Audit[3], "safety ok")
	assert.Contains(t, report.Audit[4], "ceiling")
	assert.Contains(t, report.Audit[5], "geofence ok")
}

func TestAuditTrailRecordsViolations(t *testing.T) {
	mission := parseScript(t, "DRONE d1 GOTO z=-1;")
	report := newTestValidator().Validate(mission)

	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Audit, "   min-altitude violation: Step 1 CRITICAL: Drone commanded to crash/fly underground (z=-1.0m).")
}

func TestIssueMessages(t *testing.T) {
	mission := parseScript(t, "DRONE d1 TAKEOFF altitude=150;")
	report := newTestValidator().Validate(mission)
	assert.Equal(t, []string{"Step 1 WARNING: Altitude 150.0m exceeds legal limit."}, report.IssueMessages())
}

// Property: a GOTO breaches the geofence exactly when its planar distance
// exceeds the radius.
func TestGeofenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-800, 800).Draw(t, "x")
		y := rapid.Float64Range(-800, 800).Draw(t, "y")

		mission := domain.Mission{
			MissionID: "mission_auto",
			Drones:    []string{"d1"},
			Steps: []domain.Step{{
				StateID: "s1",
				Drone:   "d1",
				Action:  domain.ActionGoto,
				Params:  domain.Params{"x": x, "y": y, "z": int64(50)},
			}},
		}
		report := newTestValidator().Validate(mission)

		outside := math.Hypot(x, y) > 500
		var geofenceIssues int
		for _, v := range report.Issues {
			if v.Check == CheckGeofence {
				geofenceIssues++
			}
		}
		if outside {
			require.Equal(t, 1, geofenceIssues, "outside the fence must raise exactly one geofence issue")
		} else {
			require.Zero(t, geofenceIssues, "inside the fence must raise none")
		}
	})
}

// Property: validation always completes and audits every step, violations or
// not.
func TestValidationIsTotalProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(t, "steps")
		steps := make([]domain.Step, n)
		for i := range steps {
			action := rapid.SampledFrom([]domain.Action{
				domain.ActionTakeoff, domain.ActionGoto, domain.ActionMove,
				domain.ActionLand, domain.ActionArm, domain.ActionHold,
			}).Draw(t, "action")
			params := domain.Params{}
			if action == domain.ActionTakeoff {
				params["altitude"] = rapid.Float64Range(-50, 300).Draw(t, "altitude")
			}
			if action == domain.ActionGoto {
				params["x"] = rapid.Float64Range(-700, 700).Draw(t, "x")
				params["z"] = rapid.Float64Range(-10, 200).Draw(t, "z")
			}
			if action == domain.ActionMove {
				params["direction"] = rapid.SampledFrom([]string{"north", "down", "up", "nowhere"}).Draw(t, "direction")
				params["distance"] = rapid.Float64Range(0, 600).Draw(t, "distance")
			}
			steps[i] = domain.Step{
				StateID: fmt.Sprintf("s%d", i+1),
				Drone:   "d1",
				Action:  action,
				Params:  params,
			}
		}
		mission := domain.Mission{MissionID: "mission_auto", Drones: []string{"d1"}, Steps: steps}
		report := newTestValidator().Validate(mission)

		require.Equal(t, n, report.Steps)
		if n == 0 {
			require.Empty(t, report.Audit)
			return
		}
		// Every step contributes a header plus at least the predicted state
		// and three check verdicts.
		require.GreaterOrEqual(t, len(report.Audit), n*5)
		require.Equal(t, report.Passed(), len(report.Issues) == 0)
	})
}
