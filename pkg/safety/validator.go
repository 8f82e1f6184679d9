package safety

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/domain"
)

// Check identifies one of the safety rules applied to every step.
type Check string

const (
	// CheckRequiredParam verifies that actions carrying mandatory
	// parameters actually have them (TAKEOFF needs an altitude).
	CheckRequiredParam Check = "required-param"
	// CheckMinAltitude rejects predicted positions below the ground plane.
	CheckMinAltitude Check = "min-altitude"
	// CheckMaxAltitude rejects predicted positions above the legal ceiling.
	CheckMaxAltitude Check = "max-altitude"
	// CheckGeofence rejects predicted positions outside the operational
	// radius around the launch point.
	CheckGeofence Check = "geofence"
)

// Limits holds the physical and legal bounds a mission is validated against.
type Limits struct {
	MinAltitude    float64 // metres, the ground plane
	MaxAltitude    float64 // metres, legal ceiling above launch
	GeofenceRadius float64 // metres, planar distance from launch
}

// DefaultLimits returns the stock regulatory envelope: ground at zero, a
// 120 m ceiling, and a 500 m geofence.
func DefaultLimits() Limits {
	return Limits{MinAltitude: 0, MaxAltitude: 120, GeofenceRadius: 500}
}

// Violation is one failed check, tied to the step and drone that caused it.
type Violation struct {
	Step    int    `json:"step"` // 1-based index into the mission steps
	Drone   string `json:"drone"`
	Check   Check  `json:"check"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Message }

// Report is the full outcome of validating one mission: the violations, the
// audit trail that justifies them, and the final predicted position of every
// drone.
type Report struct {
	ReportID  string                     `json:"report_id"`
	MissionID string                     `json:"mission_id"`
	Steps     int                        `json:"steps"`
	Issues    []Violation                `json:"issues"`
	Audit     []string                   `json:"audit"`
	Final     map[string]domain.Position `json:"final_positions"`
}

// Passed reports whether the mission cleared every check.
func (r Report) Passed() bool { return len(r.Issues) == 0 }

// IssueMessages flattens the violations into their display strings.
func (r Report) IssueMessages() []string {
	out := make([]string, len(r.Issues))
	for i, v := range r.Issues {
		out[i] = v.Message
	}
	return out
}

// Validator simulates missions and applies the safety checks.
type Validator struct {
	logger zerolog.Logger
	limits Limits
	shared bool
}

// Option adjusts validator construction.
type Option func(*Validator)

// WithLimits replaces the default regulatory envelope wholesale.
func WithLimits(l Limits) Option {
	return func(v *Validator) { v.limits = l }
}

// WithSharedPosition makes all drones advance one shared position track
// instead of one track per drone. This reproduces the historical validator
// behaviour for missions written against it; new missions should leave it
// off.
func WithSharedPosition() Option {
	return func(v *Validator) { v.shared = true }
}

// NewValidator returns a validator using the default limits unless
// overridden.
func NewValidator(logger zerolog.Logger, opts ...Option) *Validator {
	v := &Validator{
		logger: logger.With().Str("component", "safety").Logger(),
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate walks the mission steps in order, predicts each resulting
// position, and applies the checks to it. All drones start at the launch
// point. The report collects every violation found; an empty issue list
// means the mission may fly.
func (v *Validator) Validate(m domain.Mission) Report {
	report := Report{
		ReportID:  uuid.NewString(),
		MissionID: m.MissionID,
		Steps:     len(m.Steps),
		Final:     make(map[string]domain.Position, len(m.Drones)),
	}

	tracks := make(map[string]*domain.Position, len(m.Drones))
	sharedTrack := &domain.Position{}
	track := func(drone string) *domain.Position {
		if v.shared {
			return sharedTrack
		}
		p, ok := tracks[drone]
		if !ok {
			p = &domain.Position{}
			tracks[drone] = p
		}
		return p
	}

	for i, step := range m.Steps {
		no := i + 1
		pos := track(step.Drone)

		report.Audit = append(report.Audit,
			fmt.Sprintf("[step %d] drone=%s action=%s params=%v", no, step.Drone, step.Action, step.Params))

		if step.Action == domain.ActionTakeoff {
			if step.Params.Has("altitude", "alt") {
				report.Audit = append(report.Audit, "   syntax ok: required param 'altitude' present")
			} else {
				report.fail(Violation{
					Step:    no,
					Drone:   step.Drone,
					Check:   CheckRequiredParam,
					Message: fmt.Sprintf("Step %d (TAKEOFF): Missing 'altitude' parameter.", no),
				})
			}
		}

		next := Advance(*pos, step)
		report.Audit = append(report.Audit,
			fmt.Sprintf("   state: predicted position (x=%.1f, y=%.1f, z=%.1f)", next.X, next.Y, next.Z))

		if next.Z < v.limits.MinAltitude {
			report.fail(Violation{
				Step:    no,
				Drone:   step.Drone,
				Check:   CheckMinAltitude,
				Message: fmt.Sprintf("Step %d CRITICAL: Drone commanded to crash/fly underground (z=%.1fm).", no, next.Z),
			})
		} else {
			report.Audit = append(report.Audit,
				fmt.Sprintf("   safety ok: altitude (%.1fm) >= ground (%.1fm)", next.Z, v.limits.MinAltitude))
		}

		if next.Z > v.limits.MaxAltitude {
			report.fail(Violation{
				Step:    no,
				Drone:   step.Drone,
				Check:   CheckMaxAltitude,
				Message: fmt.Sprintf("Step %d WARNING: Altitude %.1fm exceeds legal limit.", no, next.Z),
			})
		} else {
			report.Audit = append(report.Audit,
				fmt.Sprintf("   safety ok: altitude (%.1fm) <= ceiling (%.1fm)", next.Z, v.limits.MaxAltitude))
		}

		distance := next.PlanarDistance()
		if distance > v.limits.GeofenceRadius {
			report.fail(Violation{
				Step:    no,
				Drone:   step.Drone,
				Check:   CheckGeofence,
				Message: fmt.Sprintf("Step %d SAFETY: Drone leaving operational area (%.1fm > %.1fm).", no, distance, v.limits.GeofenceRadius),
			})
		} else {
			report.Audit = append(report.Audit,
				fmt.Sprintf("   geofence ok: distance (%.1fm) inside radius (%.1fm)", distance, v.limits.GeofenceRadius))
		}

		*pos = next
	}

	for _, drone := range m.Drones {
		if v.shared {
			report.Final[drone] = *sharedTrack
			continue
		}
		if p, ok := tracks[drone]; ok {
			report.Final[drone] = *p
		}
	}

	v.logger.Info().
		Str("mission_id", m.MissionID).
		Str("report_id", report.ReportID).
		Int("steps", report.Steps).
		Int("issues", len(report.Issues)).
		Bool("passed", report.Passed()).
		Msg("mission validated")

	return report
}

// fail records a violation in both the issue list and the audit trail.
func (r *Report) fail(v Violation) {
	r.Issues = append(r.Issues, v)
	r.Audit = append(r.Audit, fmt.Sprintf("   %s violation: %s", v.Check, v.Message))
}
