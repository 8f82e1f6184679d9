package domain

import (
	"math"
	"strconv"
)

// Params holds the key=value arguments attached to a step. Values carry the
// type the token parsed to: int64 for integer literals, float64 for decimal
// literals, string for everything else.
type Params map[string]any

// Float returns the first of keys that is present and numeric, converted to
// float64. Integer values widen; string values never match.
func (p Params) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := p[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return float64(n), true
		case float64:
			return n, true
		}
	}
	return 0, false
}

// FloatOr is Float with a fallback when no key yields a number.
func (p Params) FloatOr(fallback float64, keys ...string) float64 {
	if v, ok := p.Float(keys...); ok {
		return v
	}
	return fallback
}

// Text returns the first of keys that is present, rendered as a string.
// Numeric values are formatted the way they were written.
func (p Params) Text(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := p[key]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			return s, true
		case int64:
			return strconv.FormatInt(s, 10), true
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		}
	}
	return "", false
}

// Has reports whether any of keys is present.
func (p Params) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := p[key]; ok {
			return true
		}
	}
	return false
}

// Control captures the optional synchronization clause of a step. At most one
// field is set; the zero value means the step runs unconditionally. The
// pipeline carries the clause through to composed descriptors untouched.
type Control struct {
	AfterState string `json:"after_state,omitempty"` // run after the named step completes
	AfterDrone string `json:"after_drone,omitempty"` // run after the named drone finishes its work
	Until      string `json:"until,omitempty"`       // repeat or hold until the condition fires
}

// IsZero reports whether the step has no synchronization clause.
func (c Control) IsZero() bool {
	return c.AfterState == "" && c.AfterDrone == "" && c.Until == ""
}

// Step is one accepted instruction of a mission script.
type Step struct {
	StateID string  `json:"state_id"`       // sequential id s1..sN over accepted steps
	Drone   string  `json:"drone"`          // target drone id, verbatim from the script
	Action  Action  `json:"action"`         // vocabulary verb, aliases already resolved
	Params  Params  `json:"params"`         // coerced key=value arguments
	Control Control `json:"control"`        // synchronization clause, zero when absent
	Next    string  `json:"next,omitempty"` // state id of the following step, empty on the last
}

// Mission is the document produced by parsing a script: the ordered accepted
// steps plus the sorted set of drone ids they reference.
type Mission struct {
	MissionID string   `json:"mission_id"`
	Steps     []Step   `json:"steps"`
	Drones    []string `json:"drones"`
}

// StepsFor returns the steps addressed to the given drone, in mission order.
func (m Mission) StepsFor(drone string) []Step {
	var out []Step
	for _, s := range m.Steps {
		if s.Drone == drone {
			out = append(out, s)
		}
	}
	return out
}

// Position is a point in the local mission frame: metres east (X), metres
// north (Y), metres above the launch plane (Z).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlanarDistance returns the horizontal distance from the origin.
func (p Position) PlanarDistance() float64 {
	return math.Hypot(p.X, p.Y)
}
