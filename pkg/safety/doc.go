// Package safety simulates mission documents against a physics model and a
// fixed set of flight rules before anything reaches a vehicle.
//
// The validator walks the steps in order, predicting the position each step
// leaves the drone in, and applies the checks to every predicted position:
// required parameters, minimum altitude, maximum altitude, and geofence
// containment. Every check, pass or fail, leaves a line in the audit trail,
// so a report shows its evidence rather than just a verdict. Validation
// always completes: a violating step is recorded and simulation continues,
// which lets a single run surface every problem in the script.
package safety
