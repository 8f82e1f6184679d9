// Package mavlink turns validated mission documents into ordered MAVLink
// command descriptors.
//
// The mapping from mission actions to protocol commands is a fixed table:
// immediate actions (ARM, SPEED, YAW, RETURN, FOLLOW) become COMMAND_LONG
// descriptors, spatial actions (TAKEOFF, LAND, GOTO, HOLD, CIRCLE) become
// MISSION_ITEM_INT descriptors with a per-drone sequence number, WAIT becomes
// an orchestration pause with no wire message, and everything else is marked
// unsupported with a reason instead of failing the batch.
//
// Descriptors are a composition product, not wire frames. Callers that want
// frames on a link supply a Transport per drone and set Send; composition
// then dispatches each sendable descriptor synchronously as it is produced.
package mavlink
