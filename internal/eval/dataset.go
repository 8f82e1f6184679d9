package eval

import "github.com/skygateai/skygate/pkg/domain"

// Category groups prompts that should all translate to the same leading
// action.
type Category struct {
	Action  domain.Action
	Prompts []string
}

// Dataset returns the built-in stress suite: 14 categories of 10 phrasings
// each, covering flight safety, navigation, physics, and payload commands.
func Dataset() []Category {
	return []Category{
		{domain.ActionArm, []string{
			"Arm the drone", "Engage motors", "Unlock safety", "Power up rotors", "Enable system",
			"Start engines", "Prepare for flight", "Arm d1", "Set arm state true", "Activate drone",
		}},
		{domain.ActionDisarm, []string{
			"Disarm drone", "Kill motors", "Cut power", "Lock safety", "Stop engines",
			"Disable rotors", "Shut down", "Disarm system", "Turn off motors", "Emergency stop",
		}},
		{domain.ActionTakeoff, []string{
			"Takeoff to 10m", "Ascend to 20m", "Climb to 50ft", "Lift off to 5m", "Launch to 15m",
			"Start flight altitude 10", "Rise to 30m", "Takeoff height 12", "Go up to 10m", "Depart vertical 20m",
		}},
		{domain.ActionLand, []string{
			"Land now", "Touch down", "Descend to ground", "Return to surface", "Land immediately",
			"Stop flying and land", "Set mode LAND", "Come down", "Land at current spot", "Terminate flight",
		}},
		{domain.ActionMove, []string{
			"Move North 10m", "Fly forward 20m", "Go South 50m", "Slide West 30m", "Shift East 15m",
			"Climb Up 5m", "Drop Down 2m", "Move forward 100 ft", "Move right 5m", "Back up 10m",
		}},
		{domain.ActionGoto, []string{
			"Fly to x=10 y=20", "Go to 30, 40", "Head to x=5 y=5", "Transit to 100, 100",
			"Move to grid 50, -50", "Fly to dest x=0 y=10", "Nav to x=20 y=20 z=10", "Go to point 5, 5",
			"Fly straight to x=15 y=15", "Relocate to 10, 0",
		}},
		{domain.ActionCircle, []string{
			"Circle radius 10m", "Orbit here radius 5", "Loiter around point radius 20", "Fly circle 15m",
			"Do a 360 orbit", "Circle target 5m", "Start circling 30m", "Orbit left 10m",
			"Turn in circle 25m", "Loiter turns radius 8",
		}},
		{domain.ActionReturn, []string{
			"Return to launch", "Come home", "RTL", "Fly back to start", "Abort and return",
			"Go home", "Return to base", "Back to launch", "Return immediately", "Retreat to start",
		}},
		{domain.ActionSpeed, []string{
			"Set speed 10 m/s", "Fly fast 20 m/s", "Slow down 2 m/s", "Velocity 15",
			"Cruise speed 5", "Max speed 25", "Speed up to 12", "Reduce speed 1", "Speed 50 km/h", "Maintain 8 m/s",
		}},
		{domain.ActionYaw, []string{
			"Yaw 90 deg", "Rotate right 45", "Turn left 180", "Face North",
			"Spin 360", "Heading 270", "Look South", "Yaw clockwise 90", "Yaw CCW 45", "Orientation 120",
		}},
		{domain.ActionROI, []string{
			"Look at x=10 y=10", "Point nose at 50, 50", "Focus on target x=0 y=0", "Set ROI North 20m",
			"Keep camera on home", "Track object 30, 30", "Observe point 5, 5", "Stare at 10, 10",
			"Lock view 100, 100", "Region of interest 15, 15",
		}},
		{domain.ActionTrigger, []string{
			"Take a picture", "Capture photo", "Trigger camera", "Snap shot", "Start recording",
			"Stop video", "Video on", "Video off", "Click photo", "Shoot image",
		}},
		{domain.ActionGimbal, []string{
			"Pitch gimbal down 90", "Look down with camera", "Rotate camera up 45", "Gimbal yaw 0",
			"Point camera forward", "Tilt camera -30", "Level gimbal", "Pan camera right",
			"Gimbal pitch -90", "Reset mount",
		}},
		{domain.ActionServo, []string{
			"Open gripper (Servo 1)", "Drop payload", "Release package", "Set servo 1 to 1100",
			"Close claw", "Servo 2 pwm 1900", "Activate servo 5", "Deploy mechanism",
			"Unlock hook", "Engage servo 1",
		}},
	}
}

// expectedActions returns the actions accepted as a pass for a category.
// MOVE and GOTO are interchangeable: "go south 50m" is correct as either a
// relative move or an absolute waypoint.
func expectedActions(category domain.Action) []domain.Action {
	switch category {
	case domain.ActionMove:
		return []domain.Action{domain.ActionMove, domain.ActionGoto}
	case domain.ActionGoto:
		return []domain.Action{domain.ActionGoto, domain.ActionMove}
	default:
		return []domain.Action{category}
	}
}
