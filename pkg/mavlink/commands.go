package mavlink

// MAV_CMD identifiers from the MAVLink common message set. Only the commands
// the composer emits are listed.
const (
	CmdNavWaypoint        uint16 = 16  // MAV_CMD_NAV_WAYPOINT
	CmdNavLoiterTurns     uint16 = 18  // MAV_CMD_NAV_LOITER_TURNS
	CmdNavLoiterTime      uint16 = 19  // MAV_CMD_NAV_LOITER_TIME
	CmdNavReturnToLaunch  uint16 = 20  // MAV_CMD_NAV_RETURN_TO_LAUNCH
	CmdNavLand            uint16 = 21  // MAV_CMD_NAV_LAND
	CmdNavTakeoff         uint16 = 22  // MAV_CMD_NAV_TAKEOFF
	CmdDoFollow           uint16 = 32  // MAV_CMD_DO_FOLLOW, not implemented by every stack
	CmdConditionYaw       uint16 = 115 // MAV_CMD_CONDITION_YAW
	CmdDoChangeSpeed      uint16 = 178 // MAV_CMD_DO_CHANGE_SPEED
	CmdComponentArmDisarm uint16 = 400 // MAV_CMD_COMPONENT_ARM_DISARM
)

// MAV_FRAME identifiers used by composed mission items.
const (
	FrameGlobal            uint8 = 0 // MAV_FRAME_GLOBAL
	FrameGlobalRelativeAlt uint8 = 3 // MAV_FRAME_GLOBAL_RELATIVE_ALT
)

// coordinateScale converts decimal degrees to the fixed-point integer
// encoding MISSION_ITEM_INT carries for latitude and longitude.
const coordinateScale = 1e7
