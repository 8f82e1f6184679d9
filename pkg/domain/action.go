package domain

// Action is a verb from the closed mission command vocabulary. The set is
// fixed: scripts may only use these verbs, and downstream stages switch on
// them exhaustively.
type Action string

// Navigation actions.
const (
	ActionArm     Action = "ARM"
	ActionDisarm  Action = "DISARM"
	ActionTakeoff Action = "TAKEOFF"
	ActionLand    Action = "LAND"
	ActionGoto    Action = "GOTO"
	ActionHold    Action = "HOLD"
	ActionCircle  Action = "CIRCLE"
	ActionReturn  Action = "RETURN"
	ActionSpeed   Action = "SPEED"
	ActionYaw     Action = "YAW"
	ActionFollow  Action = "FOLLOW"
	ActionWait    Action = "WAIT"
	ActionRotate  Action = "ROTATE"
	ActionMove    Action = "MOVE"
)

// Payload actions.
const (
	ActionROI     Action = "ROI"
	ActionTrigger Action = "TRIGGER"
	ActionGimbal  Action = "GIMBAL"
	ActionServo   Action = "SERVO"
)

var knownActions = map[Action]struct{}{
	ActionArm:     {},
	ActionDisarm:  {},
	ActionTakeoff: {},
	ActionLand:    {},
	ActionGoto:    {},
	ActionHold:    {},
	ActionCircle:  {},
	ActionReturn:  {},
	ActionSpeed:   {},
	ActionYaw:     {},
	ActionFollow:  {},
	ActionWait:    {},
	ActionRotate:  {},
	ActionMove:    {},
	ActionROI:     {},
	ActionTrigger: {},
	ActionGimbal:  {},
	ActionServo:   {},
}

// ParseAction reports whether token is a member of the command vocabulary.
// Matching is case-sensitive: scripts write verbs in upper case.
func ParseAction(token string) (Action, bool) {
	a := Action(token)
	if _, ok := knownActions[a]; ok {
		return a, true
	}
	return "", false
}

// String returns the wire spelling of the action.
func (a Action) String() string { return string(a) }
