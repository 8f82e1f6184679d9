package mavlink

import (
	"fmt"

	"github.com/skygateai/skygate/pkg/domain"
)

// Kind distinguishes the descriptor shapes the composer produces.
type Kind string

const (
	// KindCommandLong is an immediate command: executed on receipt, no
	// sequence number.
	KindCommandLong Kind = "COMMAND_LONG"
	// KindMissionItem is a sequenced mission upload item.
	KindMissionItem Kind = "MISSION_ITEM_INT"
	// KindWait is an orchestration pause for the mission runner; it never
	// reaches the wire.
	KindWait Kind = "WAIT"
	// KindUnsupported records an action the protocol table cannot express,
	// with the reason it could not.
	KindUnsupported Kind = "UNSUPPORTED"
)

// Address identifies a vehicle endpoint on a MAVLink network.
type Address struct {
	SystemID    uint8 `json:"system_id" yaml:"system_id"`
	ComponentID uint8 `json:"component_id" yaml:"component_id"`
}

// Routing maps mission drone ids to their MAVLink addresses.
type Routing map[string]Address

// Descriptor is one composed protocol action. Kind decides which of the
// optional fields are meaningful; the source step's drone, action, state id,
// and control clause are always carried so operators can trace a descriptor
// back to the script line that produced it.
type Descriptor struct {
	Kind    Kind          `json:"type"`
	Drone   string        `json:"drone"`
	StateID string        `json:"state_id,omitempty"`
	Action  domain.Action `json:"action"`

	SysID  uint8 `json:"sysid"`
	CompID uint8 `json:"compid"`

	// Command and Params apply to COMMAND_LONG and MISSION_ITEM_INT. The
	// parameter vector is positional: for mission items slots five and six
	// hold latitude and longitude in fixed-point 1e7 encoding and slot
	// seven the altitude.
	Command      uint16     `json:"command,omitempty"`
	Confirmation uint8      `json:"confirmation,omitempty"`
	Params       [7]float64 `json:"params"`

	// Mission item fields.
	Seq          uint16 `json:"seq,omitempty"`
	Frame        uint8  `json:"frame,omitempty"`
	Current      uint8  `json:"current,omitempty"`
	Autocontinue uint8  `json:"autocontinue,omitempty"`

	// Seconds is the pause length of a WAIT descriptor.
	Seconds float64 `json:"seconds,omitempty"`

	// Reason explains an UNSUPPORTED descriptor.
	Reason string `json:"reason,omitempty"`

	// HumanParams preserves the script parameters for operator display.
	HumanParams domain.Params `json:"human_params,omitempty"`

	// Control is the step's synchronization clause, carried through
	// verbatim. Descriptors never interpret it; that is the mission
	// runner's job.
	Control domain.Control `json:"control"`
}

// newCommandLong builds an immediate command descriptor with the positional
// parameters padded to the full vector.
func newCommandLong(command uint16, params ...float64) Descriptor {
	d := Descriptor{Kind: KindCommandLong, Command: command}
	copy(d.Params[:], params)
	return d
}

// newMissionItem builds a sequenced mission item descriptor. Autocontinue is
// always set: composed plans run without per-item acknowledgement.
func newMissionItem(seq uint16, command uint16, frame uint8, params [7]float64) Descriptor {
	return Descriptor{
		Kind:         KindMissionItem,
		Command:      command,
		Params:       params,
		Seq:          seq,
		Frame:        frame,
		Autocontinue: 1,
	}
}

// RoutingError reports a mission drone with no routing table entry.
type RoutingError struct {
	Drone   string
	StateID string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("drone %s not found in routing table (step %s)", e.Drone, e.StateID)
}

func (e *RoutingError) Unwrap() error { return domain.ErrDroneNotRouted }
