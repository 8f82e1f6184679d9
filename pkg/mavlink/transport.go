package mavlink

import (
	"context"

	"github.com/rs/zerolog"
)

// Transport delivers composed descriptors to one vehicle link. Sends are
// synchronous: a call returns once the frame is handed to the link, and an
// error aborts the composition that triggered it.
type Transport interface {
	SendCommandLong(ctx context.Context, sysID, compID uint8, command uint16, confirmation uint8, params [7]float64) error
	SendMissionItem(ctx context.Context, sysID, compID uint8, seq uint16, frame, current, autocontinue uint8, command uint16, params [7]float64) error
}

// LogTransport is a Transport that records every frame to a logger instead
// of a link. It backs dry-run dispatch: operators see exactly what would go
// out, field by field, without a vehicle connected.
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport returns a transport logging to the supplied logger.
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With().Str("component", "transport").Logger()}
}

func (t *LogTransport) SendCommandLong(ctx context.Context, sysID, compID uint8, command uint16, confirmation uint8, params [7]float64) error {
	t.logger.Info().
		Uint8("sysid", sysID).
		Uint8("compid", compID).
		Uint16("command", command).
		Uint8("confirmation", confirmation).
		Floats64("params", params[:]).
		Msg("command_long")
	return nil
}

func (t *LogTransport) SendMissionItem(ctx context.Context, sysID, compID uint8, seq uint16, frame, current, autocontinue uint8, command uint16, params [7]float64) error {
	t.logger.Info().
		Uint8("sysid", sysID).
		Uint8("compid", compID).
		Uint16("seq", seq).
		Uint8("frame", frame).
		Uint8("current", current).
		Uint8("autocontinue", autocontinue).
		Uint16("command", command).
		Floats64("params", params[:]).
		Msg("mission_item_int")
	return nil
}
