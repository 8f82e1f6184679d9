package dsl

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/domain"
)

// DefaultMissionID is assigned to every parsed document unless overridden
// with WithMissionID.
const DefaultMissionID = "mission_auto"

// keywordDrone opens every instruction; aliasStop rewrites to HOLD before
// vocabulary lookup.
const (
	keywordDrone = "DRONE"
	keywordAfter = "AFTER"
	keywordUntil = "UNTIL"
	aliasStop    = "STOP"
)

// numberPattern decides whether a parameter value is numeric: an optional
// minus sign, digits, and an optional decimal part. Anything else stays a
// string.
var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Diagnostic records one dropped instruction and why it was dropped.
type Diagnostic struct {
	Instruction string `json:"instruction"`
	Reason      string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("skipping %q: %s", d.Instruction, d.Reason)
}

// Parser turns mission scripts into mission documents.
type Parser struct {
	logger    zerolog.Logger
	missionID string
}

// Option adjusts parser construction.
type Option func(*Parser)

// WithMissionID overrides the mission id stamped on parsed documents.
func WithMissionID(id string) Option {
	return func(p *Parser) {
		if id != "" {
			p.missionID = id
		}
	}
}

// NewParser returns a parser that logs dropped instructions to the supplied
// logger.
func NewParser(logger zerolog.Logger, opts ...Option) *Parser {
	p := &Parser{
		logger:    logger.With().Str("component", "dsl").Logger(),
		missionID: DefaultMissionID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse splits the script on semicolons and converts each instruction into a
// step. Instructions that do not fit the grammar are dropped, one diagnostic
// each; the returned document holds only the accepted steps. Parse never
// fails outright: an empty or fully malformed script yields a document with
// no steps.
func (p *Parser) Parse(script string) (domain.Mission, []Diagnostic) {
	var (
		steps []domain.Step
		diags []Diagnostic
		seen  = map[string]struct{}{}
	)

	for _, raw := range strings.Split(script, ";") {
		tokens := strings.Fields(raw)
		if len(tokens) == 0 {
			continue
		}
		instruction := strings.Join(tokens, " ")

		if len(tokens) < 2 {
			diags = p.drop(diags, instruction, "instruction too short")
			continue
		}
		if tokens[0] != keywordDrone {
			diags = p.drop(diags, instruction, "missing DRONE prefix")
			continue
		}
		drone := tokens[1]

		idx := 2
		if idx >= len(tokens) {
			diags = p.drop(diags, instruction, "missing action")
			continue
		}
		verb := tokens[idx]
		if verb == aliasStop {
			verb = domain.ActionHold.String()
		}
		action, ok := domain.ParseAction(verb)
		if !ok {
			diags = p.drop(diags, instruction, fmt.Sprintf("unknown action %q", tokens[idx]))
			continue
		}
		idx++

		params := domain.Params{}
		var control domain.Control
		dangling := false
		for idx < len(tokens) {
			tok := tokens[idx]
			if tok == keywordAfter || tok == keywordUntil {
				if idx+1 >= len(tokens) {
					dangling = true
					break
				}
				target := tokens[idx+1]
				switch {
				case tok == keywordUntil:
					control.Until = target
				case strings.HasPrefix(target, "s"):
					control.AfterState = target
				default:
					control.AfterDrone = target
				}
				// Anything after the control clause is ignored.
				break
			}
			if key, value, found := strings.Cut(tok, "="); found {
				params[key] = coerceValue(value)
			}
			idx++
		}
		if dangling {
			diags = p.drop(diags, instruction, "dangling control keyword")
			continue
		}

		steps = append(steps, domain.Step{
			StateID: fmt.Sprintf("s%d", len(steps)+1),
			Drone:   drone,
			Action:  action,
			Params:  params,
			Control: control,
		})
		seen[drone] = struct{}{}
	}

	// Chain accepted steps only: the last step has no successor even when
	// trailing instructions were dropped.
	for i := range steps {
		if i+1 < len(steps) {
			steps[i].Next = steps[i+1].StateID
		}
	}

	drones := make([]string, 0, len(seen))
	for id := range seen {
		drones = append(drones, id)
	}
	sort.Strings(drones)

	p.logger.Debug().
		Int("steps", len(steps)).
		Int("dropped", len(diags)).
		Int("drones", len(drones)).
		Msg("script parsed")

	return domain.Mission{MissionID: p.missionID, Steps: steps, Drones: drones}, diags
}

func (p *Parser) drop(diags []Diagnostic, instruction, reason string) []Diagnostic {
	p.logger.Warn().
		Str("instruction", instruction).
		Str("reason", reason).
		Msg("dropping instruction")
	return append(diags, Diagnostic{Instruction: instruction, Reason: reason})
}

// coerceValue types a raw parameter value: integer literals become int64,
// decimal literals float64, everything else stays a string. Integers too
// large for int64 degrade to float64 rather than failing the token.
func coerceValue(raw string) any {
	if !numberPattern.MatchString(raw) {
		return raw
	}
	if !strings.Contains(raw, ".") {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
