// internal/tui/console.go
//
// Interactive mission console. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: the console state
// 2. Update: a function that updates state based on messages
// 3. View: a function that renders state to a string
//
// The flow mirrors a commander briefing: enter a mission request, review
// the generated plan and its explanation, then approve, abort, or ask for
// a correction. Approval hands the plan to the safety validator and, when
// it passes, to the MAVLink composer.

package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/dsl"
	"github.com/skygateai/skygate/pkg/geo"
	"github.com/skygateai/skygate/pkg/mavlink"
	"github.com/skygateai/skygate/pkg/safety"
)

// consoleState represents which "screen" the console is on.
type consoleState int

const (
	statePrompt     consoleState = iota // commander types the mission request
	stateGenerating                     // waiting on the language model
	stateReview                         // plan and explanation shown, awaiting y/n/c
	stateFeedback                       // commander types a correction
	stateRefining                       // waiting on the updated plan
	stateValidating                     // safety check and compose in flight
	stateCleared                        // mission safe, commands composed
	stateRejected                       // safety officer refused the plan
	stateAborted                        // commander declined the plan
	stateFailed                         // provider error or repair attempts exhausted
)

// maxRepairAttempts bounds the parse-and-repair loop per plan.
const maxRepairAttempts = 3

// Planner is the language-model surface the console drives.
// *translate.Translator satisfies it.
type Planner interface {
	Translate(ctx context.Context, request string) (string, error)
	Explain(ctx context.Context, script string) (string, error)
	Repair(ctx context.Context, badScript, failure string) (string, error)
	Refine(ctx context.Context, currentScript, feedback string) (string, error)
}

// Options configures a Console. Planner is required; everything else has a
// usable zero value.
type Options struct {
	Planner        Planner
	MissionID      string
	Limits         safety.Limits
	SharedPosition bool
	Routing        mavlink.Routing
	Transports     map[string]mavlink.Transport
	Send           bool
	Origin         geo.Origin
	Logger         zerolog.Logger
}

// planMsg carries a generated or refined plan back into the Update loop.
type planMsg struct {
	script      string
	explanation string
	mission     domain.Mission
	diags       []dsl.Diagnostic
	repairs     int
	err         error
}

// verdictMsg carries the safety verdict and composed commands.
type verdictMsg struct {
	report      safety.Report
	descriptors []mavlink.Descriptor
	err         error
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	planStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
)

// Console is the bubbletea model for the interactive session.
type Console struct {
	state consoleState

	planner    Planner
	parser     *dsl.Parser
	validator  *safety.Validator
	composer   *mavlink.Composer
	routing    mavlink.Routing
	transports map[string]mavlink.Transport
	send       bool
	origin     geo.Origin
	logger     zerolog.Logger

	input textinput.Model
	spin  spinner.Model

	prompt      string
	script      string
	explanation string
	mission     domain.Mission
	diags       []dsl.Diagnostic
	repairs     int
	report      *safety.Report
	descriptors []mavlink.Descriptor
	err         error
	statusMsg   string

	width  int
	height int
}

// NewConsole builds the console model. It does not start the program; use
// Run for that, or drive Update directly in tests.
func NewConsole(opts Options) *Console {
	parserOpts := []dsl.Option{}
	if opts.MissionID != "" {
		parserOpts = append(parserOpts, dsl.WithMissionID(opts.MissionID))
	}

	validatorOpts := []safety.Option{}
	if opts.Limits != (safety.Limits{}) {
		validatorOpts = append(validatorOpts, safety.WithLimits(opts.Limits))
	}
	if opts.SharedPosition {
		validatorOpts = append(validatorOpts, safety.WithSharedPosition())
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = spinnerStyle

	return &Console{
		state:      statePrompt,
		planner:    opts.Planner,
		parser:     dsl.NewParser(opts.Logger, parserOpts...),
		validator:  safety.NewValidator(opts.Logger, validatorOpts...),
		composer:   mavlink.NewComposer(opts.Logger),
		routing:    opts.Routing,
		transports: opts.Transports,
		send:       opts.Send,
		origin:     opts.Origin,
		logger:     opts.Logger.With().Str("component", "console").Logger(),
		input:      newPromptInput(0),
		spin:       spin,
	}
}

// Run starts the console and blocks until the commander quits.
func Run(opts Options) error {
	program := tea.NewProgram(NewConsole(opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func newPromptInput(width int) textinput.Model {
	return newInput("e.g. launch two drones and sweep the north field at 30m", width)
}

func newFeedbackInput(width int) textinput.Model {
	return newInput("e.g. lower the altitude to 20 meters", width)
}

func newInput(placeholder string, width int) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.CharLimit = 280
	if width > 0 {
		input.Width = max(20, width-8)
	}
	input.Focus()
	return input
}

// Init is called once when the program starts.
func (c *Console) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.input.Width = max(20, msg.Width-8)
		return c, nil

	case spinner.TickMsg:
		if c.waiting() {
			var cmd tea.Cmd
			c.spin, cmd = c.spin.Update(msg)
			return c, cmd
		}
		return c, nil

	case planMsg:
		return c.handlePlan(msg)

	case verdictMsg:
		return c.handleVerdict(msg)

	case tea.KeyMsg:
		return c.handleKey(msg)
	}

	// Anything else (cursor blinks and the like) belongs to the focused
	// input when one is on screen.
	if c.state == statePrompt || c.state == stateFeedback {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd
	}
	return c, nil
}

func (c *Console) waiting() bool {
	return c.state == stateGenerating || c.state == stateRefining || c.state == stateValidating
}

func (c *Console) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return c, tea.Quit
	}

	switch c.state {
	case statePrompt:
		if msg.Type == tea.KeyEnter {
			prompt := strings.TrimSpace(c.input.Value())
			if prompt == "" {
				return c, tea.Quit
			}
			c.prompt = prompt
			c.statusMsg = ""
			c.state = stateGenerating
			c.logger.Info().Str("request", prompt).Msg("generating mission plan")
			return c, tea.Batch(c.spin.Tick, c.generateCmd(prompt))
		}
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd

	case stateReview:
		switch strings.ToLower(msg.String()) {
		case "y":
			c.statusMsg = ""
			c.state = stateValidating
			return c, tea.Batch(c.spin.Tick, c.approveCmd(c.mission))
		case "n":
			c.state = stateAborted
			c.logger.Info().Str("mission_id", c.mission.MissionID).Msg("mission aborted by commander")
			return c, nil
		case "c":
			c.statusMsg = ""
			c.input = newFeedbackInput(c.width)
			c.state = stateFeedback
			return c, textinput.Blink
		case "q":
			return c, tea.Quit
		default:
			c.statusMsg = "Invalid choice. Try again."
			return c, nil
		}

	case stateFeedback:
		switch msg.Type {
		case tea.KeyEnter:
			feedback := strings.TrimSpace(c.input.Value())
			if feedback == "" {
				c.statusMsg = "No feedback. Keeping plan."
				c.state = stateReview
				return c, nil
			}
			c.statusMsg = ""
			c.state = stateRefining
			c.logger.Info().Str("feedback", feedback).Msg("updating mission plan")
			return c, tea.Batch(c.spin.Tick, c.refineCmd(c.script, feedback))
		case tea.KeyEsc:
			c.statusMsg = "Keeping plan."
			c.state = stateReview
			return c, nil
		}
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return c, cmd

	case stateCleared, stateRejected, stateAborted, stateFailed:
		if msg.Type == tea.KeyEnter {
			c.reset()
			return c, textinput.Blink
		}
		if msg.String() == "q" {
			return c, tea.Quit
		}
	}

	return c, nil
}

func (c *Console) handlePlan(msg planMsg) (tea.Model, tea.Cmd) {
	if c.state != stateGenerating && c.state != stateRefining {
		return c, nil
	}
	c.script = msg.script
	c.repairs += msg.repairs
	if msg.err != nil {
		c.err = msg.err
		c.state = stateFailed
		c.logger.Error().Err(msg.err).Msg("plan generation failed")
		return c, nil
	}
	c.mission = msg.mission
	c.diags = msg.diags
	c.explanation = msg.explanation
	c.statusMsg = ""
	c.state = stateReview
	return c, nil
}

func (c *Console) handleVerdict(msg verdictMsg) (tea.Model, tea.Cmd) {
	if c.state != stateValidating {
		return c, nil
	}
	report := msg.report
	c.report = &report
	c.descriptors = msg.descriptors
	switch {
	case errors.Is(msg.err, domain.ErrMissionRejected):
		c.state = stateRejected
		c.logger.Warn().Str("report_id", report.ReportID).Int("issues", len(report.Issues)).Msg("mission rejected")
	case msg.err != nil:
		c.err = msg.err
		c.state = stateFailed
		c.logger.Error().Err(msg.err).Msg("composition failed")
	default:
		c.state = stateCleared
		c.logger.Info().Str("mission_id", c.mission.MissionID).Int("commands", len(msg.descriptors)).Msg("mission cleared")
	}
	return c, nil
}

// reset returns the console to a fresh prompt for the next session.
func (c *Console) reset() {
	c.state = statePrompt
	c.prompt = ""
	c.script = ""
	c.explanation = ""
	c.mission = domain.Mission{}
	c.diags = nil
	c.repairs = 0
	c.report = nil
	c.descriptors = nil
	c.err = nil
	c.statusMsg = ""
	c.input = newPromptInput(c.width)
}

func (c *Console) generateCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		script, err := c.planner.Translate(ctx, prompt)
		if err != nil {
			return planMsg{err: err}
		}
		return c.draftPlan(ctx, script)
	}
}

func (c *Console) refineCmd(script, feedback string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		next, err := c.planner.Refine(ctx, script, feedback)
		if err != nil {
			return planMsg{err: err}
		}
		return c.draftPlan(ctx, next)
	}
}

// draftPlan parses the script and lets the model repair it while parsing
// yields no steps, up to maxRepairAttempts. A successful draft also carries
// the model's explanation; a failed explanation is logged and left blank
// rather than sinking the plan.
func (c *Console) draftPlan(ctx context.Context, script string) planMsg {
	msg := planMsg{script: script}
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		msg.mission, msg.diags = c.parser.Parse(msg.script)
		if len(msg.mission.Steps) > 0 {
			break
		}
		if attempt == maxRepairAttempts-1 {
			msg.err = fmt.Errorf("plan still empty after %d repairs: %w", msg.repairs, domain.ErrNoSteps)
			return msg
		}
		repaired, err := c.planner.Repair(ctx, msg.script, repairReason(msg.diags))
		if err != nil {
			msg.err = fmt.Errorf("repair plan: %w", err)
			return msg
		}
		msg.script = repaired
		msg.repairs++
	}
	explanation, err := c.planner.Explain(ctx, msg.script)
	if err != nil {
		c.logger.Warn().Err(err).Msg("explanation unavailable")
	} else {
		msg.explanation = explanation
	}
	return msg
}

func (c *Console) approveCmd(mission domain.Mission) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if !c.origin.IsZero() {
			mission = geo.Localize(mission, c.origin)
		}
		report := c.validator.Validate(mission)
		if !report.Passed() {
			return verdictMsg{report: report, err: domain.ErrMissionRejected}
		}
		descriptors, err := c.composer.Compose(ctx, mavlink.Request{
			Mission:    mission,
			Routing:    c.routing,
			Transports: c.transports,
			Send:       c.send,
		})
		return verdictMsg{report: report, descriptors: descriptors, err: err}
	}
}

func repairReason(diags []dsl.Diagnostic) string {
	if len(diags) == 0 {
		return "No steps."
	}
	parts := make([]string, 0, len(diags))
	for _, d := range diags {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// View renders the current state to a string.
func (c *Console) View() string {
	width := c.width
	if width <= 0 {
		width = 96
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("SKYGATE MISSION CONSOLE"))
	b.WriteString("\n")

	switch c.state {
	case statePrompt:
		b.WriteString(labelStyle.Render("COMMANDER"))
		b.WriteString("\nEnter your mission request (empty to quit):\n")
		b.WriteString(c.input.View())

	case stateGenerating:
		b.WriteString(fmt.Sprintf("%s Generating mission plan...", c.spin.View()))

	case stateRefining:
		b.WriteString(fmt.Sprintf("%s Updating plan...", c.spin.View()))

	case stateReview:
		b.WriteString(c.renderPlan(width))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Options: [Y] Yes | [N] No | [C] Change"))

	case stateFeedback:
		b.WriteString(c.renderPlan(width))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("COMMANDER"))
		b.WriteString("\nWhat should I change?\n")
		b.WriteString(c.input.View())

	case stateValidating:
		b.WriteString(fmt.Sprintf("%s SAFETY OFFICER: validating...", c.spin.View()))

	case stateCleared:
		b.WriteString(okStyle.Render("Mission Safe."))
		b.WriteString("\n")
		b.WriteString(c.renderClearance())
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("enter: new mission | q: quit"))

	case stateRejected:
		b.WriteString(failStyle.Render("SAFETY FAILURE"))
		b.WriteString("\n")
		if c.report != nil {
			for _, issue := range c.report.IssueMessages() {
				b.WriteString(fmt.Sprintf("  - %s\n", issue))
			}
		}
		b.WriteString(dimStyle.Render("enter: new mission | q: quit"))

	case stateAborted:
		b.WriteString(failStyle.Render("Mission Aborted."))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("enter: new mission | q: quit"))

	case stateFailed:
		b.WriteString(failStyle.Render("Failed to produce a flyable plan."))
		b.WriteString("\n")
		if c.err != nil {
			b.WriteString(fmt.Sprintf("  %v\n", c.err))
		}
		b.WriteString(dimStyle.Render("enter: new mission | q: quit"))
	}

	if c.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(c.statusMsg))
	}
	b.WriteString("\n")
	return b.String()
}

// renderPlan shows the request, the plan script, dropped lines, and the
// model's explanation.
func (c *Console) renderPlan(width int) string {
	sections := []string{
		labelStyle.Render("CURRENT MISSION PLAN"),
		planStyle.Width(max(24, width-4)).Render(strings.TrimSpace(c.script)),
	}
	if c.prompt != "" {
		sections = append([]string{dimStyle.Render(fmt.Sprintf("Request: %s", c.prompt))}, sections...)
	}
	if c.repairs > 0 {
		sections = append(sections, dimStyle.Render(fmt.Sprintf("Auto-repaired %d time(s).", c.repairs)))
	}
	if len(c.diags) > 0 {
		lines := make([]string, 0, len(c.diags)+1)
		lines = append(lines, failStyle.Render("Dropped lines:"))
		for _, d := range c.diags {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("  %s", d.String())))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if c.explanation != "" {
		sections = append(sections,
			labelStyle.Render("AI EXPLANATION"),
			lipgloss.NewStyle().Width(max(24, width-4)).Render(c.explanation),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderClearance summarizes the composed commands per drone.
func (c *Console) renderClearance() string {
	perDrone := map[string]int{}
	for _, d := range c.descriptors {
		perDrone[d.Drone]++
	}
	drones := make([]string, 0, len(perDrone))
	for id := range perDrone {
		drones = append(drones, id)
	}
	sort.Strings(drones)

	lines := make([]string, 0, len(drones)+1)
	lines = append(lines, fmt.Sprintf("%d commands composed for %d drone(s).", len(c.descriptors), len(drones)))
	for _, id := range drones {
		marker := "composed"
		if c.send {
			if _, ok := c.transports[id]; ok {
				marker = "dispatched"
			}
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  %s: %d commands %s", id, perDrone[id], marker)))
	}
	return strings.Join(lines, "\n")
}
