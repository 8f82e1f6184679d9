// Package main is the entry point for the skygate binary.
// It provides a CLI for the mission pipeline: translating natural-language
// requests into mission scripts, parsing scripts into mission documents,
// safety-checking them, and composing MAVLink command plans.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skygateai/skygate/internal/eval"
	"github.com/skygateai/skygate/internal/pipeline"
	"github.com/skygateai/skygate/internal/tui"
	"github.com/skygateai/skygate/pkg/config"
	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/dsl"
	"github.com/skygateai/skygate/pkg/geo"
	"github.com/skygateai/skygate/pkg/llm"
	"github.com/skygateai/skygate/pkg/logging"
	"github.com/skygateai/skygate/pkg/mavlink"
	"github.com/skygateai/skygate/pkg/safety"
	"github.com/skygateai/skygate/pkg/telemetry"
	"github.com/skygateai/skygate/pkg/trajectory"
	"github.com/skygateai/skygate/pkg/translate"
)

const (
	defaultConfigPath        = "fleet.yaml"
	defaultLogLevel          = "info"
	defaultConsoleLog        = "skygate-console.log"
	telemetryShutdownTimeout = 5 * time.Second
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

func main() {
	// Provider API keys usually live in a .env next to the fleet file.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for skygate.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skygate",
		Short: "Natural-language drone mission pipeline",
		Long: `Skygate turns natural-language mission requests into MAVLink command
plans in three checked stages: translate (language model), parse
(mission script), validate (safety physics), compose (protocol
descriptors).

Example:
  skygate fly "launch two drones and survey the north field at 30m"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to the fleet configuration file")
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Human-readable console logging")

	rootCmd.AddCommand(
		newTranslateCmd(),
		newParseCmd(),
		newCheckCmd(),
		newComposeCmd(),
		newFlyCmd(),
		newEvalCmd(),
		newConsoleCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// buildLogger derives the process logger from the persistent flags.
func buildLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty")
	return logging.New(logging.Config{Level: level, Pretty: pretty})
}

// loadFleet reads the fleet configuration. A missing file at the default
// path is not an error: the stage commands should work in a bare checkout,
// so the built-in limits apply until a fleet.yaml exists. An explicitly
// flagged path that does not exist still fails.
func loadFleet(cmd *cobra.Command) (*config.Fleet, error) {
	path, _ := cmd.Flags().GetString("config")
	fleet, err := config.Load(path)
	if err != nil {
		if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
			return config.Default()
		}
		return nil, err
	}
	return fleet, nil
}

// buildTranslator constructs the provider and prompt layer from the fleet
// config with per-command flag overrides.
func buildTranslator(cmd *cobra.Command, cfg *config.Fleet, logger zerolog.Logger) (*translate.Translator, error) {
	name := cfg.LLM.Provider
	if flag := cmd.Flags().Lookup("provider"); flag != nil && flag.Changed {
		name = flag.Value.String()
	}
	model := cfg.LLM.Model
	if flag := cmd.Flags().Lookup("model"); flag != nil && flag.Changed {
		model = flag.Value.String()
	}
	provider, err := llm.New(name, llm.Config{Model: model, Logger: logger})
	if err != nil {
		return nil, err
	}
	provider = llm.WithRetry(provider, llm.DefaultRetryConfig(), logger)
	return translate.NewTranslator(provider, logger), nil
}

// missionOrigin resolves the launch origin; --home beats the fleet file.
func missionOrigin(cmd *cobra.Command, cfg *config.Fleet) (geo.Origin, error) {
	home := cfg.Mission.Home
	if flag := cmd.Flags().Lookup("home"); flag != nil && flag.Changed {
		home = flag.Value.String()
	}
	if strings.TrimSpace(home) == "" {
		return geo.Origin{}, nil
	}
	return geo.ParseOrigin(home)
}

// runnerOptions assembles the pipeline configuration shared by compose and
// fly.
func runnerOptions(cmd *cobra.Command, cfg *config.Fleet, logger zerolog.Logger) (pipeline.Options, error) {
	origin, err := missionOrigin(cmd, cfg)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		MissionID:      cfg.Mission.ID,
		Limits:         cfg.SafetyLimits(),
		SharedPosition: cfg.Mission.SharedPosition,
		Routing:        cfg.Routing(),
		Origin:         origin,
		Logger:         logger,
	}
	if send, _ := cmd.Flags().GetBool("send"); send {
		opts.Send = true
		opts.Transports = logTransports(cfg.Routing(), logger)
	}
	return opts, nil
}

// logTransports gives every routed drone a logging link, the dry-run
// stand-in for real MAVLink connections.
func logTransports(routing mavlink.Routing, logger zerolog.Logger) map[string]mavlink.Transport {
	transports := make(map[string]mavlink.Transport, len(routing))
	for drone := range routing {
		transports[drone] = mavlink.NewLogTransport(logger)
	}
	return transports
}

// initTelemetry starts OTLP export when an endpoint is configured. The
// returned shutdown is safe to call unconditionally; a failed setup logs a
// warning and the run continues without export.
func initTelemetry(ctx context.Context, cfg *config.Fleet, logger zerolog.Logger) func() {
	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "skygate",
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("telemetry setup failed, continuing without export")
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}
}

// readScript loads the mission script from a file argument, or stdin when
// the argument is missing or "-".
func readScript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		// #nosec G304 -- script path is operator-supplied on the command line
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read script from stdin: %w", err)
	}
	return string(data), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [request...]",
		Short: "Translate a natural-language request into a mission script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			translator, err := buildTranslator(cmd, cfg, logger)
			if err != nil {
				return err
			}
			script, err := translator.Translate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), script)
			return nil
		},
	}
	cmd.Flags().String("provider", "", "Language model provider (openai, gemini, ollama)")
	cmd.Flags().String("model", "", "Model override for the provider")
	return cmd
}

// parseOutput is the parse command's JSON envelope: the mission document
// plus every dropped instruction.
type parseOutput struct {
	Mission domain.Mission   `json:"mission"`
	Dropped []dsl.Diagnostic `json:"dropped,omitempty"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [script|-]",
		Short: "Parse a mission script into a mission document",
		Long: `Parse reads a mission script from a file or stdin and prints the mission
document as JSON. Parsing never fails: malformed instructions are dropped
and reported in the "dropped" list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			script, err := readScript(cmd, args)
			if err != nil {
				return err
			}
			parserOpts := []dsl.Option{}
			if cfg.Mission.ID != "" {
				parserOpts = append(parserOpts, dsl.WithMissionID(cfg.Mission.ID))
			}
			mission, dropped := dsl.NewParser(logger, parserOpts...).Parse(script)
			return printJSON(cmd, parseOutput{Mission: mission, Dropped: dropped})
		},
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [script|-]",
		Short: "Validate a mission script against the safety limits",
		Long: `Check parses the script and runs the safety validator. The JSON report
lands on stdout either way; a rejected mission also exits non-zero. With
--report the audit trail is appended to a file, one line per simulated
check.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			script, err := readScript(cmd, args)
			if err != nil {
				return err
			}

			parserOpts := []dsl.Option{}
			if cfg.Mission.ID != "" {
				parserOpts = append(parserOpts, dsl.WithMissionID(cfg.Mission.ID))
			}
			mission, _ := dsl.NewParser(logger, parserOpts...).Parse(script)

			validatorOpts := []safety.Option{safety.WithLimits(cfg.SafetyLimits())}
			if cfg.Mission.SharedPosition {
				validatorOpts = append(validatorOpts, safety.WithSharedPosition())
			}
			report := safety.NewValidator(logger, validatorOpts...).Validate(mission)

			if path, _ := cmd.Flags().GetString("report"); path != "" {
				if err := appendAudit(path, report); err != nil {
					return err
				}
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Passed() {
				return fmt.Errorf("%d safety issues: %w", len(report.Issues), domain.ErrMissionRejected)
			}
			return nil
		},
	}
	cmd.Flags().String("report", "", "Append the audit trail to this file")
	return cmd
}

// appendAudit appends the report's audit block to path, separated by a
// banner line so consecutive runs stay distinguishable.
func appendAudit(path string, report safety.Report) error {
	// #nosec G304 -- report path is operator-supplied on the command line
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	defer f.Close()
	block := fmt.Sprintf("\n%s\n%s\n", strings.Repeat("=", 60), strings.Join(report.Audit, "\n"))
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose [script|-]",
		Short: "Validate a script and compose its MAVLink command plan",
		Long: `Compose runs the script through the pipeline: parse, safety validation,
and MAVLink composition. The descriptor plan is printed as JSON. A drone
missing from the fleet routing aborts composition; the descriptors already
composed are still printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			shutdown := initTelemetry(cmd.Context(), cfg, logger)
			defer shutdown()

			script, err := readScript(cmd, args)
			if err != nil {
				return err
			}
			opts, err := runnerOptions(cmd, cfg, logger)
			if err != nil {
				return err
			}

			result, runErr := pipeline.NewRunner(opts).RunScript(cmd.Context(), script)
			if result != nil {
				descriptors := result.Descriptors
				if descriptors == nil {
					descriptors = []mavlink.Descriptor{}
				}
				if err := printJSON(cmd, descriptors); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().Bool("send", false, "Dispatch composed commands over the drone links")
	cmd.Flags().String("home", "", "Launch origin as \"lon,lat\" for waypoint localization")
	return cmd
}

// flyOutput wraps the pipeline result with the optional trajectory
// expansion.
type flyOutput struct {
	*pipeline.Result
	Trajectories []trajectory.Path `json:"trajectories,omitempty"`
}

func newFlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fly [request...]",
		Short: "Run a natural-language request through the full pipeline",
		Long: `Fly translates the request, parses the generated script (repairing it
with the model when it yields no steps), validates the mission, and
composes the MAVLink plan. The full run result is printed as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			shutdown := initTelemetry(cmd.Context(), cfg, logger)
			defer shutdown()

			translator, err := buildTranslator(cmd, cfg, logger)
			if err != nil {
				return err
			}
			opts, err := runnerOptions(cmd, cfg, logger)
			if err != nil {
				return err
			}
			opts.Translator = translator

			result, runErr := pipeline.NewRunner(opts).RunPrompt(cmd.Context(), strings.Join(args, " "))
			if result != nil {
				out := flyOutput{Result: result}
				if withPaths, _ := cmd.Flags().GetBool("trajectory"); withPaths && len(result.Mission.Steps) > 0 {
					out.Trajectories = trajectory.ExpandMission(result.Mission)
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().String("provider", "", "Language model provider (openai, gemini, ollama)")
	cmd.Flags().String("model", "", "Model override for the provider")
	cmd.Flags().Bool("send", false, "Dispatch composed commands over the drone links")
	cmd.Flags().Bool("trajectory", false, "Include expanded flight paths in the output")
	cmd.Flags().String("home", "", "Launch origin as \"lon,lat\" for waypoint localization")
	return cmd
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score the translation pipeline against the built-in dataset",
		Long: `Eval runs every prompt in the built-in dataset through translate, parse,
and validate, then scores the leading action per category. The scoreboard
is printed on stdout; --json includes every individual verdict.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger(cmd)
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}
			shutdown := initTelemetry(cmd.Context(), cfg, logger)
			defer shutdown()

			translator, err := buildTranslator(cmd, cfg, logger)
			if err != nil {
				return err
			}

			workers, _ := cmd.Flags().GetInt("workers")
			delay, _ := cmd.Flags().GetDuration("delay")
			runner := eval.NewRunner(translator, logger, eval.WithWorkers(workers), eval.WithDelay(delay))

			results, summary, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd, struct {
					Summary eval.Summary  `json:"summary"`
					Results []eval.Result `json:"results"`
				}{summary, results})
			}
			printScoreboard(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().Int("workers", 2, "Concurrent prompts in flight")
	cmd.Flags().Duration("delay", time.Second, "Pause before each prompt submission")
	cmd.Flags().Bool("json", false, "Print full results as JSON")
	cmd.Flags().String("provider", "", "Language model provider (openai, gemini, ollama)")
	cmd.Flags().String("model", "", "Model override for the provider")
	return cmd
}

// printScoreboard renders the per-category table and the final score.
func printScoreboard(w io.Writer, summary eval.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tPASSED\tTOTAL")
	for _, score := range summary.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", score.Category, score.Passed, score.Total)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nFINAL SCORE: %d/%d\n", summary.Passed, summary.Total)
}

func newConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive commander console",
		Long: `Console opens the interactive session: type a mission request, review the
generated plan and its explanation, then approve, abort, or ask for
changes. Approved plans go through safety validation and MAVLink
composition. Logs go to a file because the console owns the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFleet(cmd)
			if err != nil {
				return err
			}

			logPath, _ := cmd.Flags().GetString("log-file")
			// #nosec G304 -- log path is operator-supplied on the command line
			logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			level, _ := cmd.Flags().GetString("log-level")
			logger := logging.New(logging.Config{Level: level, Writer: logFile})

			shutdown := initTelemetry(cmd.Context(), cfg, logger)
			defer shutdown()

			translator, err := buildTranslator(cmd, cfg, logger)
			if err != nil {
				return err
			}
			origin, err := missionOrigin(cmd, cfg)
			if err != nil {
				return err
			}

			opts := tui.Options{
				Planner:        translator,
				MissionID:      cfg.Mission.ID,
				Limits:         cfg.SafetyLimits(),
				SharedPosition: cfg.Mission.SharedPosition,
				Routing:        cfg.Routing(),
				Origin:         origin,
				Logger:         logger,
			}
			if send, _ := cmd.Flags().GetBool("send"); send {
				opts.Send = true
				opts.Transports = logTransports(cfg.Routing(), logger)
			}
			return tui.Run(opts)
		},
	}
	cmd.Flags().Bool("send", false, "Dispatch composed commands over the drone links")
	cmd.Flags().String("home", "", "Launch origin as \"lon,lat\" for waypoint localization")
	cmd.Flags().String("log-file", defaultConsoleLog, "Log destination while the console runs")
	cmd.Flags().String("provider", "", "Language model provider (openai, gemini, ollama)")
	cmd.Flags().String("model", "", "Model override for the provider")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the skygate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skygate %s\n", version)
		},
	}
}
